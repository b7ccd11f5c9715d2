package pathutil

import "testing"

func TestValidateGitPath(t *testing.T) {
	valid := []string{
		"/info/refs?service=git-upload-pack",
		"/git-upload-pack",
		"/git-receive-pack",
		"/objects/info/packs",
		"/refs/heads/main",
		"a-b_c.d/e=f?g&h+i",
	}
	for _, p := range valid {
		if err := ValidateGitPath(p); err != nil {
			t.Errorf("ValidateGitPath(%q) = %v, want nil", p, err)
		}
	}

	invalid := []string{
		"",
		"/../etc/passwd",
		"/info/../refs",
		"..",
		"/info/refs%00",
		"/info refs",
		"/info\trefs",
		"/path;rm",
		"/päth",
		"/info\nrefs",
	}
	for _, p := range invalid {
		if err := ValidateGitPath(p); err == nil {
			t.Errorf("ValidateGitPath(%q) = nil, want error", p)
		}
	}
}

func TestIsWriteOp(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/git-receive-pack", true},
		{"/info/refs?service=git-receive-pack", true},
		{"/git-upload-pack", false},
		{"/info/refs?service=git-upload-pack", false},
		{"/objects/info/packs", false},
	}
	for _, tc := range cases {
		if got := IsWriteOp(tc.path); got != tc.want {
			t.Errorf("IsWriteOp(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestCleanTreeRelative(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"images/cover.png", "images/cover.png", false},
		{"/images/cover.png", "images/cover.png", false},
		{"a//b/./c", "a/b/c", false},
		{"", "", true},
		{"/", "", true},
		{"..", "", true},
		{"a/../b", "", true},
		{"./.", "", true},
	}
	for _, tc := range cases {
		got, err := CleanTreeRelative(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("CleanTreeRelative(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("CleanTreeRelative(%q) = (%q, %v), want %q", tc.in, got, err, tc.want)
		}
	}
}
