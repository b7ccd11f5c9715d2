package content

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestManager_EmptyUntilFirstRefresh(t *testing.T) {
	m := NewManager(t.TempDir(), Limits{}, nil)

	if _, ok := m.Get(); ok {
		t.Fatal("Get should report false before first refresh")
	}
	if m.Fingerprint() != "" {
		t.Fatal("Fingerprint should be empty before first refresh")
	}
	if !m.LoadedAt().IsZero() {
		t.Fatal("LoadedAt should be zero before first refresh")
	}
}

func TestManager_RefreshSwapsSnapshot(t *testing.T) {
	root := t.TempDir()
	m := NewManager(root, Limits{}, nil)
	ctx := context.Background()

	writePost(t, root, "first", "title: F\npreview_text: f\ngoes_live_at: 2020-01-01T00:00:00Z\n", "one")
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	fp1 := m.Fingerprint()
	if fp1 == "" {
		t.Fatal("expected fingerprint after refresh")
	}

	writePost(t, root, "second", "title: S\npreview_text: s\ngoes_live_at: 2020-01-02T00:00:00Z\n", "two")
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if m.Fingerprint() == fp1 {
		t.Fatal("fingerprint should change after content change")
	}

	snap, ok := m.Get()
	if !ok {
		t.Fatal("Get should succeed")
	}
	if posts, _ := snap.Counts(); posts != 2 {
		t.Fatalf("posts = %d, want 2", posts)
	}
}

func TestManager_FailedRefreshKeepsPreviousSnapshot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "content")
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatal(err)
	}
	writePost(t, root, "keep", "title: K\npreview_text: k\ngoes_live_at: 2020-01-01T00:00:00Z\n", "body")

	m := NewManager(root, Limits{}, nil)
	ctx := context.Background()
	if err := m.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	fp := m.Fingerprint()

	// make the root unreadable (not merely missing: a missing root loads
	// as an empty tree by design)
	if err := os.Chmod(root, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(root, 0o755) })
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	if err := m.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error for unreadable root")
	}
	if m.Fingerprint() != fp {
		t.Fatal("failed refresh must keep the previous snapshot")
	}
	if _, ok := m.Get(); !ok {
		t.Fatal("previous snapshot should remain active")
	}
}

func TestManager_ConcurrentReadersDuringRefresh(t *testing.T) {
	root := t.TempDir()
	writePost(t, root, "p", "title: P\npreview_text: p\ngoes_live_at: 2020-01-01T00:00:00Z\n", "body")

	m := NewManager(root, Limits{}, nil)
	ctx := context.Background()
	if err := m.Refresh(ctx); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap, ok := m.Get()
				if !ok {
					t.Error("reader observed missing snapshot")
					return
				}
				// a snapshot must always be internally consistent
				if snap.Fingerprint() == "" {
					t.Error("reader observed snapshot without fingerprint")
					return
				}
				snap.ListPosts(ListOptions{})
			}
		}()
	}

	for range 20 {
		if err := m.Refresh(ctx); err != nil {
			t.Errorf("Refresh: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
