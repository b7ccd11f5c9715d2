package content

// ValidationIssue is one operator-facing finding from a content audit.
type ValidationIssue struct {
	Kind   string `json:"kind"` // "post" | "series" | "load"
	Slug   string `json:"slug,omitempty"`
	Detail string `json:"detail"`
}

// Validate audits the snapshot for common authoring mistakes and replays any
// load-time skips. It never fails; the report is for operators, not gating.
func (s *Snapshot) Validate() []ValidationIssue {
	var out []ValidationIssue

	for _, iss := range s.issues {
		detail := iss.Reason
		if iss.Path != "" {
			detail = iss.Path + ": " + detail
		}
		out = append(out, ValidationIssue{Kind: "load", Slug: iss.Slug, Detail: detail})
	}

	for slug, p := range s.posts {
		if p.Title == "" {
			out = append(out, ValidationIssue{Kind: "post", Slug: slug, Detail: "empty title"})
		}
		if len(p.Body) == 0 {
			out = append(out, ValidationIssue{Kind: "post", Slug: slug, Detail: "empty body"})
		}
		if p.PreviewText == "" {
			out = append(out, ValidationIssue{Kind: "post", Slug: slug, Detail: "empty preview_text"})
		}
	}

	for slug, se := range s.series {
		if se.meta.Title == "" {
			out = append(out, ValidationIssue{Kind: "series", Slug: slug, Detail: "empty title"})
		}
		if len(se.postSlugs) == 0 {
			out = append(out, ValidationIssue{Kind: "series", Slug: slug, Detail: "series has no posts"})
		}
	}

	return out
}
