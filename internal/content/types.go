package content

import "time"

// Descriptor and content file names expected inside the tree.
const (
	PostDescriptorFile   = "post.yaml"
	SeriesDescriptorFile = "series.yaml"
	BodyFile             = "content.md"
)

// PostMeta is the parsed post descriptor (post.yaml).
type PostMeta struct {
	Title        string     `yaml:"title" json:"title"`
	Subtitle     *string    `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	PreviewText  string     `yaml:"preview_text" json:"preview_text"`
	PreviewImage *string    `yaml:"preview_image,omitempty" json:"preview_image,omitempty"`
	Tags         []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
	// nil = draft, past = live, future = scheduled
	GoesLiveAt *time.Time `yaml:"goes_live_at,omitempty" json:"goes_live_at,omitempty"`
	// Position within a series; missing order sorts after explicit orders
	Order *int `yaml:"order,omitempty" json:"order,omitempty"`
}

// SeriesMeta is the parsed series descriptor (series.yaml).
type SeriesMeta struct {
	Title        string     `yaml:"title" json:"title"`
	Description  *string    `yaml:"description,omitempty" json:"description,omitempty"`
	PreviewImage *string    `yaml:"preview_image,omitempty" json:"preview_image,omitempty"`
	GoesLiveAt   *time.Time `yaml:"goes_live_at,omitempty" json:"goes_live_at,omitempty"`
}

// Post is a fully loaded post with raw body text.
type Post struct {
	Slug string `json:"slug"`
	PostMeta
	SeriesSlug *string `json:"series_slug,omitempty"`
	Body       string  `json:"body"`

	// rawMeta holds the descriptor bytes as read from disk; it feeds the
	// tree fingerprint so metadata-only edits still change the hash.
	rawMeta []byte
}

// PostSummary omits the body for list endpoints.
type PostSummary struct {
	Slug string `json:"slug"`
	PostMeta
	SeriesSlug *string `json:"series_slug,omitempty"`
}

func (p *Post) Summary() PostSummary {
	return PostSummary{Slug: p.Slug, PostMeta: p.PostMeta, SeriesSlug: p.SeriesSlug}
}

// Series is a series with its ordered member summaries.
type Series struct {
	Slug string `json:"slug"`
	SeriesMeta
	Posts []PostSummary `json:"posts"`
}

// SeriesSummary omits member posts for list endpoints.
type SeriesSummary struct {
	Slug string `json:"slug"`
	SeriesMeta
	PostCount int `json:"post_count"`
}

// Visibility of a unit, derived from goes_live_at.
type Visibility int

const (
	VisibilityDraft Visibility = iota
	VisibilityScheduled
	VisibilityLive
)

func (v Visibility) String() string {
	switch v {
	case VisibilityDraft:
		return "draft"
	case VisibilityScheduled:
		return "scheduled"
	default:
		return "live"
	}
}

// VisibilityAt classifies a goes_live_at value relative to now.
func VisibilityAt(goesLiveAt *time.Time, now time.Time) Visibility {
	switch {
	case goesLiveAt == nil:
		return VisibilityDraft
	case goesLiveAt.After(now):
		return VisibilityScheduled
	default:
		return VisibilityLive
	}
}

// ListOptions controls filtering and pagination of list reads.
type ListOptions struct {
	IncludeDrafts    bool
	IncludeScheduled bool
	Limit            int
	Offset           int
}

// ListResult is one page plus the total count of matching units.
type ListResult[T any] struct {
	Items  []T
	Total  int
	Limit  int
	Offset int
}
