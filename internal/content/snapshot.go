package content

import (
	"sort"
	"time"

	"github.com/kestrelworks/inkwell/internal/cryptoutil"
)

// MaxPageSize is the hard cap applied to list limits.
const MaxPageSize = 500

// DefaultPageSize is used when a list request does not specify a limit.
const DefaultPageSize = 50

// Snapshot is one immutable, self-consistent view of the content tree.
// A refresh builds a complete replacement and swaps it in; snapshots are
// never mutated after construction.
type Snapshot struct {
	posts       map[string]*Post
	series      map[string]*seriesEntry
	fingerprint string
	loadedAt    time.Time
	issues      []Issue
}

// seriesEntry keeps per-series state plus the raw descriptor bytes that feed
// the fingerprint.
type seriesEntry struct {
	slug      string
	meta      SeriesMeta
	rawMeta   []byte
	postSlugs []string // ordered
}

// Fingerprint is a deterministic hash of the whole tree, usable as an HTTP
// cache validator. See computeFingerprint for the construction.
func (s *Snapshot) Fingerprint() string { return s.fingerprint }

// LoadedAt is when this snapshot finished loading.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Issues are the unit-level problems encountered while loading (parse
// failures, size-limit skips, symlinked entries). The tree is still valid;
// the offending units are simply absent.
func (s *Snapshot) Issues() []Issue { return s.issues }

// Counts returns the number of loaded posts and series.
func (s *Snapshot) Counts() (posts, series int) { return len(s.posts), len(s.series) }

func (s *Snapshot) visible(goesLiveAt *time.Time, opts ListOptions, now time.Time) bool {
	switch VisibilityAt(goesLiveAt, now) {
	case VisibilityDraft:
		return opts.IncludeDrafts
	case VisibilityScheduled:
		return opts.IncludeScheduled
	default:
		return true
	}
}

func clampPage(opts ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListPosts returns one page of posts matching the visibility filter, newest
// first. Drafts (no goes_live_at) sort before dated posts; equal dates fall
// back to slug order so the ordering is total.
func (s *Snapshot) ListPosts(opts ListOptions) ListResult[PostSummary] {
	now := time.Now().UTC()
	limit, offset := clampPage(opts)

	matched := make([]*Post, 0, len(s.posts))
	for _, p := range s.posts {
		if s.visible(p.GoesLiveAt, opts, now) {
			matched = append(matched, p)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.GoesLiveAt == nil && b.GoesLiveAt == nil:
			return a.Slug < b.Slug
		case a.GoesLiveAt == nil:
			return true
		case b.GoesLiveAt == nil:
			return false
		case !a.GoesLiveAt.Equal(*b.GoesLiveAt):
			return a.GoesLiveAt.After(*b.GoesLiveAt)
		default:
			return a.Slug < b.Slug
		}
	})

	items := pageOf(matched, offset, limit, func(p *Post) PostSummary { return p.Summary() })
	return ListResult[PostSummary]{Items: items, Total: len(matched), Limit: limit, Offset: offset}
}

// ListSeries returns one page of series matching the visibility filter.
func (s *Snapshot) ListSeries(opts ListOptions) ListResult[SeriesSummary] {
	now := time.Now().UTC()
	limit, offset := clampPage(opts)

	matched := make([]*seriesEntry, 0, len(s.series))
	for _, se := range s.series {
		if s.visible(se.meta.GoesLiveAt, opts, now) {
			matched = append(matched, se)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.meta.GoesLiveAt == nil && b.meta.GoesLiveAt == nil:
			return a.slug < b.slug
		case a.meta.GoesLiveAt == nil:
			return true
		case b.meta.GoesLiveAt == nil:
			return false
		case !a.meta.GoesLiveAt.Equal(*b.meta.GoesLiveAt):
			return a.meta.GoesLiveAt.After(*b.meta.GoesLiveAt)
		default:
			return a.slug < b.slug
		}
	})

	items := pageOf(matched, offset, limit, func(se *seriesEntry) SeriesSummary {
		return SeriesSummary{Slug: se.slug, SeriesMeta: se.meta, PostCount: len(se.postSlugs)}
	})
	return ListResult[SeriesSummary]{Items: items, Total: len(matched), Limit: limit, Offset: offset}
}

func pageOf[In, Out any](all []In, offset, limit int, conv func(In) Out) []Out {
	if offset >= len(all) {
		return []Out{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]Out, 0, end-offset)
	for _, v := range all[offset:end] {
		out = append(out, conv(v))
	}
	return out
}

// GetPost returns a post by slug. Draft and scheduled posts are only
// returned when admin is set; otherwise a guessed slug behaves exactly like
// a missing one.
func (s *Snapshot) GetPost(slug string, admin bool) (*Post, bool) {
	p, ok := s.posts[slug]
	if !ok {
		return nil, false
	}
	if !admin && VisibilityAt(p.GoesLiveAt, time.Now().UTC()) != VisibilityLive {
		return nil, false
	}
	return p, true
}

// GetSeries returns a series with its ordered member summaries, applying the
// same visibility rule as GetPost to the series itself. Member posts keep
// their own visibility: non-admin callers see only live members.
func (s *Snapshot) GetSeries(slug string, admin bool) (*Series, bool) {
	se, ok := s.series[slug]
	if !ok {
		return nil, false
	}
	now := time.Now().UTC()
	if !admin && VisibilityAt(se.meta.GoesLiveAt, now) != VisibilityLive {
		return nil, false
	}

	posts := make([]PostSummary, 0, len(se.postSlugs))
	for _, ps := range se.postSlugs {
		p, ok := s.posts[ps]
		if !ok {
			continue
		}
		if !admin && VisibilityAt(p.GoesLiveAt, now) != VisibilityLive {
			continue
		}
		posts = append(posts, p.Summary())
	}

	return &Series{Slug: se.slug, SeriesMeta: se.meta, Posts: posts}, true
}

// computeFingerprint hashes every loaded unit in sorted slug order. Each
// component (slug, descriptor bytes, body bytes) is length-prefixed so
// boundary-shifted trees cannot collide.
func computeFingerprint(posts map[string]*Post, series map[string]*seriesEntry) string {
	w := cryptoutil.NewLengthPrefixedWriter()

	postSlugs := make([]string, 0, len(posts))
	for slug := range posts {
		postSlugs = append(postSlugs, slug)
	}
	sort.Strings(postSlugs)
	for _, slug := range postSlugs {
		p := posts[slug]
		w.Add([]byte(slug))
		w.Add(p.rawMeta)
		w.Add([]byte(p.Body))
	}

	seriesSlugs := make([]string, 0, len(series))
	for slug := range series {
		seriesSlugs = append(seriesSlugs, slug)
	}
	sort.Strings(seriesSlugs)
	for _, slug := range seriesSlugs {
		w.Add([]byte(slug))
		w.Add(series[slug].rawMeta)
	}

	return w.SumHex()
}
