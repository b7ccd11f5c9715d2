package content

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kestrelworks/inkwell/internal/log"
	"github.com/kestrelworks/inkwell/internal/xerrors"
)

// Limits bounds how much file data a single load may read.
type Limits struct {
	// MaxFileBytes skips any single file larger than this.
	MaxFileBytes int64
	// MaxTotalBytes stops reading further files once the cumulative byte
	// count crosses it. The load still returns the partial tree built so
	// far; it never fails outright.
	MaxTotalBytes int64
}

// DefaultLimits are generous for a content tree while still bounding an
// adversarial push.
func DefaultLimits() Limits {
	return Limits{
		MaxFileBytes:  10 << 20,  // 10 MiB
		MaxTotalBytes: 256 << 20, // 256 MiB
	}
}

// Issue records one unit-level problem encountered during a load.
type Issue struct {
	Slug   string `json:"slug,omitempty"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// budget tracks the cumulative read allowance across one load.
type budget struct {
	limits    Limits
	used      int64
	exhausted bool
}

var errBudgetExhausted = xerrors.New("cumulative content size limit reached")
var errFileTooLarge = xerrors.New("file exceeds per-file size limit")

// readFile reads path under the budget. It refuses symlinks (checked with
// Lstat so the link is never followed), oversized files, and any read after
// the cumulative limit is exhausted.
func (b *budget) readFile(path string) ([]byte, error) {
	if b.exhausted {
		return nil, errBudgetExhausted
	}

	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return nil, xerrors.New("entry is a symbolic link")
	}
	if !info.Mode().IsRegular() {
		return nil, xerrors.New("entry is not a regular file")
	}
	if info.Size() > b.limits.MaxFileBytes {
		return nil, errFileTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	b.used += int64(len(data))
	if b.used > b.limits.MaxTotalBytes {
		b.exhausted = true
	}
	return data, nil
}

// loader accumulates units and issues for one load pass.
type loader struct {
	root   string
	budget budget
	logger log.Logger

	posts  map[string]*Post
	series map[string]*seriesEntry
	issues []Issue
}

// Load walks the content tree rooted at root and builds a complete snapshot.
// A directory with a series descriptor is a series whose immediate child
// directories are its member posts; a directory with a post descriptor and a
// body is a standalone post. Individual bad units (symlinks, oversized
// files, malformed descriptors) are skipped with a warning; the rest of the
// tree still loads.
func Load(ctx context.Context, root string, limits Limits, logger log.Logger) (*Snapshot, error) {
	if logger == nil {
		logger = log.Nop()
	}
	if limits.MaxFileBytes <= 0 || limits.MaxTotalBytes <= 0 {
		limits = DefaultLimits()
	}

	l := &loader{
		root:   root,
		budget: budget{limits: limits},
		logger: logger,
		posts:  make(map[string]*Post),
		series: make(map[string]*seriesEntry),
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			// missing tree is an empty tree, not a failure
			logger.Warn(ctx, "content root does not exist, serving empty tree", "root", root)
			return l.finish(), nil
		}
		return nil, xerrors.Wrapf(err, "read content root %s", root)
	}

	// deterministic walk order so issue and log output is stable
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		l.loadTopLevel(ctx, entry)
	}

	snap := l.finish()
	posts, series := snap.Counts()
	if len(l.issues) > 0 {
		logger.Warn(ctx, "content loaded with issues",
			"posts", posts, "series", series, "issues", len(l.issues))
	} else {
		logger.Info(ctx, "content loaded", "posts", posts, "series", series)
	}
	return snap, nil
}

func (l *loader) finish() *Snapshot {
	return &Snapshot{
		posts:       l.posts,
		series:      l.series,
		fingerprint: computeFingerprint(l.posts, l.series),
		loadedAt:    time.Now().UTC(),
		issues:      l.issues,
	}
}

func (l *loader) skip(ctx context.Context, slug, path string, reason string) {
	l.issues = append(l.issues, Issue{Slug: slug, Path: path, Reason: reason})
	l.logger.Warn(ctx, "skipping content unit", "slug", slug, "path", path, "reason", reason)
}

func (l *loader) loadTopLevel(ctx context.Context, entry fs.DirEntry) {
	name := entry.Name()
	path := filepath.Join(l.root, name)

	// DirEntry.Type comes from the directory read and does not follow
	// links, so a symlinked directory is caught before any traversal.
	if entry.Type()&fs.ModeSymlink != 0 {
		l.skip(ctx, name, path, "symbolic link")
		return
	}
	if !entry.IsDir() {
		return
	}

	if _, err := os.Lstat(filepath.Join(path, SeriesDescriptorFile)); err == nil {
		l.loadSeries(ctx, name, path)
		return
	}

	l.loadPost(ctx, name, path, nil)
}

// loadPost loads one post directory. Missing descriptor or body means the
// directory is silently not a post (stray dirs in the tree are fine).
func (l *loader) loadPost(ctx context.Context, slug, path string, seriesSlug *string) {
	metaPath := filepath.Join(path, PostDescriptorFile)
	bodyPath := filepath.Join(path, BodyFile)

	if _, err := os.Lstat(metaPath); err != nil {
		return
	}
	if _, err := os.Lstat(bodyPath); err != nil {
		return
	}

	// slugs are global across the tree; a series member sharing a name with
	// an already-loaded post must not silently replace it
	if _, exists := l.posts[slug]; exists {
		l.skip(ctx, slug, path, "duplicate slug, another unit already owns it")
		return
	}

	rawMeta, err := l.budget.readFile(metaPath)
	if err != nil {
		l.skip(ctx, slug, metaPath, err.Error())
		return
	}

	var meta PostMeta
	if err := yaml.Unmarshal(rawMeta, &meta); err != nil {
		l.skip(ctx, slug, metaPath, "descriptor parse failure: "+err.Error())
		return
	}

	body, err := l.budget.readFile(bodyPath)
	if err != nil {
		l.skip(ctx, slug, bodyPath, err.Error())
		return
	}

	l.posts[slug] = &Post{
		Slug:       slug,
		PostMeta:   meta,
		SeriesSlug: seriesSlug,
		Body:       string(body),
		rawMeta:    rawMeta,
	}
}

func (l *loader) loadSeries(ctx context.Context, slug, path string) {
	metaPath := filepath.Join(path, SeriesDescriptorFile)

	rawMeta, err := l.budget.readFile(metaPath)
	if err != nil {
		l.skip(ctx, slug, metaPath, err.Error())
		return
	}

	var meta SeriesMeta
	if err := yaml.Unmarshal(rawMeta, &meta); err != nil {
		l.skip(ctx, slug, metaPath, "descriptor parse failure: "+err.Error())
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		l.skip(ctx, slug, path, err.Error())
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var members []*Post
	for _, entry := range entries {
		childPath := filepath.Join(path, entry.Name())
		if entry.Type()&fs.ModeSymlink != 0 {
			l.skip(ctx, entry.Name(), childPath, "symbolic link")
			continue
		}
		if !entry.IsDir() {
			continue
		}
		before := len(l.posts)
		l.loadPost(ctx, entry.Name(), childPath, &slug)
		if len(l.posts) > before {
			members = append(members, l.posts[entry.Name()])
		}
	}

	// order ascending, then slug; members without an explicit order come
	// after all ordered ones
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		switch {
		case a.Order != nil && b.Order != nil:
			if *a.Order != *b.Order {
				return *a.Order < *b.Order
			}
			return a.Slug < b.Slug
		case a.Order != nil:
			return true
		case b.Order != nil:
			return false
		default:
			return a.Slug < b.Slug
		}
	})

	postSlugs := make([]string, 0, len(members))
	for _, m := range members {
		postSlugs = append(postSlugs, m.Slug)
	}

	l.series[slug] = &seriesEntry{
		slug:      slug,
		meta:      meta,
		rawMeta:   rawMeta,
		postSlugs: postSlugs,
	}
}
