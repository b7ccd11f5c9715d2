package content

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelworks/inkwell/internal/log"
)

// Manager owns the active snapshot. Readers call Get and never contend with
// a refresh: the replacement tree is built entirely off to the side and
// published with a single atomic pointer swap.
type Manager struct {
	root   string
	limits Limits
	logger log.Logger

	active atomic.Pointer[Snapshot]

	// refreshMu serializes refreshes so concurrent pushes do not race to
	// swap stale trees over newer ones.
	refreshMu sync.Mutex
}

func NewManager(root string, limits Limits, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.Nop()
	}
	return &Manager{root: root, limits: limits, logger: logger}
}

// Get returns the active snapshot. ok is false until the first successful load.
func (m *Manager) Get() (*Snapshot, bool) {
	s := m.active.Load()
	return s, s != nil
}

// Refresh loads a fresh tree and swaps it in. On load failure the previous
// snapshot stays active and the error is returned to the caller. Safe for
// concurrent use; refreshes run one at a time.
func (m *Manager) Refresh(ctx context.Context) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	start := time.Now()
	snap, err := Load(ctx, m.root, m.limits, m.logger)
	if err != nil {
		m.logger.Error(ctx, err, "content refresh failed, keeping previous snapshot")
		return err
	}

	m.active.Store(snap)
	posts, series := snap.Counts()
	m.logger.Info(ctx, "content snapshot swapped",
		"posts", posts,
		"series", series,
		"fingerprint", shortHash(snap.Fingerprint()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Fingerprint returns the active snapshot's fingerprint, or "" before the
// first load.
func (m *Manager) Fingerprint() string {
	s := m.active.Load()
	if s == nil {
		return ""
	}
	return s.fingerprint
}

// ContentFingerprint implements the httpmw.ContentInfo interface.
func (m *Manager) ContentFingerprint() string { return m.Fingerprint() }

// LoadedAt returns when the active snapshot was loaded, or zero.
func (m *Manager) LoadedAt() time.Time {
	s := m.active.Load()
	if s == nil {
		return time.Time{}
	}
	return s.loadedAt
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
