package report

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"lodging/internal/config"
	"lodging/internal/loader"
)

// ErrSuperseded is returned by Session.Render when a newer render of the
// same session started before this one finished.
var ErrSuperseded = errors.New("render superseded by a newer request")

// Session is one viewer of the report. It owns a memoizing Loader, so the
// remote export is fetched at most once per session, and it serializes
// renders on a last-request-wins basis.
type Session struct {
	ID      string
	Created time.Time

	cfg    config.Report
	loader *loader.Loader

	// lastUsed is the UnixNano of the latest lookup or render.
	lastUsed atomic.Int64

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelCauseFunc
	last   *Result
}

// NewSession returns a session with a fresh random ID.
func NewSession(cfg config.Report) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:      uuid.NewString(),
		Created: now,
		cfg:     cfg,
		loader:  loader.New(),
	}
	s.touch(now)
	return s
}

func (s *Session) touch(t time.Time) { s.lastUsed.Store(t.UnixNano()) }

// LastUsed returns when the session was last looked up or rendered.
func (s *Session) LastUsed() time.Time { return time.Unix(0, s.lastUsed.Load()).UTC() }

// rendering reports whether a render is in flight.
func (s *Session) rendering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Render runs a render pass. Starting a render cancels the one in flight,
// which then returns ErrSuperseded; a render that finishes after a newer one
// started is discarded the same way.
func (s *Session) Render(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	s.touch(time.Now())
	defer func() { s.touch(time.Now()) }()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel(ErrSuperseded)
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	res, err := Build(ctx, s.cfg, s.loader)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.cancel = nil
	}
	if errors.Is(context.Cause(ctx), ErrSuperseded) || s.gen != gen {
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	s.last = res
	return res, nil
}

// Last returns the result of the most recent successful render, or nil.
func (s *Session) Last() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Generation returns how many renders have been started.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Loader exposes the session cache (for diagnostics).
func (s *Session) Loader() *loader.Loader { return s.loader }

// Sessions is a registry of live sessions keyed by ID.
type Sessions struct {
	cfg config.Report

	mu sync.RWMutex
	m  map[string]*Session
}

// NewSessions returns an empty registry whose sessions render cfg.
func NewSessions(cfg config.Report) *Sessions {
	return &Sessions{cfg: cfg, m: make(map[string]*Session)}
}

// Create registers and returns a new session.
func (s *Sessions) Create() *Session {
	sess := NewSession(s.cfg)
	s.mu.Lock()
	s.m[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session with the given ID and marks it used.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[id]
	if ok {
		sess.touch(time.Now())
	}
	return sess, ok
}

// Delete drops a session and its cache. It reports whether it existed.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[id]
	delete(s.m, id)
	return ok
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Expire drops sessions idle since before cutoff and returns their IDs. A
// session with a render in flight is never idle.
func (s *Sessions) Expire(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var gone []string
	for id, sess := range s.m {
		if sess.LastUsed().Before(cutoff) && !sess.rendering() {
			delete(s.m, id)
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	return gone
}
