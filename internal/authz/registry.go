package authz

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// NewSession builds an uninitialized session for a browsing context.
	NewSession  func(contextID string) *Session
	InitTimeout time.Duration
	IdleTimeout time.Duration
	Logger      *slog.Logger
	Recorder    Recorder
	Now         func() time.Time
}

type registryEntry struct {
	session  *Session
	lastSeen time.Time
}

// Registry owns one Session per browsing context.
type Registry struct {
	cfg     RegistryConfig
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]*registryEntry
	closed  bool
}

// NewRegistry constructs a Registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = 3 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{cfg: cfg, logger: logger, entries: make(map[string]*registryEntry)}
}

// ErrRegistryClosed is returned by Get after Close.
var ErrRegistryClosed = errors.New("authz: registry closed")

// Get returns the session for contextID, creating and initializing it on
// first use. A session whose first notification has not settled within the
// init timeout is still returned and answers as signed out until it does.
func (r *Registry) Get(ctx context.Context, contextID string) (*Session, error) {
	if contextID == "" {
		return nil, errors.New("authz: context id required")
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	entry, ok := r.entries[contextID]
	if !ok {
		entry = &registryEntry{session: r.cfg.NewSession(contextID)}
		r.entries[contextID] = entry
		r.cfg.Recorder.SessionsActive(len(r.entries))
	}
	entry.lastSeen = r.cfg.Now()
	sess := entry.session
	r.mu.Unlock()

	initCtx, cancel := context.WithTimeout(ctx, r.cfg.InitTimeout)
	defer cancel()
	err := sess.Initialize(initCtx)
	switch {
	case err == nil:
		return sess, nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		r.logger.Warn("session init timed out", slog.String("context_id", contextID))
		return sess, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		r.drop(contextID, sess)
		return nil, err
	}
}

// Remove closes and forgets the session for contextID.
func (r *Registry) Remove(contextID string) {
	r.mu.Lock()
	entry, ok := r.entries[contextID]
	r.mu.Unlock()
	if ok {
		r.drop(contextID, entry.session)
	}
}

func (r *Registry) drop(contextID string, sess *Session) {
	r.mu.Lock()
	if entry, ok := r.entries[contextID]; ok && entry.session == sess {
		delete(r.entries, contextID)
		r.cfg.Recorder.SessionsActive(len(r.entries))
	}
	r.mu.Unlock()
	sess.Close()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// RefreshUID asks every live session signed in as uid to reload its profile
// and reports how many were asked.
func (r *Registry) RefreshUID(uid string) int {
	if uid == "" {
		return 0
	}
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.entries))
	for _, entry := range r.entries {
		sessions = append(sessions, entry.session)
	}
	r.mu.Unlock()

	n := 0
	for _, sess := range sessions {
		if sess.uid() == uid {
			sess.Refresh()
			n++
		}
	}
	return n
}

// ProfileChanged refreshes the local sessions of uid.
func (r *Registry) ProfileChanged(_ context.Context, uid string) error {
	r.RefreshUID(uid)
	return nil
}

// Run sweeps idle sessions until ctx ends.
func (r *Registry) Run(ctx context.Context) error {
	interval := r.cfg.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("swept idle sessions", slog.Int("count", n))
			}
		}
	}
}

// Sweep closes sessions idle longer than the idle timeout and reports how many.
func (r *Registry) Sweep() int {
	cutoff := r.cfg.Now().Add(-r.cfg.IdleTimeout)
	var idle []*Session
	r.mu.Lock()
	for id, entry := range r.entries {
		if entry.lastSeen.Before(cutoff) {
			idle = append(idle, entry.session)
			delete(r.entries, id)
		}
	}
	if len(idle) > 0 {
		r.cfg.Recorder.SessionsActive(len(r.entries))
	}
	r.mu.Unlock()
	for _, sess := range idle {
		sess.Close()
	}
	return len(idle)
}

// Close shuts down every session and rejects further Get calls.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	entries := r.entries
	r.entries = make(map[string]*registryEntry)
	r.cfg.Recorder.SessionsActive(0)
	r.mu.Unlock()
	for _, entry := range entries {
		entry.session.Close()
	}
}
