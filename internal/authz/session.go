package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vet360/vet360/internal/rbac"
	"github.com/vet360/vet360/internal/shared"
)

// Config wires a Session to its collaborators.
type Config struct {
	Provider Provider
	Store    ProfileStore
	Logger   *slog.Logger
	Recorder Recorder
	Auditor  Auditor
	Now      func() time.Time
}

var errSessionClosed = errors.New("authz: session closed")

// Session tracks the identity and profile of one browsing context.
type Session struct {
	provider Provider
	store    ProfileStore
	logger   *slog.Logger
	recorder Recorder
	auditor  Auditor
	now      func() time.Time

	mu         sync.RWMutex
	identity   *Identity
	profile    *Profile
	generation uint64
	settled    uint64
	changed    chan struct{}
	// merged holds updates applied locally during the current generation so
	// a fetch that read the store before them does not undo them.
	merged  []ProfileUpdate
	refresh chan struct{}

	initOnce  sync.Once
	initErr   error
	ready     chan struct{}
	readyOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	fetches   sync.WaitGroup
}

// NewSession constructs a Session. Initialize must be called before use.
func NewSession(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		provider: cfg.Provider,
		store:    cfg.Store,
		logger:   logger,
		recorder: recorder,
		auditor:  cfg.Auditor,
		now:      now,
		ready:    make(chan struct{}),
		changed:  make(chan struct{}),
		refresh:  make(chan struct{}, 1),
	}
}

// Initialize subscribes to the provider once and waits until the first
// identity notification has settled or ctx ends. Later calls only wait.
func (s *Session) Initialize(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.start()
	})
	if s.initErr != nil {
		return s.initErr
	}
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ready is closed once the first identity notification has settled.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

func (s *Session) start() error {
	if s.provider == nil || s.store == nil {
		return errors.New("authz: session requires provider and store")
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	events, err := s.provider.Subscribe(loopCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("authz: subscribe: %w", err)
	}
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, events)
	return nil
}

func (s *Session) loop(ctx context.Context, events <-chan Event) {
	defer close(s.done)
	defer s.markReady()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.handle(ctx, ev)
		case <-s.refresh:
			s.reload(ctx)
		}
	}
}

// Refresh asks the session to reload the profile of the current identity, as
// after a change made on another account's behalf. It does not block.
func (s *Session) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

func (s *Session) reload(ctx context.Context) {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.merged = nil
	gen := s.generation
	identity := *s.identity
	s.mu.Unlock()

	s.fetches.Add(1)
	go s.fetch(ctx, gen, identity)
}

func (s *Session) uid() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.UID
}

func (s *Session) handle(ctx context.Context, ev Event) {
	s.mu.Lock()
	s.generation++
	s.merged = nil
	gen := s.generation
	if ev.Identity == nil {
		s.identity = nil
		s.profile = nil
		s.settleLocked()
		s.mu.Unlock()
		s.markReady()
		return
	}
	identity := *ev.Identity
	if s.identity == nil || s.identity.UID != identity.UID {
		s.profile = nil
	}
	s.identity = &identity
	s.mu.Unlock()

	s.fetches.Add(1)
	go s.fetch(ctx, gen, identity)
}

// fetch loads the profile for identity and adopts it only when gen is still
// the current generation.
func (s *Session) fetch(ctx context.Context, gen uint64, identity Identity) {
	defer s.fetches.Done()

	var loaded *Profile
	result := FetchLoaded
	profile, err := s.store.Fetch(ctx, identity.UID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		result = FetchMissing
		s.logger.Warn("profile not found", slog.String("uid", identity.UID))
	case err != nil:
		result = FetchFailed
		s.logger.Error("fetch profile", slog.String("uid", identity.UID), slog.Any("error", err))
	default:
		if profile.UID == "" {
			profile.UID = identity.UID
		}
		p := profile.WithPermissions()
		loaded = &p
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		s.recorder.ProfileFetch(FetchStale)
		return
	}
	if loaded != nil {
		for _, update := range s.merged {
			if loaded.UpdatedAt.Before(update.UpdatedAt) {
				update.Apply(loaded)
			}
		}
	}
	s.profile = loaded
	s.settleLocked()
	s.mu.Unlock()

	s.recorder.ProfileFetch(result)
	s.markReady()
}

// settleLocked records that the current generation has resolved and wakes
// AwaitIdentity callers. s.mu must be held for writing.
func (s *Session) settleLocked() {
	s.settled = s.generation
	close(s.changed)
	s.changed = make(chan struct{})
}

// AwaitIdentity blocks until the latest notification has settled on uid, or
// on no identity when uid is empty.
func (s *Session) AwaitIdentity(ctx context.Context, uid string) error {
	for {
		s.mu.RLock()
		current := ""
		if s.identity != nil {
			current = s.identity.UID
		}
		done := current == uid && s.settled == s.generation
		changed := s.changed
		s.mu.RUnlock()
		if done {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// Close stops the event loop and waits for in-flight fetches.
func (s *Session) Close() {
	s.initOnce.Do(func() {
		s.initErr = errSessionClosed
	})
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.fetches.Wait()
}

// IsAuthenticated reports whether an identity is present.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity != nil
}

// HasPermission evaluates perm against the current profile role.
func (s *Session) HasPermission(perm rbac.Permission) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return false
	}
	return rbac.HasPermission(s.profile.Role, perm)
}

// Permissions returns the permission set derived from the current role.
func (s *Session) Permissions() []rbac.Permission {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return []rbac.Permission{}
	}
	return rbac.PermissionsOf(s.profile.Role)
}

func (s *Session) hasRole(role rbac.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil && s.profile.Role == role
}

// IsAdmin reports whether the profile role is admin.
func (s *Session) IsAdmin() bool { return s.hasRole(rbac.RoleAdmin) }

// IsITSupport reports whether the profile role is it_support.
func (s *Session) IsITSupport() bool { return s.hasRole(rbac.RoleITSupport) }

// CanManageUsers reports whether the profile grants manage_users.
func (s *Session) CanManageUsers() bool { return s.HasPermission(rbac.PermManageUsers) }

// CanCreateUsers reports whether the profile grants create_users.
func (s *Session) CanCreateUsers() bool { return s.HasPermission(rbac.PermCreateUsers) }

// CanAssignRole reports whether the current profile may grant target.
func (s *Session) CanAssignRole(target rbac.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return false
	}
	return rbac.CanAssign(s.profile.Role, target)
}

// IsAccountActive is false without a profile.
func (s *Session) IsAccountActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil && s.profile.IsActive()
}

// RequiresPasswordChange is false without a profile.
func (s *Session) RequiresPasswordChange() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile != nil && s.profile.RequirePasswordChange
}

// RequireAuthenticated is IsAuthenticated with denials logged and counted.
func (s *Session) RequireAuthenticated() bool {
	if s.IsAuthenticated() {
		return true
	}
	s.deny("authenticated")
	return false
}

// RequirePermission is HasPermission with denials logged and counted.
func (s *Session) RequirePermission(perm rbac.Permission) bool {
	if s.HasPermission(perm) {
		return true
	}
	s.deny("permission", slog.String("permission", string(perm)))
	return false
}

// RequireAdmin admits admin and it_support.
func (s *Session) RequireAdmin() bool {
	if s.IsAdmin() || s.IsITSupport() {
		return true
	}
	s.deny("admin")
	return false
}

func (s *Session) deny(gate string, attrs ...any) {
	s.recorder.AccessDenied(gate)
	s.mu.RLock()
	if s.identity != nil {
		attrs = append(attrs, slog.String("uid", s.identity.UID))
	}
	s.mu.RUnlock()
	s.logger.Info("access denied", append([]any{slog.String("gate", gate)}, attrs...)...)
}

// UpdateProfile forwards a partial update to the store and merges it on success.
func (s *Session) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	s.mu.RLock()
	var identity Identity
	authenticated := s.identity != nil
	if authenticated {
		identity = *s.identity
	}
	s.mu.RUnlock()
	if !authenticated {
		return shared.ErrNotAuthenticated
	}

	update.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, identity.UID, update); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("authz: update profile %s: %w", identity.UID, shared.ErrNotFound)
		}
		return fmt.Errorf("%w: update profile: %w", shared.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	if s.identity != nil && s.identity.UID == identity.UID {
		if s.profile == nil {
			s.profile = &Profile{UID: identity.UID, Email: identity.Email}
		}
		update.Apply(s.profile)
		s.merged = append(s.merged, update)
	}
	s.mu.Unlock()

	if s.auditor != nil {
		if err := s.auditor.ProfileUpdated(ctx, identity.UID, update); err != nil {
			s.logger.Warn("audit profile update", slog.String("uid", identity.UID), slog.Any("error", err))
		}
	}
	return nil
}

// SignOut terminates the identity at the provider, then clears local state.
func (s *Session) SignOut(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("%w: sign out: %w", shared.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	s.generation++
	s.merged = nil
	s.identity = nil
	s.profile = nil
	s.settleLocked()
	s.mu.Unlock()
	s.markReady()
	return nil
}

// Snapshot returns a copy of the current identity and profile.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var snap Snapshot
	if s.identity != nil {
		identity := *s.identity
		snap.Identity = &identity
	}
	if s.profile != nil {
		profile := s.profile.WithPermissions()
		snap.Profile = &profile
	}
	return snap
}
