package authz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vet360/vet360/internal/rbac"
	"github.com/vet360/vet360/internal/shared"
)

type fakeProvider struct {
	events     chan Event
	subscribed atomic.Int32
	signOutErr error
	signOuts   atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{events: make(chan Event, 16)}
}

func (p *fakeProvider) Subscribe(context.Context) (<-chan Event, error) {
	p.subscribed.Add(1)
	return p.events, nil
}

func (p *fakeProvider) SignOut(context.Context) error {
	p.signOuts.Add(1)
	return p.signOutErr
}

func (p *fakeProvider) emit(uid string) {
	if uid == "" {
		p.events <- Event{}
		return
	}
	p.events <- Event{Identity: &Identity{UID: uid, Email: uid + "@vet360.com"}}
}

// gatedStore blocks fetches for gated uids until release is called.
type gatedStore struct {
	*MemoryProfileStore
	mu        sync.Mutex
	gates     map[string]chan struct{}
	updateErr error
}

func newGatedStore(profiles ...Profile) *gatedStore {
	return &gatedStore{MemoryProfileStore: NewMemoryProfileStore(profiles...), gates: map[string]chan struct{}{}}
}

func (s *gatedStore) gate(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[uid] = make(chan struct{})
}

func (s *gatedStore) release(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.gates[uid])
}

func (s *gatedStore) Fetch(ctx context.Context, uid string) (Profile, error) {
	s.mu.Lock()
	gate := s.gates[uid]
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Profile{}, ctx.Err()
		}
	}
	return s.MemoryProfileStore.Fetch(ctx, uid)
}

func (s *gatedStore) Update(ctx context.Context, uid string, update ProfileUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryProfileStore.Update(ctx, uid, update)
}

type countingRecorder struct {
	mu       sync.Mutex
	fetches  map[string]int
	denied   map[string]int
	sessions int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{fetches: map[string]int{}, denied: map[string]int{}}
}

func (r *countingRecorder) ProfileFetch(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches[result]++
}

func (r *countingRecorder) AccessDenied(gate string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied[gate]++
}

func (r *countingRecorder) SessionsActive(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions = n
}

func (r *countingRecorder) fetchCount(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches[result]
}

func (r *countingRecorder) deniedCount(gate string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.denied[gate]
}

type recordingAuditor struct {
	mu      sync.Mutex
	updates []ProfileUpdate
}

func (a *recordingAuditor) ProfileUpdated(_ context.Context, _ string, update ProfileUpdate) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.updates = append(a.updates, update)
	return nil
}

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func staff(uid string, role rbac.Role) Profile {
	return Profile{UID: uid, Email: uid + "@vet360.com", FirstName: "Ana", LastName: "Pérez", Role: role}
}

func newTestSession(t *testing.T, provider Provider, store ProfileStore) (*Session, *countingRecorder, *recordingAuditor) {
	t.Helper()
	recorder := newCountingRecorder()
	auditor := &recordingAuditor{}
	sess := NewSession(Config{
		Provider: provider,
		Store:    store,
		Recorder: recorder,
		Auditor:  auditor,
		Now:      func() time.Time { return fixedNow },
	})
	t.Cleanup(sess.Close)
	return sess, recorder, auditor
}

func initialize(t *testing.T, sess *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sess.Initialize(ctx))
}

func profileUID(sess *Session) string {
	snap := sess.Snapshot()
	if snap.Profile == nil {
		return ""
	}
	return snap.Profile.UID
}

func TestStaleFetchIsDiscardedWhenEarlierIdentityResolvesLast(t *testing.T) {
	provider := newFakeProvider()
	store := newGatedStore(staff("a", rbac.RoleReceptionist), staff("b", rbac.RoleVeterinarian))
	store.gate("a")
	sess, recorder, _ := newTestSession(t, provider, store)

	provider.emit("a")
	provider.emit("b")
	initialize(t, sess)
	require.Equal(t, "b", profileUID(sess))

	store.release("a")
	require.Eventually(t, func() bool { return recorder.fetchCount(FetchStale) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "b", profileUID(sess))
	require.Equal(t, "b", sess.Snapshot().Identity.UID)
	require.True(t, sess.HasPermission(rbac.PermPrescribeMedications))
}

func TestLatestIdentityWinsWhenItResolvesLast(t *testing.T) {
	provider := newFakeProvider()
	store := newGatedStore(staff("a", rbac.RoleReceptionist), staff("b", rbac.RoleVeterinarian))
	store.gate("b")
	sess, _, _ := newTestSession(t, provider, store)

	provider.emit("a")
	provider.emit("b")
	initErr := make(chan error, 1)
	go func() { initErr <- sess.Initialize(context.Background()) }()

	store.release("b")
	require.NoError(t, <-initErr)
	require.Eventually(t, func() bool { return profileUID(sess) == "b" }, time.Second, 5*time.Millisecond)
	require.False(t, sess.HasPermission(rbac.PermCheckInPatients))
}

func TestInitializeSubscribesOnce(t *testing.T) {
	provider := newFakeProvider()
	sess, _, _ := newTestSession(t, provider, NewMemoryProfileStore())
	provider.emit("")
	initialize(t, sess)
	initialize(t, sess)
	require.EqualValues(t, 1, provider.subscribed.Load())
	require.False(t, sess.IsAuthenticated())
}

func TestInitializeHonoursContext(t *testing.T) {
	provider := newFakeProvider()
	sess, _, _ := newTestSession(t, provider, NewMemoryProfileStore())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, sess.Initialize(ctx), context.DeadlineExceeded)
}

func TestSignedOutEventClearsState(t *testing.T) {
	provider := newFakeProvider()
	sess, _, _ := newTestSession(t, provider, NewMemoryProfileStore(staff("a", rbac.RoleAdmin)))
	provider.emit("a")
	initialize(t, sess)
	require.True(t, sess.IsAdmin())

	provider.emit("")
	require.Eventually(t, func() bool { return !sess.IsAuthenticated() }, time.Second, 5*time.Millisecond)
	require.Nil(t, sess.Snapshot().Profile)
	require.False(t, sess.HasPermission(rbac.PermViewPatients))
	require.False(t, sess.IsAccountActive())
	require.False(t, sess.RequiresPasswordChange())
}

func TestMissingProfileLeavesIdentityWithoutPermissions(t *testing.T) {
	provider := newFakeProvider()
	sess, recorder, _ := newTestSession(t, provider, NewMemoryProfileStore())
	provider.emit("ghost")
	initialize(t, sess)

	require.True(t, sess.IsAuthenticated())
	require.Nil(t, sess.Snapshot().Profile)
	require.False(t, sess.HasPermission(rbac.PermViewPatients))
	require.Empty(t, sess.Permissions())
	require.Equal(t, 1, recorder.fetchCount(FetchMissing))
}

func TestUnsetActiveFlagMeansActive(t *testing.T) {
	inactive := false
	disabled := staff("b", rbac.RoleAssistant)
	disabled.Active = &inactive

	provider := newFakeProvider()
	sess, _, _ := newTestSession(t, provider, NewMemoryProfileStore(staff("a", rbac.RoleAssistant), disabled))
	provider.emit("a")
	initialize(t, sess)
	require.True(t, sess.IsAccountActive())

	provider.emit("b")
	require.Eventually(t, func() bool { return profileUID(sess) == "b" }, time.Second, 5*time.Millisecond)
	require.False(t, sess.IsAccountActive())
}

func TestPermissionsAreDerivedFromRole(t *testing.T) {
	tampered := staff("a", rbac.RoleReceptionist)
	tampered.Permissions = []rbac.Permission{rbac.FullAccess}

	provider := newFakeProvider()
	sess, _, _ := newTestSession(t, provider, NewMemoryProfileStore(tampered))
	provider.emit("a")
	initialize(t, sess)

	require.False(t, sess.HasPermission(rbac.PermManageUsers))
	require.True(t, sess.HasPermission(rbac.PermCheckInPatients))
	require.Equal(t, rbac.PermissionsOf(rbac.RoleReceptionist), sess.Snapshot().Profile.Permissions)
}

func TestRoleQueries(t *testing.T) {
	provider := newFakeProvider()
	sess, _, _ := newTestSession(t, provider, NewMemoryProfileStore(staff("it", rbac.RoleITSupport)))
	provider.emit("it")
	initialize(t, sess)

	require.True(t, sess.IsITSupport())
	require.False(t, sess.IsAdmin())
	require.True(t, sess.CanManageUsers())
	require.True(t, sess.CanCreateUsers())
	require.True(t, sess.RequireAdmin())
	require.True(t, sess.CanAssignRole(rbac.RoleAdmin))
	require.False(t, sess.CanAssignRole(rbac.Role("owner")))
}

func TestUpdateProfileWithoutIdentity(t *testing.T) {
	provider := newFakeProvider()
	store := newGatedStore()
	sess, _, auditor := newTestSession(t, provider, store)
	provider.emit("")
	initialize(t, sess)

	name := "Luis"
	before := sess.Snapshot()
	err := sess.UpdateProfile(context.Background(), ProfileUpdate{FirstName: &name})
	require.ErrorIs(t, err, shared.ErrNotAuthenticated)
	require.Equal(t, before, sess.Snapshot())
	require.Empty(t, auditor.updates)
}

func TestUpdateProfileMergesAndRederives(t *testing.T) {
	provider := newFakeProvider()
	store := NewMemoryProfileStore(staff("a", rbac.RoleAssistant))
	sess, _, auditor := newTestSession(t, provider, store)
	provider.emit("a")
	initialize(t, sess)
	require.False(t, sess.HasPermission(rbac.PermPrescribeMedications))

	role := rbac.RoleVeterinarian
	dept := rbac.DepartmentSurgery
	require.NoError(t, sess.UpdateProfile(context.Background(), ProfileUpdate{Role: &role, Department: &dept}))

	snap := sess.Snapshot()
	require.Equal(t, rbac.RoleVeterinarian, snap.Profile.Role)
	require.Equal(t, rbac.DepartmentSurgery, snap.Profile.Department)
	require.Equal(t, "Ana", snap.Profile.FirstName)
	require.Equal(t, fixedNow, snap.Profile.UpdatedAt)
	require.True(t, sess.HasPermission(rbac.PermPrescribeMedications))

	stored, err := store.Fetch(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleVeterinarian, stored.Role)
	require.Equal(t, fixedNow, stored.UpdatedAt)

	require.Len(t, auditor.updates, 1)
	require.Equal(t, fixedNow, auditor.updates[0].UpdatedAt)
}

func TestUpdateProfileStoreFailures(t *testing.T) {
	provider := newFakeProvider()
	store := newGatedStore(staff("a", rbac.RoleAssistant))
	sess, _, auditor := newTestSession(t, provider, store)
	provider.emit("a")
	initialize(t, sess)
	before := sess.Snapshot()

	name := "Luis"
	store.updateErr = errors.New("connection reset")
	err := sess.UpdateProfile(context.Background(), ProfileUpdate{FirstName: &name})
	require.ErrorIs(t, err, shared.ErrStoreUnavailable)
	require.ErrorContains(t, err, "connection reset")
	require.Equal(t, before, sess.Snapshot())

	store.updateErr = shared.ErrNotFound
	err = sess.UpdateProfile(context.Background(), ProfileUpdate{FirstName: &name})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.NotErrorIs(t, err, shared.ErrStoreUnavailable)
	require.Equal(t, before, sess.Snapshot())
	require.Empty(t, auditor.updates)
}

func TestSignOut(t *testing.T) {
	provider := newFakeProvider()
	sess, _, _ := newTestSession(t, provider, NewMemoryProfileStore(staff("a", rbac.RoleAdmin)))
	provider.emit("a")
	initialize(t, sess)

	provider.signOutErr = errors.New("provider offline")
	require.ErrorIs(t, sess.SignOut(context.Background()), shared.ErrStoreUnavailable)
	require.True(t, sess.IsAuthenticated())
	require.True(t, sess.IsAdmin())

	provider.signOutErr = nil
	require.NoError(t, sess.SignOut(context.Background()))
	require.False(t, sess.IsAuthenticated())
	require.Nil(t, sess.Snapshot().Profile)
	require.EqualValues(t, 2, provider.signOuts.Load())
}

func TestSignOutDiscardsInFlightFetch(t *testing.T) {
	provider := newFakeProvider()
	store := newGatedStore(staff("a", rbac.RoleAdmin))
	store.gate("a")
	sess, recorder, _ := newTestSession(t, provider, store)
	initErr := make(chan error, 1)
	go func() { initErr <- sess.Initialize(context.Background()) }()

	provider.emit("a")
	require.Eventually(t, sess.IsAuthenticated, time.Second, 5*time.Millisecond)
	require.NoError(t, sess.SignOut(context.Background()))
	require.NoError(t, <-initErr)

	store.release("a")
	require.Eventually(t, func() bool { return recorder.fetchCount(FetchStale) == 1 }, time.Second, 5*time.Millisecond)
	require.False(t, sess.IsAuthenticated())
	require.Nil(t, sess.Snapshot().Profile)
}

func TestAuthorizeOrder(t *testing.T) {
	inactive := false
	disabled := staff("off", rbac.RoleAdmin)
	disabled.Active = &inactive
	fresh := staff("new", rbac.RoleAdmin)
	fresh.RequirePasswordChange = true

	store := NewMemoryProfileStore(disabled, fresh, staff("vet", rbac.RoleVeterinarian))
	tests := []struct {
		uid      string
		req      Requirements
		expected Decision
	}{
		{"", Requirements{}, Unauthenticated},
		{"off", Requirements{Admin: true}, Inactive},
		{"vet", Requirements{Admin: true}, Forbidden},
		{"vet", Requirements{Permissions: []rbac.Permission{rbac.PermViewPatients, rbac.PermManageBilling}}, Forbidden},
		{"vet", Requirements{Permissions: []rbac.Permission{rbac.PermViewPatients, rbac.PermViewLabResults}}, Allowed},
		{"new", Requirements{Admin: true, Permissions: []rbac.Permission{"anything_at_all"}}, PasswordChangeRequired},
	}
	for _, tt := range tests {
		t.Run(tt.uid+"/"+tt.expected.String(), func(t *testing.T) {
			provider := newFakeProvider()
			sess, _, _ := newTestSession(t, provider, store)
			provider.emit(tt.uid)
			initialize(t, sess)
			require.Equal(t, tt.expected, sess.Authorize(tt.req))
		})
	}
}

func TestDenialsAreCounted(t *testing.T) {
	provider := newFakeProvider()
	sess, recorder, _ := newTestSession(t, provider, NewMemoryProfileStore(staff("r", rbac.RoleReceptionist)))
	provider.emit("")
	initialize(t, sess)
	require.False(t, sess.RequireAuthenticated())
	require.Equal(t, 1, recorder.deniedCount("authenticated"))

	provider.emit("r")
	require.Eventually(t, func() bool { return profileUID(sess) == "r" }, time.Second, 5*time.Millisecond)
	require.True(t, sess.RequireAuthenticated())
	require.False(t, sess.RequirePermission(rbac.PermDeletePatients))
	require.False(t, sess.RequireAdmin())
	require.Equal(t, 1, recorder.deniedCount("permission"))
	require.Equal(t, 1, recorder.deniedCount("admin"))
}

func TestDecisionStatus(t *testing.T) {
	require.Equal(t, 200, Allowed.Status())
	require.Equal(t, 401, Unauthenticated.Status())
	require.Equal(t, 403, Inactive.Status())
	require.Equal(t, 428, PasswordChangeRequired.Status())
	text, err := Forbidden.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "forbidden", string(text))
}

func TestAwaitIdentity(t *testing.T) {
	provider := newFakeProvider()
	store := newGatedStore(staff("a", rbac.RoleAssistant))
	sess, _, _ := newTestSession(t, provider, store)
	provider.emit("")
	initialize(t, sess)
	require.NoError(t, sess.AwaitIdentity(context.Background(), ""))

	store.gate("a")
	provider.emit("a")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, sess.AwaitIdentity(ctx, "a"), context.DeadlineExceeded)

	store.release("a")
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, sess.AwaitIdentity(ctx2, "a"))
	require.Equal(t, "a", profileUID(sess))
}

// lateStore reads the stored profile and then holds it until released, so the
// returned snapshot can predate writes made while it waits.
type lateStore struct {
	*MemoryProfileStore
	read    chan struct{}
	release chan struct{}
	once    sync.Once
}

func newLateStore(profiles ...Profile) *lateStore {
	return &lateStore{
		MemoryProfileStore: NewMemoryProfileStore(profiles...),
		read:               make(chan struct{}),
		release:            make(chan struct{}),
	}
}

func (s *lateStore) Fetch(ctx context.Context, uid string) (Profile, error) {
	profile, err := s.MemoryProfileStore.Fetch(ctx, uid)
	s.once.Do(func() { close(s.read) })
	select {
	case <-s.release:
	case <-ctx.Done():
		return Profile{}, ctx.Err()
	}
	return profile, err
}

func TestUpdateProfileSurvivesOlderFetch(t *testing.T) {
	provider := newFakeProvider()
	store := newLateStore(staff("a", rbac.RoleAssistant))
	sess, recorder, _ := newTestSession(t, provider, store)
	initErr := make(chan error, 1)
	go func() { initErr <- sess.Initialize(context.Background()) }()

	provider.emit("a")
	<-store.read
	role := rbac.RoleVeterinarian
	require.NoError(t, sess.UpdateProfile(context.Background(), ProfileUpdate{Role: &role}))

	close(store.release)
	require.NoError(t, <-initErr)
	require.Equal(t, 1, recorder.fetchCount(FetchLoaded))

	snap := sess.Snapshot()
	require.Equal(t, rbac.RoleVeterinarian, snap.Profile.Role)
	require.Equal(t, "Ana", snap.Profile.FirstName)
	require.True(t, sess.HasPermission(rbac.PermPrescribeMedications))
}

func TestRefreshReloadsChangedProfile(t *testing.T) {
	provider := newFakeProvider()
	store := NewMemoryProfileStore(staff("a", rbac.RoleAdmin))
	sess, _, _ := newTestSession(t, provider, store)
	provider.emit("a")
	initialize(t, sess)
	require.True(t, sess.IsAccountActive())
	require.True(t, sess.CanManageUsers())

	inactive := false
	role := rbac.RoleReceptionist
	require.NoError(t, store.Update(context.Background(), "a", ProfileUpdate{Active: &inactive, Role: &role, UpdatedAt: fixedNow}))
	require.True(t, sess.IsAccountActive())

	sess.Refresh()
	require.Eventually(t, func() bool {
		return !sess.IsAccountActive() && !sess.CanManageUsers()
	}, time.Second, 5*time.Millisecond)
	require.True(t, sess.HasPermission(rbac.PermCheckInPatients))
	require.Equal(t, "a", sess.Snapshot().Identity.UID)
}

func TestRefreshWithoutIdentityDoesNothing(t *testing.T) {
	provider := newFakeProvider()
	sess, recorder, _ := newTestSession(t, provider, NewMemoryProfileStore(staff("a", rbac.RoleAdmin)))
	provider.emit("")
	initialize(t, sess)

	sess.Refresh()
	sess.Refresh()
	require.Never(t, func() bool {
		return recorder.fetchCount(FetchLoaded)+recorder.fetchCount(FetchMissing) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
	require.False(t, sess.IsAuthenticated())
}
