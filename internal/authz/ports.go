package authz

import "context"

// Provider reports identity changes and terminates identities.
type Provider interface {
	// Subscribe delivers identity changes in order until ctx ends.
	Subscribe(ctx context.Context) (<-chan Event, error)
	SignOut(ctx context.Context) error
}

// ProfileStore fetches and updates profile records by uid.
type ProfileStore interface {
	// Fetch returns shared.ErrNotFound when no record exists.
	Fetch(ctx context.Context, uid string) (Profile, error)
	Update(ctx context.Context, uid string, update ProfileUpdate) error
}

// Recorder receives session outcomes for metrics.
type Recorder interface {
	ProfileFetch(result string)
	AccessDenied(gate string)
	SessionsActive(n int)
}

// Auditor is notified after each successful profile update.
type Auditor interface {
	ProfileUpdated(ctx context.Context, uid string, update ProfileUpdate) error
}

// Profile fetch results reported to Recorder.
const (
	FetchLoaded  = "loaded"
	FetchMissing = "missing"
	FetchFailed  = "failed"
	FetchStale   = "stale"
)

type nopRecorder struct{}

func (nopRecorder) ProfileFetch(string) {}
func (nopRecorder) AccessDenied(string) {}
func (nopRecorder) SessionsActive(int)  {}

// ProfileNotifier is told when a profile changed outside its owner's session,
// so live sessions of that uid can reload it.
type ProfileNotifier interface {
	ProfileChanged(ctx context.Context, uid string) error
}
