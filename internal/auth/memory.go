package auth

import (
	"context"
	"strings"
	"sync"

	"github.com/vet360/vet360/internal/authz"
	"github.com/vet360/vet360/internal/shared"
)

// MemoryProvider is an in-process session provider for development and tests.
type MemoryProvider struct {
	mu          sync.Mutex
	current     *authz.Identity
	subscribers map[chan authz.Event]context.Context
	signOutErr  error
}

// NewMemoryProvider constructs a signed-out MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{subscribers: make(map[chan authz.Event]context.Context)}
}

// Subscribe emits the current identity first, then every change until ctx ends.
func (p *MemoryProvider) Subscribe(ctx context.Context) (<-chan authz.Event, error) {
	ch := make(chan authz.Event, 8)
	p.mu.Lock()
	ch <- authz.Event{Identity: copyIdentity(p.current)}
	p.subscribers[ch] = ctx
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.subscribers, ch)
		p.mu.Unlock()
	}()
	return ch, nil
}

// SignIn replaces the current identity and notifies subscribers.
func (p *MemoryProvider) SignIn(identity authz.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = &identity
	p.broadcastLocked()
}

// SignOut clears the current identity unless a failure was injected.
func (p *MemoryProvider) SignOut(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.signOutErr != nil {
		return p.signOutErr
	}
	p.current = nil
	p.broadcastLocked()
	return nil
}

// FailSignOut makes SignOut return err until called again with nil.
func (p *MemoryProvider) FailSignOut(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signOutErr = err
}

func (p *MemoryProvider) broadcastLocked() {
	for ch, ctx := range p.subscribers {
		select {
		case ch <- authz.Event{Identity: copyIdentity(p.current)}:
		case <-ctx.Done():
		}
	}
}

func copyIdentity(identity *authz.Identity) *authz.Identity {
	if identity == nil {
		return nil
	}
	cp := *identity
	return &cp
}

var _ authz.Provider = (*MemoryProvider)(nil)

// MemoryRepository is a map-backed credential Repository keyed by email.
type MemoryRepository struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryRepository constructs a MemoryRepository seeded with creds.
func NewMemoryRepository(creds ...Credential) *MemoryRepository {
	repo := &MemoryRepository{creds: make(map[string]Credential, len(creds))}
	for _, cred := range creds {
		repo.creds[strings.ToLower(cred.Email)] = cred
	}
	return repo
}

// FindByEmail returns the credential registered for email.
func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &cred, nil
}

// Create registers cred, rejecting duplicate emails.
func (r *MemoryRepository) Create(_ context.Context, cred Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(cred.Email)
	if _, ok := r.creds[key]; ok {
		return shared.ErrConflict
	}
	r.creds[key] = cred
	return nil
}

var _ Repository = (*MemoryRepository)(nil)
