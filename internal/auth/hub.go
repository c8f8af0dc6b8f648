package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vet360/vet360/internal/authz"
)

// IdentityHub keeps the signed-in identity of each browsing context in Redis
// and publishes every change on a per-context channel.
type IdentityHub struct {
	client  *redis.Client
	service *Service
	ttl     time.Duration
	logger  *slog.Logger
}

// NewIdentityHub constructs an IdentityHub.
func NewIdentityHub(client *redis.Client, service *Service, ttl time.Duration, logger *slog.Logger) *IdentityHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityHub{client: client, service: service, ttl: ttl, logger: logger}
}

func identityKey(contextID string) string {
	return "vet360:identity:" + contextID
}

func identityChannel(contextID string) string {
	return identityKey(contextID) + ":events"
}

// SignIn authenticates the credentials and binds the identity to contextID.
func (h *IdentityHub) SignIn(ctx context.Context, contextID, email, password string) (authz.Identity, error) {
	cred, err := h.service.Authenticate(ctx, email, password)
	if err != nil {
		return authz.Identity{}, err
	}
	identity := authz.Identity{UID: cred.UID, Email: cred.Email}
	if err := h.Bind(ctx, contextID, identity); err != nil {
		return authz.Identity{}, err
	}
	h.logger.Info("signed in", slog.String("uid", identity.UID), slog.String("context_id", contextID))
	return identity, nil
}

// Bind stores identity for contextID and announces it.
func (h *IdentityHub) Bind(ctx context.Context, contextID string, identity authz.Identity) error {
	payload, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("auth: encode identity: %w", err)
	}
	if err := h.client.Set(ctx, identityKey(contextID), payload, h.ttl).Err(); err != nil {
		return fmt.Errorf("auth: store identity: %w", err)
	}
	if err := h.client.Publish(ctx, identityChannel(contextID), payload).Err(); err != nil {
		return fmt.Errorf("auth: publish identity: %w", err)
	}
	return nil
}

// SignOut drops the identity bound to contextID and announces the sign-out.
func (h *IdentityHub) SignOut(ctx context.Context, contextID string) error {
	if err := h.client.Del(ctx, identityKey(contextID)).Err(); err != nil {
		return fmt.Errorf("auth: delete identity: %w", err)
	}
	if err := h.client.Publish(ctx, identityChannel(contextID), "").Err(); err != nil {
		return fmt.Errorf("auth: publish sign out: %w", err)
	}
	return nil
}

// Current returns the identity bound to contextID, or nil.
func (h *IdentityHub) Current(ctx context.Context, contextID string) (*authz.Identity, error) {
	payload, err := h.client.Get(ctx, identityKey(contextID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load identity: %w", err)
	}
	return decodeIdentity(payload)
}

func decodeIdentity(payload []byte) (*authz.Identity, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var identity authz.Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return nil, fmt.Errorf("auth: decode identity: %w", err)
	}
	if identity.UID == "" {
		return nil, nil
	}
	return &identity, nil
}

// ForContext returns the session provider for one browsing context.
func (h *IdentityHub) ForContext(contextID string) authz.Provider {
	return &contextProvider{hub: h, contextID: contextID}
}

type contextProvider struct {
	hub       *IdentityHub
	contextID string
}

// Subscribe emits the current identity first, then every published change.
func (p *contextProvider) Subscribe(ctx context.Context) (<-chan authz.Event, error) {
	pubsub := p.hub.client.Subscribe(ctx, identityChannel(p.contextID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("auth: subscribe identity: %w", err)
	}
	current, err := p.hub.Current(ctx, p.contextID)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	events := make(chan authz.Event, 4)
	go func() {
		defer close(events)
		defer func() { _ = pubsub.Close() }()
		send := func(ev authz.Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !send(authz.Event{Identity: current}) {
			return
		}
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				identity, err := decodeIdentity([]byte(msg.Payload))
				if err != nil {
					p.hub.logger.Warn("drop identity event", slog.String("context_id", p.contextID), slog.Any("error", err))
					continue
				}
				if !send(authz.Event{Identity: identity}) {
					return
				}
			}
		}
	}()
	return events, nil
}

func (p *contextProvider) SignOut(ctx context.Context) error {
	return p.hub.SignOut(ctx, p.contextID)
}
