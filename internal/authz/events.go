package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const profileChangedChannel = "vet360:profile:changed"

type profileChange struct {
	UID    string `json:"uid"`
	Origin string `json:"origin"`
}

// ProfileEvents fans profile changes out to every instance through Redis.
// Changes are applied locally at once; the instance skips its own echoes.
type ProfileEvents struct {
	client  *redis.Client
	origin  string
	refresh func(uid string)
	logger  *slog.Logger
}

// NewProfileEvents constructs ProfileEvents. refresh is called with the uid of
// every change, local or remote.
func NewProfileEvents(client *redis.Client, refresh func(uid string), logger *slog.Logger) *ProfileEvents {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileEvents{client: client, origin: uuid.NewString(), refresh: refresh, logger: logger}
}

// ProfileChanged refreshes local sessions of uid and announces the change.
func (e *ProfileEvents) ProfileChanged(ctx context.Context, uid string) error {
	if e.refresh != nil {
		e.refresh(uid)
	}
	payload, err := json.Marshal(profileChange{UID: uid, Origin: e.origin})
	if err != nil {
		return fmt.Errorf("authz: encode profile change: %w", err)
	}
	if err := e.client.Publish(ctx, profileChangedChannel, payload).Err(); err != nil {
		return fmt.Errorf("authz: publish profile change: %w", err)
	}
	return nil
}

// Listen applies changes announced by other instances until ctx ends.
func (e *ProfileEvents) Listen(ctx context.Context) error {
	pubsub := e.client.Subscribe(ctx, profileChangedChannel)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("authz: subscribe profile changes: %w", err)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var change profileChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil || change.UID == "" {
				e.logger.Warn("drop profile change", slog.String("payload", msg.Payload))
				continue
			}
			if change.Origin == e.origin || e.refresh == nil {
				continue
			}
			e.refresh(change.UID)
		}
	}
}

var _ ProfileNotifier = (*ProfileEvents)(nil)
