package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ContextManager issues the cookie that identifies a browsing context and
// tracks live contexts in Redis.
type ContextManager struct {
	client     *redis.Client
	cookieName string
	ttl        time.Duration
	secure     bool
}

// NewContextManager constructs a ContextManager.
func NewContextManager(client *redis.Client, cookieName string, ttl time.Duration, secure bool) *ContextManager {
	return &ContextManager{
		client:     client,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Ensure returns the browsing-context id of r, issuing a fresh one when the
// cookie is missing, malformed or unknown. The cookie and its Redis entry are
// refreshed on every call.
func (cm *ContextManager) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error) {
	id := ""
	if cookie, err := r.Cookie(cm.cookieName); err == nil {
		if _, perr := uuid.Parse(cookie.Value); perr == nil {
			id = cookie.Value
		}
	} else if !errors.Is(err, http.ErrNoCookie) {
		return "", err
	}

	if id != "" {
		ok, err := cm.client.Expire(ctx, cm.redisKey(id), cm.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("shared: refresh context: %w", err)
		}
		if !ok {
			id = ""
		}
	}

	if id == "" {
		id = uuid.NewString()
		if err := cm.client.Set(ctx, cm.redisKey(id), time.Now().UTC().Format(time.RFC3339), cm.ttl).Err(); err != nil {
			return "", fmt.Errorf("shared: register context: %w", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cm.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   cm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(cm.ttl),
	})
	return id, nil
}

// Forget drops the browsing context and expires its cookie.
func (cm *ContextManager) Forget(ctx context.Context, w http.ResponseWriter, id string) error {
	if err := cm.client.Del(ctx, cm.redisKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cm.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cm.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// TTL exposes the configured context lifetime.
func (cm *ContextManager) TTL() time.Duration {
	return cm.ttl
}

// CookieName returns the cookie carrying the context id.
func (cm *ContextManager) CookieName() string {
	return cm.cookieName
}

func (cm *ContextManager) redisKey(id string) string {
	return "vet360:context:" + id
}
