package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/clock"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotencyReplayedHeader = "X-Idempotency-Replayed"

	DefaultIdempotencyTTL = 24 * time.Hour
	pendingMarker         = "pending"
)

// StoredResponse is a completed response kept for replay.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore records which idempotency keys are in flight or done.
type IdempotencyStore interface {
	// Reserve marks key as in flight. It returns false if the key exists.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Load returns the stored response, or nil while the key is in flight.
	Load(ctx context.Context, key string) (*StoredResponse, error)
	Save(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RedisIdempotencyStore keeps keys in Redis with SETNX.
type RedisIdempotencyStore struct {
	client *redis.Client
	prefix string
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{client: client, prefix: "rxchain:idem:"}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, pendingMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Load(ctx context.Context, key string) (*StoredResponse, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) || string(raw) == pendingMarker {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load idempotency key: %w", err)
	}
	var resp StoredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &resp, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode stored response: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("save idempotency key: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

type memoryEntry struct {
	resp    *StoredResponse
	expires time.Time
}

// MemoryIdempotencyStore is a single-process store used when Redis is not
// configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	clock   clock.Clock
}

// NewMemoryIdempotencyStore expires keys against clk; nil means the system
// clock.
func NewMemoryIdempotencyStore(clk clock.Clock) *MemoryIdempotencyStore {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MemoryIdempotencyStore{entries: make(map[string]memoryEntry), clock: clk}
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if e, ok := s.entries[key]; ok && now.Before(e.expires) {
		return false, nil
	}
	s.entries[key] = memoryEntry{expires: now.Add(ttl)}
	return true, nil
}

func (s *MemoryIdempotencyStore) Load(_ context.Context, key string) (*StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !s.clock.Now().Before(e.expires) {
		return nil, nil
	}
	return e.resp, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{resp: &resp, expires: s.clock.Now().Add(ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// bodyRecorder tees the response body so it can be stored.
type bodyRecorder struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *bodyRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(w.ResponseWriter).Hijack()
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped to the caller and route. A key whose first attempt failed
// or ended in a 5xx is released so the client can retry it. Requests without
// the header pass through untouched.
func Idempotency(store IdempotencyStore, ttl time.Duration, logger zerolog.Logger) echo.MiddlewareFunc {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(IdempotencyKeyHeader)
			if header == "" {
				return next(c)
			}
			if len(header) > 255 {
				return apperr.Validation("%s must be at most 255 characters", IdempotencyKeyHeader)
			}

			ctx := c.Request().Context()
			uid, _ := c.Get("user_id").(string)
			key := fmt.Sprintf("%s|%s|%s|%s", uid, c.Request().Method, c.Request().URL.Path, header)

			reserved, err := store.Reserve(ctx, key, ttl)
			if err != nil {
				logger.Warn().Err(err).Msg("idempotency store unavailable, proceeding without replay protection")
				return next(c)
			}
			if !reserved {
				stored, err := store.Load(ctx, key)
				if err != nil {
					return err
				}
				if stored == nil {
					return apperr.Conflict("a request with this %s is still in progress", IdempotencyKeyHeader)
				}
				c.Response().Header().Set(IdempotencyReplayedHeader, "true")
				return c.Blob(stored.Status, stored.ContentType, stored.Body)
			}

			rec := &bodyRecorder{ResponseWriter: c.Response().Writer}
			c.Response().Writer = rec

			err = next(c)

			// Detached so a cancelled request still settles its key.
			bg := context.WithoutCancel(ctx)
			status := c.Response().Status
			if err != nil || status >= http.StatusInternalServerError {
				if rerr := store.Release(bg, key); rerr != nil {
					logger.Warn().Err(rerr).Msg("release idempotency key")
				}
				return err
			}
			resp := StoredResponse{
				Status:      status,
				ContentType: c.Response().Header().Get(echo.HeaderContentType),
				Body:        rec.buf.Bytes(),
			}
			if serr := store.Save(bg, key, resp, ttl); serr != nil {
				logger.Warn().Err(serr).Msg("save idempotency response")
			}
			return nil
		}
	}
}
