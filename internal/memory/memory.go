// Package memory persists interview transcripts for context-aware prompts
// and later analysis. A Redis-backed store is used when configured; the
// in-memory store is the fallback for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/michalfoune/rizma-heygen/internal/interview"
)

// TTL is how long a stored transcript survives before Redis expires it.
const TTL = 30 * 24 * time.Hour

func transcriptKey(sessionID string) string {
	return "interview:transcript:" + sessionID
}

// InMemory keeps transcripts in process memory. Safe for concurrent use.
type InMemory struct {
	mu    sync.RWMutex
	turns map[string][]interview.Turn
}

// NewInMemory returns an empty in-process store.
func NewInMemory() *InMemory {
	return &InMemory{turns: make(map[string][]interview.Turn)}
}

// Append records one turn for the session.
func (m *InMemory) Append(_ context.Context, sessionID string, t interview.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[sessionID] = append(m.turns[sessionID], t)
	return nil
}

// GetContext returns the session's stored turns in order.
func (m *InMemory) GetContext(_ context.Context, sessionID string) ([]interview.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]interview.Turn(nil), m.turns[sessionID]...), nil
}

// Clear drops everything stored for the session.
func (m *InMemory) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, sessionID)
	return nil
}

// Redis stores each session transcript as a list of JSON-encoded turns
// under interview:transcript:<id>, refreshed to a 30 day expiry on every
// write. Entries age out on their own; Clear exists for explicit cleanup.
type Redis struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedis connects to the given Redis URL and pings it. Callers should
// fall back to NewInMemory when this fails.
func NewRedis(ctx context.Context, url string, log zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("memory: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("memory: redis ping: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("connected to redis for memory storage")
	return &Redis{client: client, log: log}, nil
}

// Append pushes the turn onto the session list and refreshes its expiry.
func (r *Redis) Append(ctx context.Context, sessionID string, t interview.Turn) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("memory: encode turn: %w", err)
	}
	key := transcriptKey(sessionID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("memory: redis store: %w", err)
	}
	return nil
}

// GetContext reads the full stored transcript for the session. Malformed
// entries are skipped rather than failing the whole read.
func (r *Redis) GetContext(ctx context.Context, sessionID string) ([]interview.Turn, error) {
	raw, err := r.client.LRange(ctx, transcriptKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memory: redis retrieve: %w", err)
	}
	turns := make([]interview.Turn, 0, len(raw))
	for _, item := range raw {
		var t interview.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			r.log.Warn().Err(err).Str("sessionId", sessionID).Msg("skipping malformed memory entry")
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Recent returns up to limit of the most recent turns for the session.
func (r *Redis) Recent(ctx context.Context, sessionID string, limit int) ([]interview.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := r.client.LRange(ctx, transcriptKey(sessionID), int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memory: redis retrieve: %w", err)
	}
	turns := make([]interview.Turn, 0, len(raw))
	for _, item := range raw {
		var t interview.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Clear removes the session transcript.
func (r *Redis) Clear(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, transcriptKey(sessionID)).Err()
}

// Close releases the underlying connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
