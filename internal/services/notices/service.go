package notices

import (
	"context"
	"sync"
	"time"

	"github.com/quillworks/scribe/internal/infrastructure/redis"
	"github.com/rs/zerolog/log"
)

const (
	// NoticeLifetime bounds how long an unread notice survives
	NoticeLifetime = time.Minute

	KindError   = "error"
	KindSuccess = "success"
)

// Notice is a one-shot user-visible outcome message keyed to a content item.
// Reading a notice clears it.
type Notice struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type Store interface {
	Set(ctx context.Context, key, message string, lifetime time.Duration) error
	Pop(ctx context.Context, key string) (string, error)
}

type RedisStore struct {
	redisService *redis.Service
}

type memoryEntry struct {
	message   string
	expiresAt time.Time
}

type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

type Service struct {
	store Store
}

func NewService(redisService *redis.Service) *Service {
	log.Info().Msg("Initialising notice service")

	var store Store
	if redisService != nil {
		ctx := context.Background()
		if err := redisService.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("Redis connection failed")
			log.Warn().Msg("Falling back to in-memory notice storage")
			store = newMemoryStore()
		} else {
			store = &RedisStore{redisService: redisService}
		}
	} else {
		log.Info().Msg("Using in-memory notice storage")
		store = newMemoryStore()
	}

	return &Service{store: store}
}

func newMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
	}
}

func noticeKey(kind, itemID string) string {
	return "notices:" + kind + ":" + itemID
}

// SetError records the error outcome for an item's latest save event,
// replacing any unread error notice
func (s *Service) SetError(ctx context.Context, itemID, message string) {
	if err := s.store.Set(ctx, noticeKey(KindError, itemID), message, NoticeLifetime); err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("Failed to store error notice")
	}
}

// SetSuccess records the success outcome for an item's latest save event
func (s *Service) SetSuccess(ctx context.Context, itemID, message string) {
	if err := s.store.Set(ctx, noticeKey(KindSuccess, itemID), message, NoticeLifetime); err != nil {
		log.Error().Err(err).Str("item_id", itemID).Msg("Failed to store success notice")
	}
}

// Pop returns every pending notice for the item and clears them
func (s *Service) Pop(ctx context.Context, itemID string) []Notice {
	var pending []Notice
	for _, kind := range []string{KindError, KindSuccess} {
		message, err := s.store.Pop(ctx, noticeKey(kind, itemID))
		if err != nil {
			log.Error().Err(err).Str("item_id", itemID).Msg("Failed to read notice")
			continue
		}
		if message != "" {
			pending = append(pending, Notice{Kind: kind, Message: message})
		}
	}
	return pending
}

// Redis store implementation

func (rs *RedisStore) Set(ctx context.Context, key, message string, lifetime time.Duration) error {
	return rs.redisService.Set(ctx, key, message, lifetime)
}

func (rs *RedisStore) Pop(ctx context.Context, key string) (string, error) {
	value, err := rs.redisService.GetDel(ctx, key)
	if err == redis.Nil {
		return "", nil
	}
	return value, err
}

// Memory store implementation

func (ms *MemoryStore) Set(ctx context.Context, key, message string, lifetime time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.entries[key] = memoryEntry{
		message:   message,
		expiresAt: time.Now().Add(lifetime),
	}
	return nil
}

func (ms *MemoryStore) Pop(ctx context.Context, key string) (string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	entry, exists := ms.entries[key]
	if !exists {
		return "", nil
	}
	delete(ms.entries, key)
	if time.Now().After(entry.expiresAt) {
		return "", nil
	}
	return entry.message, nil
}
