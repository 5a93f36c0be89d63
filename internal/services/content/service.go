package content

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/quillworks/scribe/internal/infrastructure/redis"
	"github.com/rs/zerolog/log"
)

// TypeAssistant is the content type whose items are synchronized with
// remote assistants and chatted with through comments.
const TypeAssistant = "assistant"

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "publish"
	StatusTrashed   Status = "trash"
)

// Item is a locally stored content item. Typed fields cover what the
// synchronizer and knowledge generator read; everything else lives in
// arbitrary key-value metadata.
type Item struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url"`
	Status Status `json:"status"`
}

type Store interface {
	Get(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context, types []string) ([]*Item, error)
	Save(ctx context.Context, item *Item) error
	GetMeta(ctx context.Context, id, key string) (string, error)
	SetMeta(ctx context.Context, id, key, value string) error
	DeleteMeta(ctx context.Context, id, key string) error
}

type RedisStore struct {
	redisService *redis.Service
}

type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Item
	meta  map[string]string
}

type Service struct {
	store Store
}

func NewService(redisService *redis.Service) *Service {
	log.Info().Msg("Initialising content service")

	var store Store
	if redisService != nil {
		ctx := context.Background()
		if err := redisService.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("Redis connection failed")
			log.Warn().Msg("Falling back to in-memory content storage")
			store = newMemoryStore()
		} else {
			store = &RedisStore{redisService: redisService}
		}
	} else {
		log.Info().Msg("Using in-memory content storage")
		store = newMemoryStore()
	}

	return &Service{store: store}
}

func newMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*Item),
		meta:  make(map[string]string),
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, types []string) ([]*Item, error) {
	return s.store.List(ctx, types)
}

// Save stores the item, assigning an ID when it has none
func (s *Service) Save(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	return s.store.Save(ctx, item)
}

func (s *Service) GetMeta(ctx context.Context, id, key string) (string, error) {
	return s.store.GetMeta(ctx, id, key)
}

func (s *Service) SetMeta(ctx context.Context, id, key, value string) error {
	return s.store.SetMeta(ctx, id, key, value)
}

func (s *Service) DeleteMeta(ctx context.Context, id, key string) error {
	return s.store.DeleteMeta(ctx, id, key)
}

// GetMetaList reads a metadata value written by SetMetaList
func (s *Service) GetMetaList(ctx context.Context, id, key string) ([]string, error) {
	raw, err := s.store.GetMeta(ctx, id, key)
	if err != nil || raw == "" {
		return nil, err
	}

	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("malformed metadata list %q: %w", key, err)
	}
	return values, nil
}

// SetMetaList stores a list-valued metadata entry as JSON
func (s *Service) SetMetaList(ctx context.Context, id, key string, values []string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return s.store.SetMeta(ctx, id, key, string(data))
}

// Redis store implementation

func itemKey(id string) string {
	return "content:item:" + id
}

func metaKey(id, key string) string {
	return "content:meta:" + id + ":" + key
}

const itemIndexKey = "content:items"

func (rs *RedisStore) Get(ctx context.Context, id string) (*Item, error) {
	data, err := rs.redisService.Get(ctx, itemKey(id))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var item Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (rs *RedisStore) List(ctx context.Context, types []string) ([]*Item, error) {
	ids, err := rs.redisService.SMembers(ctx, itemIndexKey)
	if err != nil {
		return nil, err
	}

	var items []*Item
	for _, id := range ids {
		item, err := rs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if item != nil && matchesType(item, types) {
			items = append(items, item)
		}
	}
	return items, nil
}

func (rs *RedisStore) Save(ctx context.Context, item *Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}
	if err := rs.redisService.Set(ctx, itemKey(item.ID), string(data), 0); err != nil {
		return err
	}
	return rs.redisService.SAdd(ctx, itemIndexKey, item.ID)
}

func (rs *RedisStore) GetMeta(ctx context.Context, id, key string) (string, error) {
	value, err := rs.redisService.Get(ctx, metaKey(id, key))
	if err == redis.Nil {
		return "", nil
	}
	return value, err
}

func (rs *RedisStore) SetMeta(ctx context.Context, id, key, value string) error {
	return rs.redisService.Set(ctx, metaKey(id, key), value, 0)
}

func (rs *RedisStore) DeleteMeta(ctx context.Context, id, key string) error {
	return rs.redisService.Delete(ctx, metaKey(id, key))
}

// Memory store implementation

func (ms *MemoryStore) Get(ctx context.Context, id string) (*Item, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	item, exists := ms.items[id]
	if !exists {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (ms *MemoryStore) List(ctx context.Context, types []string) ([]*Item, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var items []*Item
	for _, item := range ms.items {
		if matchesType(item, types) {
			copied := *item
			items = append(items, &copied)
		}
	}
	return items, nil
}

func (ms *MemoryStore) Save(ctx context.Context, item *Item) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	copied := *item
	ms.items[item.ID] = &copied
	return nil
}

func (ms *MemoryStore) GetMeta(ctx context.Context, id, key string) (string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.meta[id+":"+key], nil
}

func (ms *MemoryStore) SetMeta(ctx context.Context, id, key, value string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.meta[id+":"+key] = value
	return nil
}

func (ms *MemoryStore) DeleteMeta(ctx context.Context, id, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.meta, id+":"+key)
	return nil
}

func matchesType(item *Item, types []string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if item.Type == t {
			return true
		}
	}
	return false
}
