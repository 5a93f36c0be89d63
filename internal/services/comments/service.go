package comments

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/quillworks/scribe/internal/infrastructure/redis"
	"github.com/rs/zerolog/log"
)

// Comment is a single entry in an item's discussion tree. ParentID is empty
// for root comments.
type Comment struct {
	ID          string `json:"id"`
	ItemID      string `json:"item_id"`
	ParentID    string `json:"parent_id,omitempty"`
	Author      string `json:"author"`
	AuthorEmail string `json:"author_email,omitempty"`
	Content     string `json:"content"`
	Type        string `json:"type,omitempty"`
	Approved    bool   `json:"approved"`
}

type Store interface {
	Get(ctx context.Context, id string) (*Comment, error)
	ListByItem(ctx context.Context, itemID string) ([]*Comment, error)
	Insert(ctx context.Context, comment *Comment) (string, error)
	GetMeta(ctx context.Context, id, key string) (string, error)
	SetMeta(ctx context.Context, id, key, value string) error
}

type RedisStore struct {
	redisService *redis.Service
}

type MemoryStore struct {
	mu       sync.RWMutex
	comments map[string]*Comment
	meta     map[string]string
}

type Service struct {
	store Store
}

func NewService(redisService *redis.Service) *Service {
	log.Info().Msg("Initialising comment service")

	var store Store
	if redisService != nil {
		ctx := context.Background()
		if err := redisService.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("Redis connection failed")
			log.Warn().Msg("Falling back to in-memory comment storage")
			store = newMemoryStore()
		} else {
			store = &RedisStore{redisService: redisService}
		}
	} else {
		log.Info().Msg("Using in-memory comment storage")
		store = newMemoryStore()
	}

	return &Service{store: store}
}

func newMemoryStore() *MemoryStore {
	return &MemoryStore{
		comments: make(map[string]*Comment),
		meta:     make(map[string]string),
	}
}

func (s *Service) Get(ctx context.Context, id string) (*Comment, error) {
	return s.store.Get(ctx, id)
}

// ListByItem returns every comment in an item's discussion tree
func (s *Service) ListByItem(ctx context.Context, itemID string) ([]*Comment, error) {
	return s.store.ListByItem(ctx, itemID)
}

// Insert stores a new comment and returns its ID
func (s *Service) Insert(ctx context.Context, comment *Comment) (string, error) {
	return s.store.Insert(ctx, comment)
}

func (s *Service) GetMeta(ctx context.Context, id, key string) (string, error) {
	return s.store.GetMeta(ctx, id, key)
}

func (s *Service) SetMeta(ctx context.Context, id, key, value string) error {
	return s.store.SetMeta(ctx, id, key, value)
}

// Redis store implementation

func commentKey(id string) string {
	return "comments:item:" + id
}

func metaKey(id, key string) string {
	return "comments:meta:" + id + ":" + key
}

func itemIndexKey(itemID string) string {
	return "comments:index:" + itemID
}

func (rs *RedisStore) Get(ctx context.Context, id string) (*Comment, error) {
	data, err := rs.redisService.Get(ctx, commentKey(id))
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var comment Comment
	if err := json.Unmarshal([]byte(data), &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (rs *RedisStore) Insert(ctx context.Context, comment *Comment) (string, error) {
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}

	data, err := json.Marshal(comment)
	if err != nil {
		return "", err
	}
	if err := rs.redisService.Set(ctx, commentKey(comment.ID), string(data), 0); err != nil {
		return "", err
	}
	if err := rs.redisService.SAdd(ctx, itemIndexKey(comment.ItemID), comment.ID); err != nil {
		return "", err
	}
	return comment.ID, nil
}

func (rs *RedisStore) ListByItem(ctx context.Context, itemID string) ([]*Comment, error) {
	ids, err := rs.redisService.SMembers(ctx, itemIndexKey(itemID))
	if err != nil {
		return nil, err
	}

	var list []*Comment
	for _, id := range ids {
		comment, err := rs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if comment != nil {
			list = append(list, comment)
		}
	}
	return list, nil
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

// Memory store implementation

func (ms *MemoryStore) Get(ctx context.Context, id string) (*Comment, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	comment, exists := ms.comments[id]
	if !exists {
		return nil, nil
	}
	copied := *comment
	return &copied, nil
}

func (ms *MemoryStore) ListByItem(ctx context.Context, itemID string) ([]*Comment, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var list []*Comment
	for _, comment := range ms.comments {
		if comment.ItemID == itemID {
			copied := *comment
			list = append(list, &copied)
		}
	}
	return list, nil
}

func (ms *MemoryStore) Insert(ctx context.Context, comment *Comment) (string, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	copied := *comment
	ms.comments[comment.ID] = &copied
	return comment.ID, nil
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
