package services

import (
	"fmt"
	"sync"

	"github.com/quillworks/scribe/internal/connections"
	openaiclient "github.com/quillworks/scribe/internal/infrastructure/openai"
	"github.com/quillworks/scribe/internal/infrastructure/redis"
	"github.com/quillworks/scribe/internal/services/assistant"
	"github.com/quillworks/scribe/internal/services/chat"
	"github.com/quillworks/scribe/internal/services/comments"
	"github.com/quillworks/scribe/internal/services/content"
	"github.com/quillworks/scribe/internal/services/knowledge"
	"github.com/quillworks/scribe/internal/services/notices"
	"github.com/rs/zerolog/log"
)

var (
	// Mutex for thread-safe initialization
	servicesMu sync.RWMutex
)

type Services struct {
	assistantService *assistant.Service
	chatService      chat.Service
	commentService   *comments.Service
	contentService   *content.Service
	knowledgeService *knowledge.Service
	manager          *connections.Manager
	noticeService    *notices.Service
	openAIService    *openaiclient.Service
	redisService     *redis.Service
}

// InitializeServices initializes all required services
func InitializeServices() (*Services, error) {
	servicesMu.Lock()
	defer servicesMu.Unlock()

	log.Info().Msg("Initializing core services")

	// Redis is optional; every store falls back to memory without it
	redisService := redis.NewService()

	contentService := content.NewService(redisService)
	commentService := comments.NewService(redisService)
	noticeService := notices.NewService(redisService)

	manager := connections.NewManager(connections.DefaultTimeouts)

	// The remote assistant API client is required
	openAIService := openaiclient.NewService()
	if openAIService == nil {
		return nil, fmt.Errorf("failed to initialize OpenAI service - required for assistant sync and chat")
	}

	knowledgeService := knowledge.NewService(openAIService, contentService, noticeService)
	assistantService := assistant.NewService(openAIService, contentService, noticeService, knowledgeService, manager.Broadcast)

	chatService, err := chat.NewService(openAIService, contentService, commentService, manager.Broadcast)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize chat service")
		return nil, fmt.Errorf("failed to initialize chat service: %w", err)
	}

	log.Info().Msg("All services initialized successfully")

	return &Services{
		assistantService: assistantService,
		chatService:      chatService,
		commentService:   commentService,
		contentService:   contentService,
		knowledgeService: knowledgeService,
		manager:          manager,
		noticeService:    noticeService,
		openAIService:    openAIService,
		redisService:     redisService,
	}, nil
}

// GetAssistantService returns the assistant synchronizer
func (s *Services) GetAssistantService() *assistant.Service {
	return s.assistantService
}

// GetChatService returns the chat service
func (s *Services) GetChatService() chat.Service {
	return s.chatService
}

// GetCommentService returns the comment store service
func (s *Services) GetCommentService() *comments.Service {
	return s.commentService
}

// GetContentService returns the content store service
func (s *Services) GetContentService() *content.Service {
	return s.contentService
}

// GetKnowledgeService returns the knowledge file service
func (s *Services) GetKnowledgeService() *knowledge.Service {
	return s.knowledgeService
}

// GetConnectionManager returns the websocket connection manager
func (s *Services) GetConnectionManager() *connections.Manager {
	return s.manager
}

// GetNoticeService returns the transient notice service
func (s *Services) GetNoticeService() *notices.Service {
	return s.noticeService
}
