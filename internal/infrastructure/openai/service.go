package openai

import (
	"context"
	"time"

	"github.com/quillworks/scribe/internal/config"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const (
	readRetries    = 2
	retryBaseDelay = 100 * time.Millisecond
)

// Service is a thin wrapper over the assistant API client. Every method
// returns either the SDK's parsed response or a *RemoteError, so callers
// handle a single error shape instead of probing response bodies.
type Service struct {
	client *openai.Client
}

func NewService() *Service {
	log.Info().Msg("Initialising OpenAI service")
	key := config.GetOpenAIKey()

	if key == "" {
		log.Warn().Msg("OpenAI service not configured - OPENAI_KEY missing")
		return nil
	}

	cfg := openai.DefaultConfig(key)
	if base := config.GetOpenAIBaseURL(); base != "" {
		log.Info().Str("base_url", base).Msg("Using assistant API base URL override")
		cfg.BaseURL = base
	}

	return &Service{
		client: openai.NewClientWithConfig(cfg),
	}
}

func (s *Service) CreateAssistant(ctx context.Context, req openai.AssistantRequest) (openai.Assistant, error) {
	a, err := s.client.CreateAssistant(ctx, req)
	if err != nil {
		return a, normalize("create assistant", err)
	}
	return a, nil
}

func (s *Service) ModifyAssistant(ctx context.Context, assistantID string, req openai.AssistantRequest) (openai.Assistant, error) {
	a, err := s.client.ModifyAssistant(ctx, assistantID, req)
	if err != nil {
		return a, normalize("modify assistant", err)
	}
	return a, nil
}

func (s *Service) DeleteAssistant(ctx context.Context, assistantID string) (openai.AssistantDeleteResponse, error) {
	resp, err := s.client.DeleteAssistant(ctx, assistantID)
	if err != nil {
		return resp, normalize("delete assistant", err)
	}
	return resp, nil
}

// RetrieveAssistant fetches the current remote state of an assistant.
// Transport failures are retried; API errors are not.
func (s *Service) RetrieveAssistant(ctx context.Context, assistantID string) (openai.Assistant, error) {
	var a openai.Assistant
	err := withRetry(ctx, func() error {
		var err error
		a, err = s.client.RetrieveAssistant(ctx, assistantID)
		return err
	})
	if err != nil {
		return a, normalize("retrieve assistant", err)
	}
	return a, nil
}

func (s *Service) ListFiles(ctx context.Context) (openai.FilesList, error) {
	var list openai.FilesList
	err := withRetry(ctx, func() error {
		var err error
		list, err = s.client.ListFiles(ctx)
		return err
	})
	if err != nil {
		return list, normalize("list files", err)
	}
	return list, nil
}

func (s *Service) UploadFile(ctx context.Context, name string, contents []byte) (openai.File, error) {
	f, err := s.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   contents,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return f, normalize("upload file", err)
	}
	return f, nil
}

func (s *Service) DeleteFile(ctx context.Context, fileID string) error {
	if err := s.client.DeleteFile(ctx, fileID); err != nil {
		return normalize("delete file", err)
	}
	return nil
}

func (s *Service) CreateThread(ctx context.Context, message string) (openai.Thread, error) {
	t, err := s.client.CreateThread(ctx, openai.ThreadRequest{
		Messages: []openai.ThreadMessage{
			{
				Role:    openai.ThreadMessageRoleUser,
				Content: message,
			},
		},
	})
	if err != nil {
		return t, normalize("create thread", err)
	}
	return t, nil
}

func (s *Service) CreateRun(ctx context.Context, threadID, assistantID string) (openai.Run, error) {
	r, err := s.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: assistantID,
	})
	if err != nil {
		return r, normalize("create run", err)
	}
	return r, nil
}

// RetrieveRun is not retried: the poller calls it on a fixed cadence and a
// failed tick is simply polled again.
func (s *Service) RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error) {
	r, err := s.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return r, normalize("retrieve run", err)
	}
	return r, nil
}

// ListMessages returns the thread's messages, newest first.
func (s *Service) ListMessages(ctx context.Context, threadID string) (openai.MessagesList, error) {
	list, err := s.client.ListMessage(ctx, threadID, nil, nil, nil, nil, nil)
	if err != nil {
		return list, normalize("list messages", err)
	}
	return list, nil
}

// withRetry re-runs fn on transport failure with a short linear backoff.
// API-level errors are returned immediately.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || attempt >= readRetries || !IsTransport(normalize("", err)) {
			return err
		}

		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt+1) * retryBaseDelay):
		}
	}
}
