package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/quillworks/scribe/internal/connections"
	"github.com/quillworks/scribe/internal/services/assistant"
	"github.com/quillworks/scribe/internal/services/comments"
	"github.com/quillworks/scribe/internal/services/content"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const (
	// CommentTypeAIResponse marks bot-authored comments so the engine never
	// replies to itself
	CommentTypeAIResponse = "ai_response"

	// MetaThreadID maps a comment onto its remote conversation thread
	MetaThreadID = "thread_id"

	// StatusTimeout is the synthetic status returned when polling exhausts
	// its tick budget; distinct from every remote run state
	StatusTimeout openai.RunStatus = "timeout"

	pollInterval       = 250 * time.Millisecond
	maxPollTimeout     = 60 * time.Second
	defaultPollTimeout = 30 * time.Second
)

var (
	// ErrNoThreadID signals a reply whose parent carries no thread id; the
	// chain stays broken and no remote calls are made
	ErrNoThreadID = errors.New("no thread id for comment")
	// ErrNoBotReply signals a completed run whose thread had no extractable
	// assistant message
	ErrNoBotReply = errors.New("no bot response in thread")
)

// RemoteAPI is the slice of the assistant API the chat engine needs
type RemoteAPI interface {
	CreateThread(ctx context.Context, message string) (openai.Thread, error)
	CreateRun(ctx context.Context, threadID, assistantID string) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error)
	ListMessages(ctx context.Context, threadID string) (openai.MessagesList, error)
}

// Implementation drives a remote run to completion for each posted comment
// and posts the assistant's answer as a reply comment. Failures are logged
// and swallowed: a missing reply is self-evident to the user.
type Implementation struct {
	api         RemoteAPI
	content     *content.Service
	comments    *comments.Service
	clock       Clock
	onEvent     connections.EventCallback
	pollTimeout time.Duration
}

func NewService(api RemoteAPI, contentService *content.Service, commentService *comments.Service, onEvent connections.EventCallback) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("remote API client is required")
	}

	return &Implementation{
		api:         api,
		content:     contentService,
		comments:    commentService,
		clock:       realClock{},
		onEvent:     onEvent,
		pollTimeout: defaultPollTimeout,
	}, nil
}

func (s *Implementation) HandleCommentPosted(ctx context.Context, commentID string) error {
	comment, err := s.comments.Get(ctx, commentID)
	if err != nil {
		return err
	}
	if comment == nil {
		return fmt.Errorf("comment %s not found", commentID)
	}

	// Don't respond to itself :)
	if comment.Type == CommentTypeAIResponse {
		return nil
	}

	item, err := s.content.Get(ctx, comment.ItemID)
	if err != nil {
		return err
	}
	if item == nil || item.Type != content.TypeAssistant {
		return nil
	}

	assistantID, err := s.content.GetMeta(ctx, item.ID, assistant.MetaAssistantID)
	if err != nil {
		return err
	}
	if assistantID == "" {
		return nil
	}

	threadID, err := s.resolveThread(ctx, comment)
	if err != nil {
		return err
	}
	if threadID == "" {
		log.Warn().Str("comment_id", commentID).Msg("No thread id, skipping reply")
		return fmt.Errorf("%w %s", ErrNoThreadID, commentID)
	}

	run, err := s.api.CreateRun(ctx, threadID, assistantID)
	if err != nil {
		return err
	}
	if run.ID == "" {
		return fmt.Errorf("no run ID returned for thread %s", threadID)
	}
	s.emit(connections.Event{Type: "chat", ItemID: item.ID, Status: "run_started"})

	status := s.PollRunForCompletion(ctx, threadID, run.ID, s.pollTimeout)
	if status != openai.RunStatusCompleted {
		s.emit(connections.Event{Type: "chat", ItemID: item.ID, Status: "run_" + string(status)})
		return fmt.Errorf("run %s finished with status %q", run.ID, status)
	}

	reply, err := s.botReply(ctx, threadID)
	if err != nil {
		return err
	}

	botID, err := s.comments.Insert(ctx, &comments.Comment{
		ItemID:   comment.ItemID,
		ParentID: comment.ID,
		Author:   item.Title,
		Content:  reply,
		Type:     CommentTypeAIResponse,
		Approved: true,
	})
	if err != nil {
		return err
	}

	// Propagate the thread id so deeper replies continue the same thread
	if err := s.comments.SetMeta(ctx, botID, MetaThreadID, threadID); err != nil {
		return err
	}

	s.emit(connections.Event{Type: "chat", ItemID: item.ID, Status: "replied"})
	return nil
}

// resolveThread finds the remote thread for a comment: root comments create
// a new thread seeded with their content, replies inherit the immediate
// parent's thread id.
func (s *Implementation) resolveThread(ctx context.Context, comment *comments.Comment) (string, error) {
	if comment.ParentID != "" {
		return s.comments.GetMeta(ctx, comment.ParentID, MetaThreadID)
	}

	thread, err := s.api.CreateThread(ctx, comment.Content)
	if err != nil {
		return "", err
	}
	if thread.ID == "" {
		return "", nil
	}
	if err := s.comments.SetMeta(ctx, comment.ID, MetaThreadID, thread.ID); err != nil {
		return "", err
	}
	return thread.ID, nil
}

// PollRunForCompletion busy-polls the run at a fixed interval until it
// reaches a terminal state, returning StatusTimeout once the tick budget is
// exhausted. The requested timeout is clamped to a hard ceiling.
func (s *Implementation) PollRunForCompletion(ctx context.Context, threadID, runID string, timeout time.Duration) openai.RunStatus {
	if timeout > maxPollTimeout {
		timeout = maxPollTimeout
	}

	ticks := int((timeout + pollInterval - 1) / pollInterval)
	for i := 0; i < ticks; i++ {
		s.clock.Sleep(pollInterval)

		run, err := s.api.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			log.Debug().Err(err).Str("run_id", runID).Msg("Run status fetch failed, polling again")
			continue
		}

		switch run.Status {
		case openai.RunStatusRequiresAction,
			openai.RunStatusCancelling,
			openai.RunStatusCancelled,
			openai.RunStatusFailed,
			openai.RunStatusCompleted,
			openai.RunStatusExpired:
			return run.Status
		}
	}

	return StatusTimeout
}

// botReply extracts the assistant's answer: the thread's message collection
// is newest first, so the reply is the first message's first text block.
func (s *Implementation) botReply(ctx context.Context, threadID string) (string, error) {
	list, err := s.api.ListMessages(ctx, threadID)
	if err != nil {
		return "", err
	}

	if len(list.Messages) == 0 || len(list.Messages[0].Content) == 0 {
		return "", ErrNoBotReply
	}
	text := list.Messages[0].Content[0].Text
	if text == nil || text.Value == "" {
		return "", ErrNoBotReply
	}
	return text.Value, nil
}

func (s *Implementation) emit(event connections.Event) {
	if s.onEvent != nil {
		s.onEvent(event)
	}
}
