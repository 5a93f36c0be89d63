package assistant

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/quillworks/scribe/internal/config"
	"github.com/quillworks/scribe/internal/connections"
	"github.com/quillworks/scribe/internal/services/content"
	"github.com/quillworks/scribe/internal/services/knowledge"
	"github.com/quillworks/scribe/internal/services/notices"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

// Metadata keys on the content item
const (
	MetaAssistantID = "assistant_id"
	MetaSnapshot    = "assistant_data"
	MetaTools       = "assistant_tools"
	MetaDescription = "assistant_description"
)

const defaultTool = "retrieval"

var (
	// ErrNoAssistantID signals a response that parsed but carried no assistant id
	ErrNoAssistantID = errors.New("no assistant ID returned from OpenAI")
	// ErrNotDeleted signals a delete response without a deleted flag; the
	// local id is retained so the next save retries the deletion
	ErrNotDeleted = errors.New("assistant was not deleted")
)

// RemoteAPI is the slice of the assistant API the synchronizer needs
type RemoteAPI interface {
	CreateAssistant(ctx context.Context, req openai.AssistantRequest) (openai.Assistant, error)
	ModifyAssistant(ctx context.Context, assistantID string, req openai.AssistantRequest) (openai.Assistant, error)
	DeleteAssistant(ctx context.Context, assistantID string) (openai.AssistantDeleteResponse, error)
	RetrieveAssistant(ctx context.Context, assistantID string) (openai.Assistant, error)
}

// Service reconciles a local content item with its remote assistant on
// every save event: exactly one remote-side effect, exactly one outcome
// notice, and an unconditional snapshot refresh afterwards.
type Service struct {
	api       RemoteAPI
	content   *content.Service
	notices   *notices.Service
	knowledge *knowledge.Service
	onEvent   connections.EventCallback
}

func NewService(api RemoteAPI, contentService *content.Service, noticeService *notices.Service, knowledgeService *knowledge.Service, onEvent connections.EventCallback) *Service {
	log.Info().Msg("Initialising assistant service")
	return &Service{
		api:       api,
		content:   contentService,
		notices:   noticeService,
		knowledge: knowledgeService,
		onEvent:   onEvent,
	}
}

// HandleSave is the entry point for a content-save event. It never fails
// the save pipeline: remote errors end up in the item's notices and the
// refresh step runs regardless.
func (s *Service) HandleSave(ctx context.Context, itemID string, update bool) error {
	item, err := s.content.Get(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil || item.Type != content.TypeAssistant {
		return nil
	}

	assistantID, err := s.content.GetMeta(ctx, itemID, MetaAssistantID)
	if err != nil {
		return err
	}

	if item.Status == content.StatusPublished {
		s.syncPublished(ctx, item, assistantID, update)
	} else {
		s.syncUnpublished(ctx, item, assistantID)
	}

	if err := s.refresh(ctx, itemID); err != nil {
		log.Warn().Err(err).Str("item_id", itemID).Msg("Assistant snapshot refresh failed")
	}
	return nil
}

func (s *Service) syncPublished(ctx context.Context, item *content.Item, assistantID string, update bool) {
	// Upload failures are recorded but never block the sync; the payload
	// carries whatever file-id set is currently known.
	if err := s.knowledge.EnsureUploaded(ctx, item.ID); err != nil {
		log.Warn().Err(err).Str("item_id", item.ID).Msg("Knowledge upload failed, continuing sync")
	}

	payload := s.buildPayload(ctx, item)

	if assistantID != "" && update {
		if err := s.modify(ctx, assistantID, payload); err != nil {
			s.fail(ctx, item.ID, err)
			return
		}
		s.succeed(ctx, item.ID, "updated", "Assistant updated.")
		return
	}

	if err := s.create(ctx, item.ID, payload); err != nil {
		s.fail(ctx, item.ID, err)
		return
	}
	s.succeed(ctx, item.ID, "created", "Assistant created.")
}

func (s *Service) syncUnpublished(ctx context.Context, item *content.Item, assistantID string) {
	s.knowledge.RemoveUploaded(ctx, item.ID)

	if assistantID == "" {
		return
	}

	if err := s.delete(ctx, item.ID, assistantID); err != nil {
		s.fail(ctx, item.ID, err)
		return
	}
	s.succeed(ctx, item.ID, "removed", "Assistant removed")
}

func (s *Service) create(ctx context.Context, itemID string, payload openai.AssistantRequest) error {
	created, err := s.api.CreateAssistant(ctx, payload)
	if err != nil {
		return err
	}
	if created.ID == "" {
		return ErrNoAssistantID
	}
	return s.content.SetMeta(ctx, itemID, MetaAssistantID, created.ID)
}

func (s *Service) modify(ctx context.Context, assistantID string, payload openai.AssistantRequest) error {
	modified, err := s.api.ModifyAssistant(ctx, assistantID, payload)
	if err != nil {
		// Local state is left untouched; the record still believes the old
		// remote state is current until the next refresh reconciles the cache.
		return err
	}
	if modified.ID == "" {
		return ErrNoAssistantID
	}
	return nil
}

func (s *Service) delete(ctx context.Context, itemID, assistantID string) error {
	resp, err := s.api.DeleteAssistant(ctx, assistantID)
	if err != nil {
		return err
	}
	if !resp.Deleted {
		return ErrNotDeleted
	}
	return s.content.DeleteMeta(ctx, itemID, MetaAssistantID)
}

// refresh fetches the current remote assistant state and caches it for
// display, regardless of how the preceding operation went.
func (s *Service) refresh(ctx context.Context, itemID string) error {
	assistantID, err := s.content.GetMeta(ctx, itemID, MetaAssistantID)
	if err != nil || assistantID == "" {
		return err
	}

	remote, err := s.api.RetrieveAssistant(ctx, assistantID)
	if err != nil {
		return err
	}

	snapshot, err := json.Marshal(remote)
	if err != nil {
		return err
	}
	if err := s.content.SetMeta(ctx, itemID, MetaSnapshot, string(snapshot)); err != nil {
		return err
	}

	// The snapshot above is kept even when the response is missing its id.
	if remote.ID == "" {
		return ErrNoAssistantID
	}
	return nil
}

func (s *Service) buildPayload(ctx context.Context, item *content.Item) openai.AssistantRequest {
	tool, _ := s.content.GetMeta(ctx, item.ID, MetaTools)
	if tool == "" {
		tool = defaultTool
	}
	description, _ := s.content.GetMeta(ctx, item.ID, MetaDescription)

	name := item.Title
	instructions := item.Body

	return openai.AssistantRequest{
		Model:        config.GetAssistantModel(),
		Name:         &name,
		Description:  &description,
		Instructions: &instructions,
		Tools: []openai.AssistantTool{
			{Type: openai.AssistantToolType(tool)},
		},
		FileIDs: s.knowledge.FileIDs(ctx, item.ID),
		Metadata: map[string]any{
			"origin_item_id": item.ID,
			"origin_site_id": config.GetSiteID(),
		},
	}
}

func (s *Service) succeed(ctx context.Context, itemID, status, message string) {
	s.notices.SetSuccess(ctx, itemID, message)
	s.emit(connections.Event{Type: "assistant_sync", ItemID: itemID, Status: status, Message: message})
}

func (s *Service) fail(ctx context.Context, itemID string, err error) {
	log.Error().Err(err).Str("item_id", itemID).Msg("Assistant sync failed")
	s.notices.SetError(ctx, itemID, err.Error())
	s.emit(connections.Event{Type: "assistant_sync", ItemID: itemID, Status: "error", Message: err.Error()})
}

func (s *Service) emit(event connections.Event) {
	if s.onEvent != nil {
		s.onEvent(event)
	}
}
