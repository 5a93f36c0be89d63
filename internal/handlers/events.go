package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/quillworks/scribe/internal/connections"
	"github.com/quillworks/scribe/internal/services/assistant"
	"github.com/quillworks/scribe/internal/services/chat"
	"github.com/quillworks/scribe/internal/services/content"
	"github.com/quillworks/scribe/internal/services/knowledge"
	"github.com/quillworks/scribe/internal/services/notices"
	"github.com/quillworks/scribe/pkg/httpext"
	"github.com/rs/zerolog/log"
)

// Handler adapts host lifecycle events (content saves, posted comments)
// onto the core services. It is the only framework-facing layer: the
// services underneath know nothing about HTTP.
type Handler struct {
	assistants *assistant.Service
	chat       chat.Service
	content    *content.Service
	knowledge  *knowledge.Service
	notices    *notices.Service
	manager    *connections.Manager
}

func New(assistants *assistant.Service, chatService chat.Service, contentService *content.Service, knowledgeService *knowledge.Service, noticeService *notices.Service, manager *connections.Manager) *Handler {
	return &Handler{
		assistants: assistants,
		chat:       chatService,
		content:    contentService,
		knowledge:  knowledgeService,
		notices:    noticeService,
		manager:    manager,
	}
}

type saveEventRequest struct {
	ItemID         string   `json:"item_id"`
	Update         bool     `json:"update"`
	KnowledgeTypes []string `json:"knowledge_types,omitempty"`
}

type commentEventRequest struct {
	CommentID string `json:"comment_id"`
}

// HandleSaveEvent processes a content-save event: knowledge refresh when a
// type selection was submitted, then assistant sync. The pipeline always
// completes; outcomes land in the item's notices.
func (h *Handler) HandleSaveEvent(w http.ResponseWriter, r *http.Request) {
	var req saveEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ItemID == "" {
		httpext.JsonError(w, "item_id is required", http.StatusBadRequest)
		return
	}

	item, err := h.content.Get(r.Context(), req.ItemID)
	if err != nil {
		httpext.JsonError(w, "Failed to load content item", http.StatusInternalServerError)
		return
	}
	if item == nil {
		httpext.JsonError(w, "Content item not found", http.StatusNotFound)
		return
	}

	if len(req.KnowledgeTypes) > 0 {
		if err := h.knowledge.Refresh(r.Context(), req.ItemID, req.KnowledgeTypes); err != nil {
			log.Error().Err(err).Str("item_id", req.ItemID).Msg("Knowledge refresh failed")
		}
	}

	if err := h.assistants.HandleSave(r.Context(), req.ItemID, req.Update); err != nil {
		httpext.JsonError(w, "Failed to process save event", http.StatusInternalServerError)
		return
	}

	assistantID, _ := h.content.GetMeta(r.Context(), req.ItemID, assistant.MetaAssistantID)
	writeJSON(w, http.StatusOK, map[string]string{
		"item_id":      req.ItemID,
		"assistant_id": assistantID,
	})
}

// HandleCommentEvent processes a posted comment synchronously. Chat failures
// are logged but never surfaced: the interaction model is fire and forget.
func (h *Handler) HandleCommentEvent(w http.ResponseWriter, r *http.Request) {
	var req commentEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CommentID == "" {
		httpext.JsonError(w, "comment_id is required", http.StatusBadRequest)
		return
	}

	if err := h.chat.HandleCommentPosted(r.Context(), req.CommentID); err != nil {
		log.Error().Err(err).Str("comment_id", req.CommentID).Msg("Chat turn failed, no reply posted")
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGetAssistant serves the cached remote assistant snapshot
func (h *Handler) HandleGetAssistant(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["item_id"]

	snapshot, err := h.content.GetMeta(r.Context(), itemID, assistant.MetaSnapshot)
	if err != nil {
		httpext.JsonError(w, "Failed to load assistant snapshot", http.StatusInternalServerError)
		return
	}
	if snapshot == "" {
		httpext.JsonError(w, "No assistant snapshot for item", http.StatusNotFound)
		return
	}

	// The snapshot is cached verbatim, so it is served verbatim too
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(snapshot))
}

// HandleGetNotices returns and clears the item's pending notices
func (h *Handler) HandleGetNotices(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["item_id"]

	pending := h.notices.Pop(r.Context(), itemID)
	if pending == nil {
		pending = []notices.Notice{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"item_id": itemID,
		"notices": pending,
	})
}
