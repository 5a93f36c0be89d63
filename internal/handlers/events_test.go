package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/quillworks/scribe/internal/config"
	"github.com/quillworks/scribe/internal/connections"
	"github.com/quillworks/scribe/internal/middleware"
	"github.com/quillworks/scribe/internal/services/assistant"
	"github.com/quillworks/scribe/internal/services/content"
	"github.com/quillworks/scribe/internal/services/knowledge"
	"github.com/quillworks/scribe/internal/services/notices"
	"github.com/sashabaranov/go-openai"
)

// fakeRemoteAPI covers both the assistant and knowledge API slices
type fakeRemoteAPI struct {
	assistantID string
}

func (f *fakeRemoteAPI) CreateAssistant(ctx context.Context, req openai.AssistantRequest) (openai.Assistant, error) {
	return openai.Assistant{ID: f.assistantID}, nil
}

func (f *fakeRemoteAPI) ModifyAssistant(ctx context.Context, assistantID string, req openai.AssistantRequest) (openai.Assistant, error) {
	return openai.Assistant{ID: assistantID}, nil
}

func (f *fakeRemoteAPI) DeleteAssistant(ctx context.Context, assistantID string) (openai.AssistantDeleteResponse, error) {
	return openai.AssistantDeleteResponse{ID: assistantID, Deleted: true}, nil
}

func (f *fakeRemoteAPI) RetrieveAssistant(ctx context.Context, assistantID string) (openai.Assistant, error) {
	return openai.Assistant{ID: assistantID}, nil
}

func (f *fakeRemoteAPI) ListFiles(ctx context.Context) (openai.FilesList, error) {
	return openai.FilesList{}, nil
}

func (f *fakeRemoteAPI) UploadFile(ctx context.Context, name string, contents []byte) (openai.File, error) {
	return openai.File{ID: "file-1", FileName: name}, nil
}

func (f *fakeRemoteAPI) DeleteFile(ctx context.Context, fileID string) error {
	return nil
}

type fakeChat struct {
	handled []string
	err     error
}

func (f *fakeChat) HandleCommentPosted(ctx context.Context, commentID string) error {
	f.handled = append(f.handled, commentID)
	return f.err
}

type testEnv struct {
	handler    *Handler
	content    *content.Service
	notices    *notices.Service
	chat       *fakeChat
	assistants *assistant.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	api := &fakeRemoteAPI{assistantID: "asst_handler"}
	contentService := content.NewService(nil)
	noticeService := notices.NewService(nil)
	knowledgeService := knowledge.NewService(api, contentService, noticeService)
	assistantService := assistant.NewService(api, contentService, noticeService, knowledgeService, nil)
	chatService := &fakeChat{}
	manager := connections.NewManager(connections.DefaultTimeouts)

	return &testEnv{
		handler:    New(assistantService, chatService, contentService, knowledgeService, noticeService, manager),
		content:    contentService,
		notices:    noticeService,
		chat:       chatService,
		assistants: assistantService,
	}
}

func (e *testEnv) router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/events/save", e.handler.HandleSaveEvent).Methods(http.MethodPost)
	router.HandleFunc("/events/comment", e.handler.HandleCommentEvent).Methods(http.MethodPost)
	router.HandleFunc("/assistants/{item_id}", e.handler.HandleGetAssistant).Methods(http.MethodGet)
	router.HandleFunc("/notices/{item_id}", e.handler.HandleGetNotices).Methods(http.MethodGet)
	return router
}

func postJSON(t *testing.T, router *mux.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func TestHandleSaveEvent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	item := &content.Item{ID: "item-1", Type: content.TypeAssistant, Title: "Helper", Status: content.StatusPublished}
	if err := env.content.Save(ctx, item); err != nil {
		t.Fatalf("Save: %v", err)
	}

	recorder := postJSON(t, env.router(), "/events/save", map[string]interface{}{"item_id": "item-1"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200: %s", recorder.Code, recorder.Body.String())
	}

	var response map[string]string
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if response["assistant_id"] != "asst_handler" {
		t.Errorf("assistant_id = %q, want asst_handler", response["assistant_id"])
	}
	if response["item_id"] != "item-1" {
		t.Errorf("item_id = %q, want item-1", response["item_id"])
	}
}

func TestHandleSaveEventMissingItem(t *testing.T) {
	env := newTestEnv(t)

	recorder := postJSON(t, env.router(), "/events/save", map[string]interface{}{"item_id": "ghost"})
	if recorder.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", recorder.Code)
	}
}

func TestHandleSaveEventRequiresItemID(t *testing.T) {
	env := newTestEnv(t)

	recorder := postJSON(t, env.router(), "/events/save", map[string]interface{}{})
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", recorder.Code)
	}
}

func TestHandleCommentEvent(t *testing.T) {
	env := newTestEnv(t)

	recorder := postJSON(t, env.router(), "/events/comment", map[string]interface{}{"comment_id": "c-1"})
	if recorder.Code != http.StatusNoContent {
		t.Errorf("Status = %d, want 204", recorder.Code)
	}
	if len(env.chat.handled) != 1 || env.chat.handled[0] != "c-1" {
		t.Errorf("Chat handled %v, want [c-1]", env.chat.handled)
	}
}

func TestHandleCommentEventSwallowsChatErrors(t *testing.T) {
	env := newTestEnv(t)
	env.chat.err = context.DeadlineExceeded

	recorder := postJSON(t, env.router(), "/events/comment", map[string]interface{}{"comment_id": "c-2"})
	if recorder.Code != http.StatusNoContent {
		t.Errorf("Status = %d, want 204 despite chat failure", recorder.Code)
	}
}

func TestHandleGetAssistant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	snapshot := `{"id":"asst_cached","model":"gpt-4-1106-preview"}`
	env.content.SetMeta(ctx, "item-1", assistant.MetaSnapshot, snapshot)

	request := httptest.NewRequest(http.MethodGet, "/assistants/item-1", nil)
	recorder := httptest.NewRecorder()
	env.router().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", recorder.Code)
	}
	if recorder.Body.String() != snapshot {
		t.Errorf("Body = %q, want the cached snapshot verbatim", recorder.Body.String())
	}
}

func TestHandleGetAssistantMissing(t *testing.T) {
	env := newTestEnv(t)

	request := httptest.NewRequest(http.MethodGet, "/assistants/item-1", nil)
	recorder := httptest.NewRecorder()
	env.router().ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", recorder.Code)
	}
}

func TestHandleGetNoticesReadsAndClears(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	router := env.router()

	env.notices.SetSuccess(ctx, "item-1", "Assistant created.")

	request := httptest.NewRequest(http.MethodGet, "/notices/item-1", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", recorder.Code)
	}
	var response struct {
		ItemID  string           `json:"item_id"`
		Notices []notices.Notice `json:"notices"`
	}
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(response.Notices) != 1 || response.Notices[0].Message != "Assistant created." {
		t.Errorf("Notices = %+v, want the success notice", response.Notices)
	}

	// A second read finds nothing: reading clears
	request = httptest.NewRequest(http.MethodGet, "/notices/item-1", nil)
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(response.Notices) != 0 {
		t.Errorf("Second read returned %+v, want none", response.Notices)
	}
}

func TestRequireAuth(t *testing.T) {
	secret := []byte("handler-test-secret")
	restore := config.SetJWTSecret(secret)
	defer restore()

	env := newTestEnv(t)
	router := mux.NewRouter()
	events := router.PathPrefix("/events").Subrouter()
	events.Use(middleware.RequireAuth())
	events.HandleFunc("/comment", env.handler.HandleCommentEvent).Methods(http.MethodPost)

	body := []byte(`{"comment_id":"c-1"}`)

	t.Run("rejects missing token", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/events/comment", bytes.NewReader(body))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", recorder.Code)
		}
	})

	t.Run("rejects malformed token", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPost, "/events/comment", bytes.NewReader(body))
		request.Header.Set("Authorization", "Bearer not-a-token")
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusUnauthorized {
			t.Errorf("Status = %d, want 401", recorder.Code)
		}
	})

	t.Run("accepts signed token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Minute).Unix(),
		})
		signed, err := token.SignedString(secret)
		if err != nil {
			t.Fatalf("SignedString: %v", err)
		}

		request := httptest.NewRequest(http.MethodPost, "/events/comment", bytes.NewReader(body))
		request.Header.Set("Authorization", "Bearer "+signed)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusNoContent {
			t.Errorf("Status = %d, want 204", recorder.Code)
		}
	})
}
