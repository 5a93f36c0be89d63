package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/quillworks/scribe/internal/config"
	"github.com/quillworks/scribe/internal/handlers"
	"github.com/quillworks/scribe/internal/middleware"
	"github.com/quillworks/scribe/internal/services"
	"github.com/rs/zerolog/log"
)

func main() {
	svc, err := services.InitializeServices()
	if err != nil {
		log.Fatal().Err(err).Msg("Service initialization failed")
	}

	r := setupRouter(svc)

	addr := ":" + config.GetServerPort()
	log.Info().Str("addr", addr).Msg("Server starting")
	if err := http.ListenAndServe(addr, r); err != nil {
		log.Fatal().Err(err).Msg("ListenAndServe error")
	}
}

func setupRouter(svc *services.Services) *mux.Router {
	h := handlers.New(
		svc.GetAssistantService(),
		svc.GetChatService(),
		svc.GetContentService(),
		svc.GetKnowledgeService(),
		svc.GetNoticeService(),
		svc.GetConnectionManager(),
	)

	r := mux.NewRouter()

	events := r.PathPrefix("/events").Subrouter()
	events.Use(middleware.RequireAuth())
	events.HandleFunc("/save", h.HandleSaveEvent).Methods("POST")
	events.HandleFunc("/comment", h.HandleCommentEvent).Methods("POST")

	r.HandleFunc("/assistants/{item_id}", h.HandleGetAssistant).Methods("GET")
	r.HandleFunc("/notices/{item_id}", h.HandleGetNotices).Methods("GET")
	r.HandleFunc("/ws", h.HandleWebSocket)

	return r
}
