package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/quillworks/scribe/internal/config"
	"github.com/quillworks/scribe/internal/services"
)

func TestMainServer(t *testing.T) {
	t.Setenv("OPENAI_KEY", "test-key")

	secret := []byte("main-test-secret")
	restore := config.SetJWTSecret(secret)
	defer restore()

	svc, err := services.InitializeServices()
	if err != nil {
		t.Fatalf("InitializeServices: %v", err)
	}

	server := httptest.NewServer(setupRouter(svc))
	defer server.Close()

	t.Run("event endpoints require auth", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/events/save", "application/json", strings.NewReader(`{"item_id":"item-1"}`))
		if err != nil {
			t.Fatalf("Failed to make request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("Expected status code %d, got %d", http.StatusUnauthorized, resp.StatusCode)
		}
	})

	t.Run("authorized save of unknown item", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Minute).Unix(),
		})
		signed, err := token.SignedString(secret)
		if err != nil {
			t.Fatalf("SignedString: %v", err)
		}

		req, err := http.NewRequest(http.MethodPost, server.URL+"/events/save", strings.NewReader(`{"item_id":"item-1"}`))
		if err != nil {
			t.Fatalf("NewRequest: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+signed)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("Failed to make request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status code %d, got %d", http.StatusNotFound, resp.StatusCode)
		}
	})

	t.Run("notices endpoint", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/notices/item-1")
		if err != nil {
			t.Fatalf("Failed to make request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
		}
	})

	t.Run("websocket endpoint", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
		ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("Failed to connect to WebSocket: %v", err)
		}
		ws.Close()
	})

	t.Run("invalid endpoint", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/invalid")
		if err != nil {
			t.Fatalf("Failed to make request: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("Expected status code %d, got %d", http.StatusNotFound, resp.StatusCode)
		}
	})
}
