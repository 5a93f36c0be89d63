package httpext

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJsonError(t *testing.T) {
	recorder := httptest.NewRecorder()

	JsonError(recorder, "item not found", http.StatusNotFound)

	if recorder.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", recorder.Code, http.StatusNotFound)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var response ErrorResponse
	if err := json.NewDecoder(recorder.Body).Decode(&response); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if response.Error != "item not found" {
		t.Errorf("Error = %q, want %q", response.Error, "item not found")
	}
	if response.ErrorDescription != "" {
		t.Errorf("ErrorDescription = %q, want empty", response.ErrorDescription)
	}
}
