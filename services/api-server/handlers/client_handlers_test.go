package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCreateClient_RequiresNameAndOwner(t *testing.T) {
	store := newHandlerFakeStore()
	h := NewClientHandlers(store)

	router := gin.New()
	router.POST("/clients", h.CreateClient)

	req := httptest.NewRequest(http.MethodPost, "/clients", bytes.NewBufferString(`{"name":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusBadRequest, rec.Body.String())
	}
}

func TestCreateClient_PersistsValidClient(t *testing.T) {
	store := newHandlerFakeStore()
	h := NewClientHandlers(store)

	router := gin.New()
	router.POST("/clients", h.CreateClient)

	req := httptest.NewRequest(http.MethodPost, "/clients", bytes.NewBufferString(`{"name":"Acme","owner_id":"u1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	if len(store.clients) != 1 {
		t.Errorf("expected 1 client persisted, got %d", len(store.clients))
	}
}

func TestDeleteClient_RemovesRecord(t *testing.T) {
	store := newHandlerFakeStore()
	store.clients["c1"] = nil
	h := NewClientHandlers(store)

	router := gin.New()
	router.DELETE("/clients/:client_id", h.DeleteClient)

	req := httptest.NewRequest(http.MethodDelete, "/clients/c1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if _, ok := store.clients["c1"]; ok {
		t.Error("client still present after delete")
	}
}
