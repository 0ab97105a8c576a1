package events

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestHub_PublishDeliversToRoomMember(t *testing.T) {
	hub := NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "conn-1", ClientRoom("client-1"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	// give the server goroutine time to register the subscriber
	time.Sleep(50 * time.Millisecond)
	hub.Publish(ClientRoom("client-1"), TranslationStarted("mat-1", "开始翻译"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Name != "translation_started" {
		t.Errorf("Name = %s, want translation_started", got.Name)
	}
}

func TestHub_PublishToUnrelatedRoomDoesNotDeliver(t *testing.T) {
	hub := NewHub()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		hub.Serve(w, r, "conn-2", ClientRoom("client-a"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	conn := dial(t, server)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)
	hub.Publish(ClientRoom("client-b"), TranslationStarted("mat-1", "x"))

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	var got Event
	if err := conn.ReadJSON(&got); err == nil {
		t.Fatalf("expected no message, got %v", got)
	}
}

func TestHub_PublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub()
	done := make(chan struct{})
	go func() {
		hub.Publish(ClientRoom("nobody-here"), TranslationStarted("mat-1", "x"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked with no subscribers")
	}
}

func TestMaterialUpdated_OmitsEmptyOptionalFields(t *testing.T) {
	ev := MaterialUpdated("mat-1", "translated", "translated", 50, "", "", "")
	payload := ev.Payload.(map[string]interface{})
	for _, key := range []string{"translated_path", "translation_info", "file_path"} {
		if _, ok := payload[key]; ok {
			t.Errorf("expected %s to be omitted when empty", key)
		}
	}
}
