package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
	"github.com/goliatone/go-sheetboard/components/sheetboard/commands"
)

func TestMountServesJSONRoutes(t *testing.T) {
	sortCmd := &stubCommander[commands.ToggleSortInput]{}
	api := &Handlers{Exec: &CommandExecutor{SortCommand: sortCmd, BoardQuery: boardQuery()}}
	mux := http.NewServeMux()
	api.Mount(mux, "/board/")
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/board/_view")
	if err != nil {
		t.Fatalf("get view: %v", err)
	}
	var view sheetboard.BoardView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || view.Total != 3 {
		t.Fatalf("unexpected view response %d %+v", resp.StatusCode, view)
	}

	resp, err = srv.Client().Post(srv.URL+"/board/sort", "application/json", strings.NewReader(`{"col":1}`))
	if err != nil {
		t.Fatalf("post sort: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || sortCmd.last.Column != 1 {
		t.Fatalf("unexpected sort response %d %+v", resp.StatusCode, sortCmd.last)
	}

	resp, err = srv.Client().Get(srv.URL + "/board/sort")
	if err != nil {
		t.Fatalf("get sort: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET on a command route, got %d", resp.StatusCode)
	}
}

func TestMountStreamsBoardEventsOverWebSocket(t *testing.T) {
	hook := sheetboard.NewBroadcastHook()
	api := &Handlers{Exec: &CommandExecutor{}, Broadcast: hook}
	mux := http.NewServeMux()
	api.Mount(mux, "/board")
	srv := httptest.NewServer(mux)
	defer srv.Close()

	const session = "22222222-2222-4222-8222-222222222222"
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/board/ws?session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hook.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("websocket never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx := context.Background()
	_ = hook.BoardUpdated(ctx, sheetboard.BoardEvent{SessionID: "other", Reason: "reload"})
	_ = hook.BoardUpdated(ctx, sheetboard.BoardEvent{SessionID: session, Reason: "search", Visible: 2})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event sheetboard.BoardEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Reason != "search" || event.Visible != 2 {
		t.Fatalf("expected the session's search event, got %+v", event)
	}
}

func TestMountRejectsStreamsWithoutSession(t *testing.T) {
	hook := sheetboard.NewBroadcastHook()
	api := &Handlers{Exec: &CommandExecutor{}, Broadcast: hook}
	mux := http.NewServeMux()
	api.Mount(mux, "/board")
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
	for _, path := range []string{"/board/ws", "/board/ws?session=", "/board/ws?session=not-a-session"} {
		_, resp, err := websocket.DefaultDialer.Dial(wsBase+path, nil)
		if err == nil {
			t.Fatalf("%s: expected the upgrade to be refused", path)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %v", path, resp)
		}
	}

	resp, err := srv.Client().Get(srv.URL + "/board/events")
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for SSE without a session, got %d", resp.StatusCode)
	}
	if hook.Subscribers() != 0 {
		t.Fatalf("rejected streams must not subscribe, got %d", hook.Subscribers())
	}
}

func TestMountScopesSSEToSessionCookie(t *testing.T) {
	hook := sheetboard.NewBroadcastHook()
	api := &Handlers{Exec: &CommandExecutor{}, Broadcast: hook}
	mux := http.NewServeMux()
	api.Mount(mux, "/board")
	srv := httptest.NewServer(mux)
	defer srv.Close()

	const session = "33333333-3333-4333-8333-333333333333"
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/board/events", nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.AddCookie(&http.Cookie{Name: sheetboard.SessionCookie, Value: session})
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	for hook.Subscribers() == 0 {
		if ctx.Err() != nil {
			t.Fatal("sse never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	_ = hook.BoardUpdated(ctx, sheetboard.BoardEvent{
		SessionID: "44444444-4444-4444-8444-444444444444",
		Reason:    "search",
		Filters:   sheetboard.FilterSpec{Search: "salario ana"},
	})
	_ = hook.BoardUpdated(ctx, sheetboard.BoardEvent{SessionID: session, Reason: "sort"})

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var event sheetboard.BoardEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
		t.Fatalf("decode %q: %v", line, err)
	}
	if event.SessionID != session || event.Reason != "sort" {
		t.Fatalf("expected only the cookie session's event, got %+v", event)
	}
}
