package http

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"go-sample-plates-report/internal/config"
	"go-sample-plates-report/internal/report"
)

func testLiveConfig() config.Config {
	return config.Config{Debounce: 50 * time.Millisecond, LiveMaxConns: 4}
}

type liveReply struct {
	Type    string          `json:"type"`
	TBodyID string          `json:"tbody_id"`
	HTML    string          `json:"html"`
	Page    int             `json:"page"`
	MaxPage int             `json:"max_page"`
	Label   string          `json:"label"`
	Changes []report.Change `json:"changes"`
}

func dialLive(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + LivePath + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial live session: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readReply(t *testing.T, conn *websocket.Conn) liveReply {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply liveReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read live reply: %v", err)
	}
	return reply
}

// expectNoReply fails when a message arrives within wait. A timed out read
// leaves the connection unusable, so call it last.
func expectNoReply(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	var reply liveReply
	err := conn.ReadJSON(&reply)
	if err == nil {
		t.Fatalf("expected no further message, got %+v", reply)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected a read timeout, got %v", err)
	}
}

func sendEvent(t *testing.T, conn *websocket.Conn, ev map[string]any) {
	t.Helper()
	if err := conn.WriteJSON(ev); err != nil {
		t.Fatalf("write live event: %v", err)
	}
}

func newLiveTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	hub := newLiveHub(testLiveConfig(), zerolog.Nop())
	srv := httptest.NewServer(observabilityMiddleware(routes(loadedCatalog(t), nitfixLayout(t), hub, zerolog.Nop())))
	t.Cleanup(srv.Close)
	return srv
}

func TestLiveSessionPaging(t *testing.T) {
	conn := dialLive(t, newLiveTestServer(t), "")

	first := readReply(t, conn)
	if first.Type != "table" || first.TBodyID != "plate-rows" || first.Page != 1 || first.Label != "of 3" {
		t.Fatalf("unexpected initial table: %+v", first)
	}

	sendEvent(t, conn, map[string]any{"type": "page", "action": "last"})
	if reply := readReply(t, conn); reply.Page != 3 || !strings.Contains(reply.HTML, "Rosa canina") {
		t.Fatalf("expected last page, got %+v", reply)
	}

	sendEvent(t, conn, map[string]any{"type": "page", "page": 42})
	if reply := readReply(t, conn); reply.Page != 3 {
		t.Fatalf("out of range page must clamp, got %d", reply.Page)
	}

	sendEvent(t, conn, map[string]any{"type": "page", "action": "previous"})
	if reply := readReply(t, conn); reply.Page != 2 {
		t.Fatalf("expected page 2, got %d", reply.Page)
	}
}

func TestLiveSessionStartsFromQuery(t *testing.T) {
	conn := dialLive(t, newLiveTestServer(t), "?search-family=rosa")

	first := readReply(t, conn)
	if first.MaxPage != 1 || !strings.Contains(first.HTML, "Rosa canina") {
		t.Fatalf("session must start from the page criteria: %+v", first)
	}
}

func TestLiveSessionFiltering(t *testing.T) {
	conn := dialLive(t, newLiveTestServer(t), "")
	readReply(t, conn)

	sendEvent(t, conn, map[string]any{"type": "keyup", "control": "search-family", "value": "f"})
	sendEvent(t, conn, map[string]any{"type": "keyup", "control": "search-family", "value": "fab"})
	reply := readReply(t, conn)
	if reply.MaxPage != 2 || reply.Page != 1 {
		t.Fatalf("expected one debounced refilter to 2 plates, got %+v", reply)
	}

	sendEvent(t, conn, map[string]any{"type": "change", "control": "search-seq-returned", "checked": true})
	if reply := readReply(t, conn); reply.MaxPage != 1 || !strings.Contains(reply.HTML, "Acacia dealbata") {
		t.Fatalf("checkbox must combine with the text filter, got %+v", reply)
	}

	sendEvent(t, conn, map[string]any{"type": "clear", "control": "search-family"})
	if reply := readReply(t, conn); reply.MaxPage != 2 {
		t.Fatalf("clearing the family filter leaves the checkbox, got %+v", reply)
	}
	expectNoReply(t, conn, 4*testLiveConfig().Debounce)
}

func TestLiveSessionClearDropsPendingKeyup(t *testing.T) {
	conn := dialLive(t, newLiveTestServer(t), "")
	readReply(t, conn)

	sendEvent(t, conn, map[string]any{"type": "keyup", "control": "search-family", "value": "fab"})
	sendEvent(t, conn, map[string]any{"type": "clear", "control": "search-family"})
	if reply := readReply(t, conn); reply.MaxPage != 3 {
		t.Fatalf("clear must refilter at once to every plate, got %+v", reply)
	}
	expectNoReply(t, conn, 4*testLiveConfig().Debounce)
}

func TestLiveSessionChangeDropsPendingKeyup(t *testing.T) {
	conn := dialLive(t, newLiveTestServer(t), "")
	readReply(t, conn)

	sendEvent(t, conn, map[string]any{"type": "keyup", "control": "search-family", "value": "fab"})
	sendEvent(t, conn, map[string]any{"type": "change", "control": "search-seq-returned", "checked": true})
	if reply := readReply(t, conn); reply.MaxPage != 1 || !strings.Contains(reply.HTML, "Acacia dealbata") {
		t.Fatalf("the checkbox refilter must include the typed text, got %+v", reply)
	}
	expectNoReply(t, conn, 4*testLiveConfig().Debounce)
}

func TestLiveSessionToggle(t *testing.T) {
	conn := dialLive(t, newLiveTestServer(t), "")
	readReply(t, conn)

	sendEvent(t, conn, map[string]any{"type": "click", "id": report.FamilyRowID(0)})
	sendEvent(t, conn, map[string]any{"type": "click", "id": "unknown-control"})
	sendEvent(t, conn, map[string]any{"type": "click", "id": report.SectionHeaderID(report.SectionSamples)})

	reply := readReply(t, conn)
	if reply.Type != "toggle" || len(reply.Changes) != 2 {
		t.Fatalf("only the header click must answer, got %+v", reply)
	}
	for _, c := range reply.Changes {
		if !strings.Contains(c.Classes, report.ClosedClass) {
			t.Fatalf("expected closed classes, got %+v", reply.Changes)
		}
	}
}

func TestLiveSessionLimit(t *testing.T) {
	hub := newLiveHub(config.Config{LiveMaxConns: 1}, zerolog.Nop())
	srv := httptest.NewServer(routes(loadedCatalog(t), nitfixLayout(t), hub, zerolog.Nop()))
	t.Cleanup(srv.Close)

	conn := dialLive(t, srv, "")
	readReply(t, conn)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + LivePath
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatalf("second session must be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %+v", resp)
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin", origin: "", want: true},
		{name: "same origin", origin: "http://report.local", want: true},
		{name: "foreign origin", origin: "http://evil.example", want: false},
		{name: "listed origin", allowed: []string{"http://lab.example/"}, origin: "http://lab.example", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "http://any.example", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://report.local/api/v1/live", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := originChecker(tt.allowed)(req); got != tt.want {
				t.Fatalf("origin %q allowed = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
