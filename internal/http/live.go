package http

import (
	"encoding/json"
	nethttp "net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"go-sample-plates-report/internal/config"
	"go-sample-plates-report/internal/render"
	"go-sample-plates-report/internal/report"
)

// Client event types.
const (
	eventKeyup  = "keyup"
	eventChange = "change"
	eventClear  = "clear"
	eventPage   = "page"
	eventClick  = "click"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveMaxMessage = 4096
)

type clientEvent struct {
	Type    string `json:"type"`
	Control string `json:"control,omitempty"`
	Value   string `json:"value,omitempty"`
	Checked bool   `json:"checked,omitempty"`
	Action  string `json:"action,omitempty"`
	Page    int    `json:"page,omitempty"`
	ID      string `json:"id,omitempty"`
}

type tableMessage struct {
	Type    string `json:"type"`
	TBodyID string `json:"tbody_id"`
	HTML    string `json:"html"`
	Page    int    `json:"page"`
	MaxPage int    `json:"max_page"`
	Label   string `json:"label"`
}

type toggleMessage struct {
	Type    string          `json:"type"`
	Changes []report.Change `json:"changes"`
}

// liveHub upgrades report pages to websocket sessions and tracks them so
// they can be closed on shutdown.
type liveHub struct {
	upgrader websocket.Upgrader
	debounce time.Duration
	slots    chan struct{}
	logger   zerolog.Logger

	mu       sync.Mutex
	sessions map[*liveSession]struct{}
}

func newLiveHub(cfg config.Config, logger zerolog.Logger) *liveHub {
	h := &liveHub{
		debounce: cfg.Debounce,
		logger:   logger,
		sessions: map[*liveSession]struct{}{},
	}
	if h.debounce <= 0 {
		h.debounce = report.DefaultDebounce
	}
	if cfg.LiveMaxConns > 0 {
		h.slots = make(chan struct{}, cfg.LiveMaxConns)
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.LiveOrigins),
	}
	return h
}

// originChecker allows same-origin requests, plus the listed origins. A
// "*" entry allows any origin.
func originChecker(allowed []string) func(*nethttp.Request) bool {
	return func(r *nethttp.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(strings.TrimRight(a, "/"), origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

func (h *liveHub) acquire() bool {
	if h.slots == nil {
		return true
	}
	select {
	case h.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (h *liveHub) release() {
	if h.slots != nil {
		<-h.slots
	}
}

func (h *liveHub) handler(cat *catalog, layout report.Layout) nethttp.HandlerFunc {
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		snap, ok := loadedSnapshot(w, cat)
		if !ok {
			return
		}
		if !h.acquire() {
			writeJSON(w, nethttp.StatusServiceUnavailable, map[string]any{
				"error": "too many live sessions (APP_LIVE_MAX_CONNS)",
			})
			return
		}
		defer h.release()

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("live upgrade failed")
			return
		}

		state := stateFromRequest(r, snap, layout)
		sess := &liveSession{
			conn:     conn,
			layout:   layout,
			logger:   h.logger.With().Str("remote", r.RemoteAddr).Logger(),
			state:    state,
			criteria: state.Criteria(),
			toggler:  report.NewToggler(report.PageDocument(snap.Coverage)),
		}
		sess.keyup = report.NewDebouncer(h.debounce, func(struct{}) {
			if err := sess.refilter(); err != nil {
				sess.logger.Debug().Err(err).Msg("debounced refilter not delivered")
			}
		})

		h.mu.Lock()
		h.sessions[sess] = struct{}{}
		h.mu.Unlock()
		liveSessions.Inc()
		defer func() {
			h.mu.Lock()
			delete(h.sessions, sess)
			h.mu.Unlock()
			liveSessions.Dec()
		}()

		sess.run()
	}
}

// CloseAll tells every open session the server is going away.
func (h *liveHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sess := range h.sessions {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = sess.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(liveWriteWait))
		_ = sess.conn.Close()
	}
}

// liveSession is one browser page. It owns the page's report state and
// the open/closed model of its sections, and answers each client event
// with the table or class changes the page should apply.
type liveSession struct {
	conn   *websocket.Conn
	layout report.Layout
	logger zerolog.Logger

	// mu guards the report state and every data frame written.
	mu       sync.Mutex
	state    *report.State
	criteria report.Criteria
	toggler  *report.Toggler
	keyup    *report.Debouncer[struct{}]
}

func (s *liveSession) run() {
	defer s.conn.Close()
	defer s.keyup.Stop()

	s.conn.SetReadLimit(liveMaxMessage)
	_ = s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.ping(done)

	if err := s.sendTable(); err != nil {
		s.logger.Warn().Err(err).Msg("initial table not delivered")
		return
	}

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.logger.Warn().Err(err).Msg("live session closed unexpectedly")
			}
			return
		}
		var ev clientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug().Err(err).Msg("ignoring malformed live event")
			continue
		}
		if err := s.handle(ev); err != nil {
			s.logger.Warn().Err(err).Str("event", ev.Type).Msg("live reply failed")
			return
		}
	}
}

func (s *liveSession) ping(done <-chan struct{}) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}

// handle applies one client event. Events naming unknown controls or
// actions are ignored.
func (s *liveSession) handle(ev clientEvent) error {
	recordLiveEvent(ev.Type)
	switch ev.Type {
	case eventKeyup:
		if !s.setCriteria(ev.Control, report.Substring, func(c report.Criteria) report.Criteria {
			return c.WithText(ev.Control, ev.Value)
		}) {
			return nil
		}
		// The refilter reads the criteria when it fires, so a checkbox
		// changed inside the wait is kept.
		s.keyup.Call(struct{}{})
		return nil
	case eventChange:
		if !s.setCriteria(ev.Control, report.Flag, func(c report.Criteria) report.Criteria {
			return c.WithChecked(ev.Control, ev.Checked)
		}) {
			return nil
		}
		// Typed text is already in the criteria; a pending keyup would only
		// send the same table again.
		s.keyup.Stop()
		return s.refilter()
	case eventClear:
		if _, ok := s.layout.Criterion(ev.Control); !ok {
			return nil
		}
		s.mu.Lock()
		s.criteria = s.criteria.Cleared(ev.Control)
		s.mu.Unlock()
		s.keyup.Stop()
		return s.refilter()
	case eventPage:
		return s.changePage(ev)
	case eventClick:
		s.mu.Lock()
		defer s.mu.Unlock()
		changes := s.toggler.Click(ev.ID)
		if len(changes) == 0 {
			return nil
		}
		return s.writeLocked(toggleMessage{Type: "toggle", Changes: changes})
	}
	return nil
}

func (s *liveSession) setCriteria(control string, kind report.CriterionKind, apply func(report.Criteria) report.Criteria) bool {
	def, ok := s.layout.Criterion(control)
	if !ok || def.Kind != kind {
		return false
	}
	s.mu.Lock()
	s.criteria = apply(s.criteria)
	s.mu.Unlock()
	return true
}

func (s *liveSession) changePage(ev clientEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Action {
	case "first":
		s.state.First()
	case "previous":
		s.state.Previous()
	case "next":
		s.state.Next()
	case "last":
		s.state.Last()
	case "":
		s.state.ChangePage(ev.Page)
	default:
		return nil
	}
	return s.sendTableLocked()
}

func (s *liveSession) refilter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.FilterChange(s.criteria)
	return s.sendTableLocked()
}

func (s *liveSession) sendTable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendTableLocked()
}

// sendTableLocked writes the current table while s.mu is held, so replies
// leave in the order their state changes were made.
func (s *liveSession) sendTableLocked() error {
	start := time.Now()
	html, err := render.TableHTML(report.BuildTableRows(s.state))
	if err != nil {
		recordReportRun("live", "error", time.Since(start).Seconds())
		return err
	}
	recordReportRun("live", "ok", time.Since(start).Seconds())
	return s.writeLocked(tableMessage{
		Type:    "table",
		TBodyID: render.TableBodyID,
		HTML:    html,
		Page:    s.state.Page(),
		MaxPage: s.state.MaxPage(),
		Label:   s.state.MaxPageLabel(),
	})
}

func (s *liveSession) writeLocked(v any) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	return s.conn.WriteJSON(v)
}
