package bridge

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/subvoice/internal/caption"
	"github.com/dgnsrekt/subvoice/internal/session"
	"github.com/dgnsrekt/subvoice/internal/vtt"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Page shim message types.
const (
	MsgHello    = "hello"
	MsgWatch    = "watch"
	MsgSnapshot = "snapshot"
	MsgNavigate = "navigate"
	MsgTime     = "time"
	MsgCues     = "cues"
	MsgDocument = "document"
	MsgRequest  = "request"
	MsgResponse = "response"
	MsgPing     = "ping"
	MsgPong     = "pong"
	MsgError    = "error"
)

const (
	readLimit   = 4 << 20
	pongWait    = 60 * time.Second
	pingPeriod  = pongWait * 9 / 10
	writeWait   = 10 * time.Second
	loadTimeout = 5 * time.Minute
)

// Inbound is a message from the page shim.
type Inbound struct {
	Type string `json:"type"`

	URL string `json:"url,omitempty"`

	Elements []caption.Element `json:"elements,omitempty"`
	Video    *caption.Rect     `json:"video,omitempty"`

	// Position is the video time in seconds.
	Position float64 `json:"position,omitempty"`

	VTT      string              `json:"vtt,omitempty"`
	Document *vtt.StaticDocument `json:"document,omitempty"`

	Request *Request `json:"request,omitempty"`
}

// Outbound is a message to the page shim.
type Outbound struct {
	Type      string    `json:"type"`
	Session   string    `json:"session,omitempty"`
	Selectors []string  `json:"selectors,omitempty"`
	Response  *Response `json:"response,omitempty"`
	Cues      int       `json:"cues,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// peer serializes writes to one WebSocket connection.
type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(msg Outbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteJSON(msg)
}

func (p *peer) ping() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	s.serveConn(conn)
}

func (s *Server) serveConn(conn *websocket.Conn) {
	p := &peer{conn: conn}
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		s.release(p)
		_ = conn.Close()
	}()

	s.logger.Info("page connected", "remote", conn.RemoteAddr().String())

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.ping(); err != nil {
					return
				}
			}
		}
	}()

	for {
		var msg Inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read error", "error", err)
			} else {
				s.logger.Info("page disconnected")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		s.dispatch(ctx, &wg, p, msg)
	}
}

func (s *Server) dispatch(ctx context.Context, wg *sync.WaitGroup, p *peer, msg Inbound) {
	switch msg.Type {
	case MsgPing:
		_ = p.send(Outbound{Type: MsgPong})

	case MsgHello:
		sess, err := session.New(s.deps, msg.URL)
		if err != nil {
			_ = p.send(Outbound{Type: MsgError, Error: err.Error()})
			return
		}
		s.replace(sess, p)
		_ = p.send(Outbound{Type: MsgWatch, Session: sess.ID(), Selectors: sess.Selectors()})

	case MsgRequest:
		if msg.Request == nil {
			_ = p.send(Outbound{Type: MsgError, Error: "request message without request"})
			return
		}
		req := *msg.Request
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := s.router.Handle(ctx, req)
			_ = p.send(Outbound{Type: MsgResponse, Response: &resp})
		}()

	default:
		sess := s.sessionFor(p)
		if sess == nil {
			_ = p.send(Outbound{Type: MsgError, Error: "no active session, send hello first"})
			return
		}
		s.dispatchSession(ctx, wg, p, sess, msg)
	}
}

func (s *Server) dispatchSession(ctx context.Context, wg *sync.WaitGroup, p *peer, sess *session.Session, msg Inbound) {
	switch msg.Type {
	case MsgSnapshot:
		sess.Observe(msg.Elements, msg.Video)

	case MsgTime:
		sess.TimeUpdate(time.Duration(msg.Position * float64(time.Second)))

	case MsgNavigate:
		if err := sess.Navigate(msg.URL); err != nil {
			_ = p.send(Outbound{Type: MsgError, Error: err.Error()})
			return
		}
		out := Outbound{Type: MsgWatch, Session: sess.ID()}
		if src, err := sourceFor(msg.URL); err == nil {
			out.Selectors = src.Selectors()
		}
		_ = p.send(out)

	case MsgCues:
		cues, err := vtt.Parse(strings.NewReader(msg.VTT))
		if err != nil {
			_ = p.send(Outbound{Type: MsgError, Error: err.Error()})
			return
		}
		s.load(ctx, wg, p, func(ctx context.Context) (int, error) {
			return sess.LoadCues(ctx, cues)
		})

	case MsgDocument:
		if msg.Document == nil {
			_ = p.send(Outbound{Type: MsgError, Error: "document message without document"})
			return
		}
		doc := *msg.Document
		s.load(ctx, wg, p, func(ctx context.Context) (int, error) {
			return sess.LoadDocument(ctx, doc)
		})

	default:
		_ = p.send(Outbound{Type: MsgError, Error: "unknown message type: " + msg.Type})
	}
}

// load runs a subtitle load in the background and reports the result.
func (s *Server) load(ctx context.Context, wg *sync.WaitGroup, p *peer, fn func(context.Context) (int, error)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(ctx, loadTimeout)
		defer cancel()

		n, err := fn(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.logger.Warn("could not load subtitles", "error", err)
			}
			_ = p.send(Outbound{Type: MsgError, Error: err.Error()})
			return
		}
		_ = p.send(Outbound{Type: MsgCues, Cues: n})
	}()
}

func (s *Server) sessionFor(p *peer) *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != p {
		return nil
	}
	return s.active
}

func sourceFor(rawURL string) (caption.Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	return caption.ForHost(u.Hostname(), caption.Options{})
}
