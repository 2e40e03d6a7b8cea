package bridge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/subvoice/internal/cache"
	"github.com/dgnsrekt/subvoice/internal/session"
	"github.com/dgnsrekt/subvoice/internal/settings"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
)

// DefaultAddr is where the bridge listens unless configured otherwise.
const DefaultAddr = "127.0.0.1:8765"

// Server serves the page shim WebSocket and the JSON API.
type Server struct {
	deps     session.Deps
	backend  session.Backend
	settings *settings.Store
	router   *Router

	mu     sync.Mutex
	active *session.Session
	conn   *peer

	handler  http.Handler
	upgrader websocket.Upgrader
	logger   *log.Logger
}

// NewServer creates a server whose sessions are built from deps.
func NewServer(deps session.Deps) *Server {
	if deps.Settings == nil {
		deps.Settings = settings.NewStore(nil)
	}
	if deps.Events == nil {
		deps.Events = session.NewHub()
	}

	s := &Server{
		deps:     deps,
		backend:  deps.Backend,
		settings: deps.Settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The shim runs inside arbitrary video sites.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: log.WithPrefix("bridge"),
	}
	s.router = NewRouter(deps.Backend, deps.Settings, s.hasSubtitles)
	s.handler = s.routes()
	return s
}

// Events returns the hub sessions publish to.
func (s *Server) Events() *session.Hub { return s.deps.Events }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	engine := gin.New()
	engine.Use(gin.Recovery(), s.logRequests())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/ws", s.handleWS)

	api := engine.Group("/api")
	{
		api.POST("/message", s.handleMessage)
		api.GET("/status", s.handleStatus)
		api.GET("/settings", s.handleGetSettings)
		api.PUT("/settings", s.handlePutSettings)
		api.DELETE("/cache", s.handleClearCache)
		api.DELETE("/queue", s.handleClearQueue)
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", gzhttp.GzipHandler(engine))
	mux.Handle("/", engine)
	return mux
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		)
	}
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("bridge listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Active returns the current session, if any.
func (s *Server) Active() *session.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// replace installs sess as the active session and closes the previous one.
func (s *Server) replace(sess *session.Session, p *peer) {
	s.mu.Lock()
	old := s.active
	s.active, s.conn = sess, p
	s.mu.Unlock()

	if old != nil {
		s.logger.Info("replacing session", "old", old.ID(), "new", sess.ID())
		_ = old.Close()
	}
}

// release closes the active session if it still belongs to p.
func (s *Server) release(p *peer) {
	s.mu.Lock()
	var sess *session.Session
	if s.conn == p {
		sess = s.active
		s.active, s.conn = nil, nil
	}
	s.mu.Unlock()

	if sess != nil {
		_ = sess.Close()
	}
}

func (s *Server) hasSubtitles() bool {
	if sess := s.Active(); sess != nil {
		return sess.HasSubtitles()
	}
	return false
}

// Close ends the active session.
func (s *Server) Close() {
	s.mu.Lock()
	sess := s.active
	s.active, s.conn = nil, nil
	s.mu.Unlock()

	if sess != nil {
		_ = sess.Close()
	}
}

func (s *Server) handleMessage(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: "invalid request: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.router.Handle(c.Request.Context(), req))
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Active   bool            `json:"active"`
	Session  *session.Status `json:"session,omitempty"`
	Settings settings.Config `json:"settings"`
	Cache    cache.Stats     `json:"cache"`
}

// Status reports the active session, settings and cache.
func (s *Server) Status() StatusResponse {
	resp := StatusResponse{Settings: s.settings.Config()}
	if s.backend != nil {
		resp.Cache = s.backend.CacheStats()
	}
	if sess := s.Active(); sess != nil {
		st := sess.Status()
		resp.Active = true
		resp.Session = &st
	}
	return resp
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Status())
}

// CacheClearer is implemented by backends whose phrase cache can be emptied.
type CacheClearer interface {
	ClearCache()
}

func (s *Server) handleClearCache(c *gin.Context) {
	cc, ok := s.backend.(CacheClearer)
	if !ok {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "cache cannot be cleared"})
		return
	}
	cc.ClearCache()
	s.logger.Info("phrase cache cleared")
	c.JSON(http.StatusOK, s.backend.CacheStats())
}

func (s *Server) handleClearQueue(c *gin.Context) {
	sess := s.Active()
	if sess == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no page is connected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"dropped": sess.ClearQueue()})
}

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.settings.Config())
}

// settingsPatch is a partial settings update.
type settingsPatch struct {
	TargetLanguage *string `json:"targetLanguage"`
	Volume         *int    `json:"volume"`
	Speed          *int    `json:"speed"`
	IsEnabled      *bool   `json:"isEnabled"`
}

func (p settingsPatch) apply(c *settings.Config) {
	if p.TargetLanguage != nil {
		c.TargetLanguage = *p.TargetLanguage
	}
	if p.Volume != nil {
		c.Volume = *p.Volume
	}
	if p.Speed != nil {
		c.Speed = *p.Speed
	}
	if p.IsEnabled != nil {
		c.IsEnabled = *p.IsEnabled
	}
}

func (s *Server) handlePutSettings(c *gin.Context) {
	var patch settingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings: " + err.Error()})
		return
	}
	if err := s.settings.Set(patch.apply); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.settings.Config())
}
