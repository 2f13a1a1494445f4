// Package statusapi exposes a small read-only HTTP surface over the
// last sync result and live Prometheus metrics, for local tooling
// (menu-bar apps, dashboards) to poll instead of tailing synclog
// files. Grounded on the teacher's internal/server package's
// gin.Engine + prometheus/promhttp wiring, trimmed to GET-only routes
// since this engine has no web UI to serve (§9 non-goal).
package statusapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"
)

// RunSummary is the last completed sync/check run, as reported by
// GET /status.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Operation  string    `json:"operation"` // "sync" or "check"
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Cancelled  bool      `json:"cancelled"`
	Error      string    `json:"error,omitempty"`
	Added      int       `json:"added"`
	Removed    int       `json:"removed"`
	Updated    int       `json:"updated"`
	Failures   int       `json:"failures"`
}

// Recorder holds the most recent RunSummary for the status handler to
// serve; Server.Record is the only writer.
type Recorder struct {
	mu   sync.RWMutex
	last *RunSummary
}

// Record stores summary as the most recently completed run.
func (r *Recorder) Record(summary RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &summary
}

func (r *Recorder) current() (RunSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return RunSummary{}, false
	}
	return *r.last, true
}

// BasicAuth gates every route behind HTTP Basic Auth when both fields
// are set. PasswordHash is a bcrypt hash, never the raw password.
type BasicAuth struct {
	User         string
	PasswordHash string
}

func (a BasicAuth) enabled() bool {
	return a.User != "" && a.PasswordHash != ""
}

// Server is the read-only status HTTP server.
type Server struct {
	*Recorder
	engine *gin.Engine
	addr   string
}

// New builds a Server listening on addr ("" disables nothing here —
// the caller decides whether to call Run at all). auth, if enabled,
// is checked on every route via HTTP Basic Auth.
func New(addr string, auth BasicAuth) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	rec := &Recorder{}
	s := &Server{Recorder: rec, engine: engine, addr: addr}

	group := engine.Group("/")
	if auth.enabled() {
		group.Use(basicAuthMiddleware(auth))
	}
	group.GET("/status", s.handleStatus)
	group.GET("/healthz", s.handleHealthz)
	group.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Run blocks serving HTTP on the configured address and returns only
// when the listener fails; Server has no shutdown method. The caller
// runs it in its own goroutine.
func (s *Server) Run() error {
	return s.engine.Run(s.addr)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	summary, ok := s.current()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "no sync has run yet"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func basicAuthMiddleware(auth BasicAuth) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, pass, ok := c.Request.BasicAuth()
		if !ok || user != auth.User || bcrypt.CompareHashAndPassword([]byte(auth.PasswordHash), []byte(pass)) != nil {
			c.Header("WWW-Authenticate", `Basic realm="ipodsync"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}
