// Package dashboard serves the municipal operations API: JWT-authenticated
// REST endpoints over the complaint store plus a WebSocket feed of live
// intake events.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dhvanip/nagarseva/internal/broadcast"
	"github.com/dhvanip/nagarseva/internal/repo"
	"github.com/dhvanip/nagarseva/internal/session"
)

// Opts holds configuration for the dashboard server.
type Opts struct {
	Repo       *repo.Repository
	Sessions   *session.Store
	Hub        *broadcast.Hub
	JWTSecret  string
	TokenTTL   time.Duration // default 12h
	Port       int           // default 8080
	UploadsDir string        // served under /uploads when set
	Out        io.Writer
}

// Server is the dashboard HTTP server.
type Server struct {
	repo     *repo.Repository
	sessions *session.Store
	hub      *broadcast.Hub
	secret   []byte
	tokenTTL time.Duration
	port     int
	out      io.Writer
	router   *gin.Engine
}

// New builds the server and its routes.
func New(opts Opts) (*Server, error) {
	if opts.Repo == nil || opts.Hub == nil {
		return nil, fmt.Errorf("dashboard: repo and hub are required")
	}
	if opts.JWTSecret == "" {
		return nil, fmt.Errorf("dashboard: JWT secret is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 12 * time.Hour
	}

	s := &Server{
		repo:     opts.Repo,
		sessions: opts.Sessions,
		hub:      opts.Hub,
		secret:   []byte(opts.JWTSecret),
		tokenTTL: opts.TokenTTL,
		port:     opts.Port,
		out:      opts.Out,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.POST("/auth/login", s.handleLogin)
	router.GET("/ws", s.handleWebSocket)
	if opts.UploadsDir != "" {
		router.Static("/uploads", opts.UploadsDir)
	}

	api := router.Group("/api", s.authRequired)
	api.GET("/issues", s.handleListIssues)
	api.GET("/issues/export", s.handleExportIssues)
	api.GET("/issues/:id", s.handleGetIssue)
	api.PATCH("/issues/:id", s.handleUpdateIssue)
	api.GET("/stats", s.handleStats)

	s.router = router
	return s, nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start launches the dashboard HTTP server. It blocks until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if s.out != nil {
		fmt.Fprintf(s.out, "Dashboard API running at http://localhost:%d\n", s.port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
