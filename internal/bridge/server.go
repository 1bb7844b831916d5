// Package bridge provides an HTTP relay that stands in for the shared radio channel.
// Every frame PUT by one node is delivered to the mailbox of every other registered node.
package bridge

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/exepirit/lorachat/internal/log"
)

const (
	DefaultListen      = ":4403"
	DefaultMailboxSize = 64

	maxFrameBytes = 4096
)

// Config holds relay configuration.
type Config struct {
	Listen string
	// MailboxSize bounds each node's undelivered frames; the oldest frame is dropped when full.
	MailboxSize int
}

// Server is the HTTP relay.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     log.Logger
	size       int

	mu        sync.Mutex
	mailboxes map[string][][]byte
	relayed   uint64
	dropped   uint64
}

// StatusResponse reports relay state.
type StatusResponse struct {
	Nodes   map[string]int `json:"nodes"`
	Relayed uint64         `json:"relayed"`
	Dropped uint64         `json:"dropped"`
}

// ErrorResponse is returned with every 4xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a relay. A nil logger discards logs.
func NewServer(cfg Config, logger log.Logger) *Server {
	if cfg.Listen == "" {
		cfg.Listen = DefaultListen
	}
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = DefaultMailboxSize
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		router:    router,
		logger:    log.OrNOOP(logger),
		size:      cfg.MailboxSize,
		mailboxes: make(map[string][][]byte),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/nodes", s.requireNode, s.handleRegister)
		v1.DELETE("/nodes", s.requireNode, s.handleUnregister)
		v1.PUT("/toradio", s.requireNode, s.handleToRadio)
		v1.GET("/fromradio", s.requireNode, s.handleFromRadio)
		v1.GET("/status", s.handleStatus)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Relay listening", "address", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) requireNode(c *gin.Context) {
	if c.Query("node") == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "node query parameter is required"})
		return
	}
	c.Next()
}

// handleRegister handles POST /api/v1/nodes?node=ID
func (s *Server) handleRegister(c *gin.Context) {
	node := c.Query("node")
	s.mu.Lock()
	if _, ok := s.mailboxes[node]; !ok {
		s.mailboxes[node] = nil
		s.logger.Info("Node joined", "node", node)
	}
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

// handleUnregister handles DELETE /api/v1/nodes?node=ID
func (s *Server) handleUnregister(c *gin.Context) {
	node := c.Query("node")
	s.mu.Lock()
	delete(s.mailboxes, node)
	s.mu.Unlock()
	s.logger.Info("Node left", "node", node)
	c.Status(http.StatusNoContent)
}

// handleToRadio handles PUT /api/v1/toradio?node=ID
func (s *Server) handleToRadio(c *gin.Context) {
	node := c.Query("node")
	frame, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxFrameBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "frame too large"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mailboxes[node]; !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "node is not registered"})
		return
	}
	for peer, mailbox := range s.mailboxes {
		if peer == node {
			continue
		}
		if len(mailbox) >= s.size {
			mailbox = mailbox[1:]
			s.dropped++
		}
		s.mailboxes[peer] = append(mailbox, frame)
	}
	s.relayed++
	c.Status(http.StatusOK)
}

// handleFromRadio handles GET /api/v1/fromradio?node=ID
func (s *Server) handleFromRadio(c *gin.Context) {
	node := c.Query("node")

	s.mu.Lock()
	mailbox, ok := s.mailboxes[node]
	var frame []byte
	if ok && len(mailbox) > 0 {
		frame = mailbox[0]
		s.mailboxes[node] = mailbox[1:]
	}
	s.mu.Unlock()

	switch {
	case !ok:
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "node is not registered"})
	case frame == nil:
		c.Status(http.StatusNoContent)
	default:
		c.Data(http.StatusOK, "application/json", frame)
	}
}

// handleStatus handles GET /api/v1/status
func (s *Server) handleStatus(c *gin.Context) {
	s.mu.Lock()
	resp := StatusResponse{
		Nodes:   make(map[string]int, len(s.mailboxes)),
		Relayed: s.relayed,
		Dropped: s.dropped,
	}
	for node, mailbox := range s.mailboxes {
		resp.Nodes[node] = len(mailbox)
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, resp)
}

// Nodes returns the registered node identifiers in sorted order.
func (s *Server) Nodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	nodes := make([]string, 0, len(s.mailboxes))
	for node := range s.mailboxes {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}
