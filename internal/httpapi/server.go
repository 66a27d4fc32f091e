package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/testtrace/internal/ingest"
)

// SnapshotSource is the narrow backend contract required by the API.
type SnapshotSource interface {
	Snapshot() ingest.Snapshot
	TimelineIDs() []string
}

// Server provides an HTTP API for inspecting the state captured by the
// loopback ingest backend.
type Server struct {
	addr      string
	backend   SnapshotSource
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, backend SnapshotSource) *Server {
	if addr == "" {
		addr = "127.0.0.1:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		backend: backend,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/timelines", s.handleTimelines)
	r.GET("/api/events", s.handleEvents)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.addr = listener.Addr().String()
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the active listen address.
func (s *Server) Addr() string { return s.addr }

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.backend.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime":         time.Since(s.startTime).String(),
		"timeline_count": len(snap.Timelines),
		"event_count":    len(snap.Events),
		"key_count":      len(snap.Keys),
		"flush_count":    snap.Flushes,
	})
}

func (s *Server) handleTimelines(c *gin.Context) {
	snap := s.backend.Snapshot()

	timelines := make([]gin.H, 0, len(snap.Timelines))
	for _, id := range s.backend.TimelineIDs() {
		md := snap.Timelines[id]
		rendered := make(map[string]string, len(md))
		for k, v := range md {
			rendered[k] = v.String()
		}
		timelines = append(timelines, gin.H{
			"id":       id,
			"metadata": rendered,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"timelines": timelines,
		"count":     len(timelines),
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	snap := s.backend.Snapshot()
	timelineFilter := c.Query("timeline")

	events := make([]gin.H, 0, len(snap.Events))
	for _, ev := range snap.Events {
		if timelineFilter != "" && ev.Timeline != timelineFilter {
			continue
		}
		rendered := make(map[string]string, len(ev.Attrs))
		for k, v := range ev.Attrs {
			rendered[k] = v.String()
		}
		events = append(events, gin.H{
			"timeline": ev.Timeline,
			"ordering": ev.Ordering,
			"attrs":    rendered,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}
