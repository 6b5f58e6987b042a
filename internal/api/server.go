package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"futures-core/internal/execution"
	"futures-core/internal/strategy"
	"futures-core/pkg/db"
)

// Server is the operational HTTP surface: health, metrics, and recent order
// records. It never places orders; all trading flows through the queue.
type Server struct {
	client *execution.Client
	loop   *strategy.Loop
	store  *db.Database
	engine *gin.Engine
}

// NewServer wires the ops routes.
func NewServer(client *execution.Client, loop *strategy.Loop, store *db.Database) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		client: client,
		loop:   loop,
		store:  store,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.engine.GET("/orders", s.orders)
	s.engine.GET("/state", s.state)
}

// health pings the broker session through the queue, so it exercises the
// whole request path.
func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 6*time.Second)
	defer cancel()

	if err := s.client.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) orders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.store.RecentOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": records})
}

func (s *Server) state(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"risk":     s.loop.RiskState(),
		"position": s.loop.PositionState(),
	})
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
