package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"perp-trader/internal/engine"
	"perp-trader/internal/events"
	"perp-trader/internal/monitor"
	"perp-trader/pkg/db"
)

// JournalReader lists journal rows for display. *db.Queries implements it.
type JournalReader interface {
	RecentOrders(ctx context.Context, symbol string, limit int) ([]db.OrderRecord, error)
	RecentSignals(ctx context.Context, symbol string, limit int) ([]db.SignalRecord, error)
}

// Options configure a Server.
type Options struct {
	Engine    engine.Service
	Bus       *events.Bus
	Metrics   *monitor.Metrics
	Journal   JournalReader // optional
	JWTSecret string
	RateLimit float64 // requests per second per IP
	Burst     int
	Log       *logrus.Entry
}

// Server wires HTTP endpoints around the orchestrator and the event bus.
type Server struct {
	Router    *gin.Engine
	Engine    engine.Service
	Bus       *events.Bus
	Metrics   *monitor.Metrics
	Journal   JournalReader
	JWTSecret string
	log       *logrus.Entry
}

func NewServer(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.Burst <= 0 {
		opts.Burst = 50
	}

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(opts.Log, opts.Metrics))
	r.Use(RateLimitMiddleware(newIPLimiters(opts.RateLimit, opts.Burst), opts.Log))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Engine:    opts.Engine,
		Bus:       opts.Bus,
		Metrics:   opts.Metrics,
		Journal:   opts.Journal,
		JWTSecret: opts.JWTSecret,
		log:       opts.Log,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)
	if s.Metrics != nil {
		s.Router.GET("/metrics", gin.WrapH(s.Metrics.Handler()))
	}

	api := s.Router.Group("/api")
	{
		api.GET("/symbols", s.listSymbols)
		api.GET("/symbols/:symbol", s.getSymbol)
		api.GET("/prices", s.getPrices)
		api.GET("/orders", s.getOrders)
		api.GET("/signals", s.getSignals)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/symbols", s.addSymbol)
			protected.DELETE("/symbols/:symbol", s.removeSymbol)
			protected.PUT("/symbols/:symbol/status", s.setSymbolStatus)
			protected.POST("/orders", s.createOrder)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"system": s.Engine.GetSystemStatus(),
	}
	if s.Metrics != nil {
		resp["metrics"] = s.Metrics.GetSnapshot()
	}
	if s.Bus != nil {
		resp["events_dropped"] = s.Bus.Dropped()
	}
	c.JSON(http.StatusOK, resp)
}

// Handler exposes the router for an http.Server.
func (s *Server) Handler() http.Handler { return s.Router }
