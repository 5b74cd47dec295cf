// Package api exposes the HTTP and WebSocket surface of the engine.
package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/solroute/orderengine/internal/cache"
	"github.com/solroute/orderengine/internal/dispatch"
	"github.com/solroute/orderengine/internal/orders"
	"github.com/solroute/orderengine/internal/ws"
)

// Server is the API server. All collaborators are injected so tests can
// construct isolated instances.
type Server struct {
	router      *gin.Engine
	logger      *zap.Logger
	repo        orders.Repository
	dispatcher  *dispatch.Dispatcher
	broadcaster *ws.Broadcaster
	cache       *cache.OrderCache // optional
	upgrader    websocket.Upgrader
}

// NewServer wires routes and middleware. cache may be nil.
func NewServer(
	logger *zap.Logger,
	repo orders.Repository,
	dispatcher *dispatch.Dispatcher,
	broadcaster *ws.Broadcaster,
	orderCache *cache.OrderCache,
) *Server {
	s := &Server{
		logger:      logger,
		repo:        repo,
		dispatcher:  dispatcher,
		broadcaster: broadcaster,
		cache:       orderCache,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	s.router = router
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.POST("/api/orders/execute", s.createOrder)
	s.router.GET("/api/orders/:id", s.getOrder)
	s.router.GET("/api/orders", s.listOrders)
	s.router.GET("/api/queue/stats", s.queueStats)
	s.router.GET("/api/ws/stats", s.wsStats)
	s.router.GET("/health", s.health)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/ws/:orderId", s.serveWS)
}

// Handler exposes the router for tests and for the HTTP server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run starts serving on the given address.
func (s *Server) Run(addr string) error {
	s.logger.Info("Starting API server", zap.String("addr", addr))
	return s.router.Run(addr)
}
