package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay/internal/auth"
	"github.com/vovakirdan/wirerelay/internal/config"
	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/store"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Hub   *core.Hub
	Auth  *auth.Service
	Store store.Store

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// NewServer builds the HTTP server with REST and WebSocket routes.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewHandler(deps, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts /ws on a plain mux in front of the gin router.
// The upgrade must bypass gin: its response writer rejects the hijack.
func NewHandler(deps Deps, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Hub, deps.Auth, cfg, logger))
	mux.Handle("/", NewRouter(deps, cfg, logger))
	return mux
}

// NewRouter registers the REST routes on a gin engine.
func NewRouter(deps Deps, cfg config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	if cfg.MetricsEnabled && deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	presence := NewPresenceHandlers(deps.Hub, logger)
	api.GET("/roster", presence.Roster)

	if deps.Auth != nil && deps.Store != nil {
		accounts := NewAccountHandlers(deps.Auth, logger)
		api.POST("/register", accounts.Register)
		api.POST("/login", accounts.Login)

		messages := NewMessageHandlers(deps.Hub, deps.Store, logger)
		protected := api.Group("")
		protected.Use(AuthMiddleware(deps.Auth, logger))
		protected.GET("/messages", messages.History)
		protected.GET("/messages/:id", messages.Get)
		protected.POST("/messages/seen", messages.MarkSeen)
	}

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
