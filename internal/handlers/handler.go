package handlers

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"still_controller/internal/logger"
	"still_controller/internal/service"
	"still_controller/internal/transport"
)

// Stream is the live telemetry link the websocket endpoint rides on.
type Stream interface {
	Subscribe() (*transport.Subscription, error)
	Unsubscribe(s *transport.Subscription)
	Latest() []byte
	Enqueue(payload []byte) error
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger

	stream       Stream
	binaryFrames bool
}

// Option customises a Handler.
type Option func(*Handler)

// WithStream pushes telemetry frames over /ws instead of polling Monitoring. binary marks
// frames that are not UTF-8 text (msgpack).
func WithStream(s Stream, binary bool) Option {
	return func(h *Handler) {
		h.stream = s
		h.binaryFrames = binary
	}
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{services: services, log: log}
	for _, o := range opts {
		o(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), corsMiddleware)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Telemetry stream and command channel on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerStillRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerStillRoutes(api *gin.RouterGroup) {
	still := api.Group("/still")
	{
		still.GET("/state", h.getState)
		still.POST("/start", h.startStill)
		still.POST("/stop", h.stopStill)
		still.POST("/reset", h.resetStill)
		still.POST("/shutdown", h.shutdownStill)
		// Body example: {"duty":40}
		still.POST("/manual", h.setManualDuty)
		still.DELETE("/manual", h.clearManual)
		// Body example: {"r":255,"g":0,"b":0}
		still.PUT("/indicator", h.setIndicator)
		still.DELETE("/indicator", h.clearIndicator)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
