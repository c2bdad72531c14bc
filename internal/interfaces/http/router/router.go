// Package router assembles the gin engine of the cockpit API.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/config"
	"github.com/sazar-neudorff/productmanager/internal/infrastructure/logger"
	"github.com/sazar-neudorff/productmanager/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars map[string][]RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
		registrars: make(map[string][]RouteRegistrar),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds registrars below /api/<version>/<area>
func (r *Router) Register(area string, registrars ...RouteRegistrar) *Router {
	r.registrars[area] = append(r.registrars[area], registrars...)
	return r
}

// Setup registers all routes with the engine. Areas are mounted with the
// given middleware in front of their handlers.
func (r *Router) Setup(areaMiddleware ...gin.HandlerFunc) {
	api := r.engine.Group("/api/" + r.apiVersion)
	for area, registrars := range r.registrars {
		group := api.Group("/" + area)
		group.Use(areaMiddleware...)
		for _, registrar := range registrars {
			registrar.RegisterRoutes(group)
		}
	}
}

// EngineConfig carries what NewEngine needs besides the handlers
type EngineConfig struct {
	HTTP        config.HTTPConfig
	ServiceName string
	Tracing     bool
	Logger      *zap.Logger
}

// NewEngine creates a gin engine with the global middleware stack:
// recovery, request logging, tracing, security headers, CORS and the
// body size limit
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(logger.Recovery(cfg.Logger))
	if cfg.Tracing {
		engine.Use(middleware.Tracing(cfg.ServiceName))
	}
	engine.Use(
		logger.GinMiddleware(cfg.Logger),
		middleware.SpanEnricher(),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfig{
			AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
			AllowMethods:     cfg.HTTP.CORSAllowMethods,
			AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
			ExposeHeaders:    []string{logger.RequestIDHeader},
			AllowCredentials: true,
		}),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	middleware.SetupValidator()
	return engine, nil
}
