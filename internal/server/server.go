// Package server assembles the HTTP surface: middleware chain, routes, and
// the listener lifecycle.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"taskify/internal/config"
	"taskify/internal/handlers"
	"taskify/internal/middleware"
	"taskify/internal/monitoring"
	"taskify/internal/services"
)

const shutdownGrace = 10 * time.Second

type Options struct {
	Config *config.Config
	Users  services.UserService
	Tasks  services.TaskService
}

// NewRouter builds the engine with the full middleware chain and all routes.
// Probes and metrics sit outside /api and outside the rate limiter so
// infrastructure can always reach them.
func NewRouter(opts Options) *gin.Engine {
	if opts.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithLog())
	router.Use(middleware.RequestLogger())
	router.Use(monitoring.MetricsMiddleware())
	router.Use(cors.New(corsConfig()))

	router.GET("/health", monitoring.HealthHandler())
	router.GET("/ready", monitoring.ReadinessHandler())
	router.GET("/live", monitoring.LivenessHandler())
	router.GET("/metrics", monitoring.MetricsHandler())

	api := router.Group("/api")
	if opts.Config.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerSecond: opts.Config.RateLimit.RequestsPerSecond,
			Burst:             opts.Config.RateLimit.Burst,
			ClientTTL:         opts.Config.RateLimit.ClientTTL,
		})
		api.Use(limiter.Middleware())
	}

	users := handlers.NewUserHandler(opts.Users)
	api.POST("/users", users.CreateUser)
	api.GET("/users", users.GetUsers)
	api.GET("/users/:id", users.GetUserByID)
	api.PUT("/users/:id", users.ReplaceUser)
	api.DELETE("/users/:id", users.DeleteUser)

	tasks := handlers.NewTaskHandler(opts.Tasks)
	api.POST("/tasks", tasks.CreateTask)
	api.GET("/tasks", tasks.GetTasks)
	api.GET("/tasks/:id", tasks.GetTaskByID)
	api.PUT("/tasks/:id", tasks.ReplaceTask)
	api.DELETE("/tasks/:id", tasks.DeleteTask)

	return router
}

func corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowAllOrigins = true
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}

// Run serves until ctx is cancelled, then drains in-flight requests for up
// to shutdownGrace before returning.
func Run(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Printf("[server] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
