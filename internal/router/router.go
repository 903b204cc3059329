package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/pageza/nutrisnap/backend/internal/api"
	"github.com/pageza/nutrisnap/backend/internal/logger"
	"github.com/pageza/nutrisnap/backend/internal/middleware"
)

const serviceName = "nutrisnap-backend"

// Handlers groups the route handlers mounted by SetupRouter.
type Handlers struct {
	Health    *api.HealthHandler
	Meals     *api.MealHandler
	Dashboard *api.DashboardHandler
	Profiles  *api.ProfileHandler
}

// SetupRouter configures the application routes
func SetupRouter(log *logger.Logger, corsOrigins []string, h Handlers) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))
	router.Use(otelgin.Middleware(serviceName))
	router.Use(middleware.CORS(corsOrigins))

	if h.Health != nil {
		h.Health.RegisterRoutes(router)
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	if h.Meals != nil {
		h.Meals.RegisterRoutes(v1)
	}
	if h.Dashboard != nil {
		h.Dashboard.RegisterRoutes(v1)
	}
	if h.Profiles != nil {
		h.Profiles.RegisterRoutes(v1)
	}

	return router
}
