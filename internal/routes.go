package internal

import (
	"moriportal/internal/controllers"
	"moriportal/internal/providers"
	"net/http"
)

// InitRoutes collects the prefixed API routes. Anonymous write routes go
// through the per-IP limiter.
func InitRoutes(
	engagement *controllers.EngagementController,
	settings *controllers.SettingsController,
	auth *controllers.AuthController,
	health *controllers.HealthController,
	limiter *providers.RateLimiter,
) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Get("/health", http.HandlerFunc(health.Health))
	routers.Get("/visit-count", limiter.Wrap(http.HandlerFunc(engagement.VisitCount)))

	routers.Get("/articles/counts", http.HandlerFunc(engagement.GetViewCounts))
	routers.Get("/articles/likes", http.HandlerFunc(engagement.GetLikeCounts))
	routers.Get("/articles/collection-counts", http.HandlerFunc(engagement.GetCollectionCounts))
	routers.Get("/articles/user-likes", http.HandlerFunc(engagement.GetUserLikes))
	routers.Get("/articles/user-collections", http.HandlerFunc(engagement.GetUserCollections))

	routers.Post("/articles/{id}/view", limiter.Wrap(http.HandlerFunc(engagement.View)))
	routers.Post("/articles/{id}/like", http.HandlerFunc(engagement.Like))
	routers.Post("/articles/{id}/collect", http.HandlerFunc(engagement.Collect))

	routers.Get("/settings", http.HandlerFunc(settings.GetSettings))
	routers.Post("/settings", http.HandlerFunc(settings.SaveSettings))

	routers.Post("/signup", limiter.Wrap(http.HandlerFunc(auth.Signup)))
	return routers
}
