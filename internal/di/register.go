package di

import "github.com/samber/do/v2"

// RegisterSingletons registers all service providers as singletons.
// Services are registered in dependency order:
// 1. Config (no dependencies)
// 2. Metrics (no dependencies)
// 3. Logger (depends on Config, Metrics)
// 4. Limiter (depends on Logger, Metrics)
// 5. Engine (depends on Config, Logger)
// 6. Bridge (depends on Config, Logger, Metrics, Limiter, Engine)
// 7. Handler (depends on all above services)
// 8. Server (depends on Handler, Config).
func RegisterSingletons(i do.Injector) {
	do.Provide(i, NewConfig)
	do.Provide(i, NewMetrics)
	do.Provide(i, NewLogger)
	do.Provide(i, NewLimiter)
	do.Provide(i, NewEngine)
	do.Provide(i, NewBridge)
	do.Provide(i, NewHandler)
	do.Provide(i, NewHTTPServer)
}
