package bootstrap

import (
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/eleven-am/handoff-backend/internal/agent"
	"github.com/eleven-am/handoff-backend/internal/coordinator"
	"github.com/eleven-am/handoff-backend/internal/gateway"
	"github.com/eleven-am/handoff-backend/internal/health"
	"github.com/eleven-am/handoff-backend/internal/provider"
	"github.com/eleven-am/handoff-backend/internal/queue"
	"github.com/eleven-am/handoff-backend/internal/rtc"
	"github.com/eleven-am/handoff-backend/internal/session"
)

const version = "1.0.0"

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideTokenService(cfg *Config) (*rtc.TokenService, error) {
	return rtc.NewTokenService(cfg.RTCAPIKey, cfg.RTCAPISecret, cfg.RTCURL)
}

func ProvideProviderClient(cfg *Config) (*provider.Client, error) {
	return provider.NewClient(provider.Config{
		BaseURL: cfg.ProviderBaseURL,
		APIKey:  cfg.ProviderAPIKey,
		Timeout: cfg.ProviderTimeout,
	})
}

func ProvideHub(logger *slog.Logger) *gateway.Hub {
	return gateway.NewHub(logger)
}

func ProvideNotifier(hub *gateway.Hub) coordinator.Notifier {
	return hub
}

func ProvideCoordinator(sessions *session.Registry, agents *agent.Registry, q *queue.WaitQueue,
	tokens *rtc.TokenService, notifier coordinator.Notifier, cfg *Config, logger *slog.Logger) *coordinator.Coordinator {
	return coordinator.New(coordinator.Params{
		Sessions:          sessions,
		Agents:            agents,
		Queue:             q,
		Tokens:            tokens,
		Notifier:          notifier,
		Logger:            logger,
		AvgServiceSeconds: cfg.AvgServiceSeconds,
	})
}

func ProvideDialogueSink(coord *coordinator.Coordinator) provider.DialogueSink {
	return coord
}

func ProvideCoordinatorHandler(coord *coordinator.Coordinator, logger *slog.Logger) *coordinator.Handler {
	return coordinator.NewHandler(coord, logger.With("handler", "coordinator"))
}

func ProvideSessionHandler(sessions *session.Registry, logger *slog.Logger) *session.Handler {
	return session.NewHandler(sessions, logger.With("handler", "session"))
}

func ProvideProviderHandler(client *provider.Client, sessions *session.Registry,
	sink provider.DialogueSink, cfg *Config, logger *slog.Logger) *provider.Handler {
	return provider.NewHandler(provider.HandlerParams{
		Client:         client,
		Sessions:       sessions,
		Sink:           sink,
		AgentProfileID: cfg.ProviderAgentProfileID,
		CallbackToken:  cfg.ProviderCallbackToken,
		Logger:         logger.With("handler", "provider"),
	})
}

func ProvideGatewayServer(hub *gateway.Hub, coord *coordinator.Coordinator, sessions *session.Registry,
	agents *agent.Registry, q *queue.WaitQueue, logger *slog.Logger) *gateway.Server {
	return gateway.NewServer(hub, coord, sessions, agents, q, logger)
}

func ProvideHealthHandler(sessions *session.Registry, agents *agent.Registry,
	q *queue.WaitQueue, hub *gateway.Hub) *health.Handler {
	return health.NewHandler(sessions, agents, q, hub, version)
}

type HandlerParams struct {
	fx.In

	CoordinatorHandler *coordinator.Handler
	SessionHandler     *session.Handler
	ProviderHandler    *provider.Handler
	GatewayServer      *gateway.Server
	HealthHandler      *health.Handler
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1")

	params.CoordinatorHandler.RegisterRoutes(api)
	params.SessionHandler.RegisterRoutes(api)
	params.ProviderHandler.RegisterRoutes(api)
	params.GatewayServer.RegisterRoutes(api)
	params.HealthHandler.RegisterRoutes(api)
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideTokenService,
		ProvideProviderClient,
		ProvideHub,
		ProvideNotifier,
		ProvideCoordinator,
		ProvideDialogueSink,
		ProvideCoordinatorHandler,
		ProvideSessionHandler,
		ProvideProviderHandler,
		ProvideGatewayServer,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
