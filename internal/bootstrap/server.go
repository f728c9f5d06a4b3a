package bootstrap

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"github.com/eleven-am/handoff-backend/internal/coordinator"
	"github.com/eleven-am/handoff-backend/internal/gateway"
	"github.com/eleven-am/handoff-backend/internal/session"
)

var defaultCORSConfig = middleware.CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPut,
		http.MethodPatch,
		http.MethodPost,
		http.MethodDelete,
		http.MethodOptions,
	},
	AllowHeaders: []string{
		"Accept",
		"Authorization",
		"Content-Type",
		"X-Requested-With",
	},
	AllowCredentials: true,
	MaxAge:           86400,
}

func NewEchoServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(defaultCORSConfig))
	return e
}

func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := e.Start(cfg.ServerAddr); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

func ProvideSweeper(coord *coordinator.Coordinator, sessions *session.Registry,
	cfg *Config, logger *slog.Logger) *gateway.Sweeper {
	return gateway.NewSweeper(coord, sessions, gateway.SweeperConfig{
		Interval:         cfg.SweepInterval,
		MaxQueueWait:     cfg.MaxQueueWait,
		SessionRetention: cfg.SessionRetention,
	}, logger)
}

func StartSweeper(lc fx.Lifecycle, sweeper *gateway.Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

var ServerModule = fx.Options(
	fx.Provide(NewEchoServer),
	fx.Invoke(StartServer),
)

var SweeperModule = fx.Options(
	fx.Provide(ProvideSweeper),
	fx.Invoke(StartSweeper),
)

func Run() {
	fx.New(
		fx.Provide(LoadConfig),
		RegistriesModule,
		ServerModule,
		SweeperModule,
		HandlersModule,
	).Run()
}
