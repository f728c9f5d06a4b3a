package bootstrap

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/eleven-am/handoff-backend/internal/agent"
	"github.com/eleven-am/handoff-backend/internal/queue"
	"github.com/eleven-am/handoff-backend/internal/session"
)

func ProvideSessionRegistry(logger *slog.Logger) *session.Registry {
	return session.NewRegistry(logger)
}

func ProvideAgentRegistry(logger *slog.Logger) *agent.Registry {
	return agent.NewRegistry(logger)
}

func ProvideWaitQueue(logger *slog.Logger) *queue.WaitQueue {
	return queue.NewWaitQueue(logger)
}

var RegistriesModule = fx.Options(
	fx.Provide(
		ProvideSessionRegistry,
		ProvideAgentRegistry,
		ProvideWaitQueue,
	),
)
