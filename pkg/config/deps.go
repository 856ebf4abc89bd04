package config

import (
	"log/slog"

	"github.com/kikoba/kikoba/pkg/eventbus"
	"github.com/kikoba/kikoba/pkg/notify"
	"github.com/kikoba/kikoba/pkg/repository"
)

// Deps holds all infrastructure dependencies for building the app and services.
type Deps struct {
	Uow      repository.UnitOfWork
	EventBus eventbus.Bus
	Notifier notify.Notifier
	Logger   *slog.Logger
	Config   *App
}
