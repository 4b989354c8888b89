package workflow

import (
	"github.com/rs/zerolog"

	"github.com/Bayer-Group/phenex-go/internal/config"
	"github.com/Bayer-Group/phenex-go/internal/eventbus"
	"github.com/Bayer-Group/phenex-go/internal/node"
)

// ExecutionContext is the explicit replacement for module-level
// connector/meta-store/thread-pool globals: a connector, a meta-store, a
// worker count, an event bus and a logger in one value. Engine() passes all
// of them but the logger on to the workflow engine; the engine logs through
// internal/logging's package-level logger.
type ExecutionContext struct {
	Connector node.Connector
	MetaStore node.MetaStore
	Workers   int
	EventBus  *eventbus.EventBus
	Logger    *zerolog.Logger
}

// NewExecutionContext builds an ExecutionContext from a loaded
// EngineConfig plus the backend instances a host has already constructed
// (connector, meta-store, event bus). logger may be nil to use the
// package-default logger.
func NewExecutionContext(cfg *config.EngineConfig, connector node.Connector, store node.MetaStore, bus *eventbus.EventBus, logger *zerolog.Logger) *ExecutionContext {
	return &ExecutionContext{
		Connector: connector,
		MetaStore: store,
		Workers:   cfg.Workers,
		EventBus:  bus,
		Logger:    logger,
	}
}

// Engine builds an Engine from this ExecutionContext. Lazy and Overwrite
// default false; set them on the returned Engine before calling Run if a
// host wants lazy, memoised execution.
func (ec *ExecutionContext) Engine() *Engine {
	return &Engine{
		Connector:  ec.Connector,
		MetaStore:  ec.MetaStore,
		NumWorkers: ec.Workers,
		EventBus:   ec.EventBus,
	}
}
