package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	// runIDKey is the context key for the workflow run ID.
	runIDKey contextKey = "run_id"

	// loggerKey is the context key for storing a logger instance.
	loggerKey contextKey = "logger"
)

// NewRunID generates a new opaque workflow run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// ContextWithRunID returns a context carrying the given workflow run ID.
//
//	ctx = logging.ContextWithRunID(ctx, runID)
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext retrieves the run ID from context, or "" if absent.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithLogger stores a logger in the context, for threading a
// pre-configured ExecutionContext logger through a call chain.
//
//nolint:gocritic
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFromContext retrieves a logger from context, falling back to the
// global logger if none is stored.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		return logger
	}
	return Logger()
}

// Ctx returns a logger with the run ID field automatically attached.
//
//	logging.Ctx(ctx).Info().Str("node", name).Msg("node execution started")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := LoggerFromContext(ctx).With().Logger()
	if runID := RunIDFromContext(ctx); runID != "" {
		logger = logger.With().Str("run_id", runID).Logger()
	}
	return &logger
}

// WithNode creates a child logger scoped to a single compute node.
//
//	nodeLogger := logging.WithNode("entry_criterion", "CodelistPhenotype")
func WithNode(name, class string) zerolog.Logger {
	return With().Str("node", name).Str("node_class", class).Logger()
}
