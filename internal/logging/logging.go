package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/GergesShamon/convenient-discussions/internal/config"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields are added to every record logged with a context that carries them.
type LogFields struct {
	Page      string // page title the operation works on
	Section   string // section headline
	MoveID    string // move journal ID
	Component string // e.g. "cd.move", "cd.mwapi"
}

// WithLogFields enriches ctx with structured log fields. Newer non-empty values
// replace older ones.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := GetLogFields(ctx)
	if fields.Page != "" {
		merged.Page = fields.Page
	}
	if fields.Section != "" {
		merged.Section = fields.Section
	}
	if fields.MoveID != "" {
		merged.MoveID = fields.MoveID
	}
	if fields.Component != "" {
		merged.Component = fields.Component
	}
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// Setup installs the default slog logger. Output goes to w, which must not be
// stdout when the MCP stdio transport is active.
func Setup(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(NewFieldsHandler(handler))
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// FieldsHandler copies LogFields from the record's context into its attributes.
type FieldsHandler struct {
	slog.Handler
}

func NewFieldsHandler(h slog.Handler) *FieldsHandler {
	return &FieldsHandler{Handler: h}
}

func (h *FieldsHandler) Handle(ctx context.Context, r slog.Record) error {
	fields := GetLogFields(ctx)
	if fields.Page != "" {
		r.AddAttrs(slog.String("page", fields.Page))
	}
	if fields.Section != "" {
		r.AddAttrs(slog.String("section", fields.Section))
	}
	if fields.MoveID != "" {
		r.AddAttrs(slog.String("move_id", fields.MoveID))
	}
	if fields.Component != "" {
		r.AddAttrs(slog.String("component", fields.Component))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *FieldsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &FieldsHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *FieldsHandler) WithGroup(name string) slog.Handler {
	return &FieldsHandler{Handler: h.Handler.WithGroup(name)}
}
