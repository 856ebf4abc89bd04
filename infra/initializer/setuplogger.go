package initializer

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/kikoba/kikoba/pkg/config"
)

var (
	green  = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	pink   = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	red    = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	purple = lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}
)

// levelBadges decorates each level in text output.
var levelBadges = map[log.Level]struct {
	badge string
	color lipgloss.AdaptiveColor
}{
	log.ErrorLevel: {"❌", red},
	log.WarnLevel:  {"⚠️", pink},
	log.InfoLevel:  {"ℹ️", green},
	log.DebugLevel: {"🐛", purple},
}

// keyColors highlights the attributes the engine logs most: identities of the
// documents being touched and the error itself.
var keyColors = map[string]lipgloss.AdaptiveColor{
	"error":          red,
	"member_id":      green,
	"request_id":     green,
	"transaction_id": green,
	"admin_id":       green,
	"run_id":         pink,
	"collection":     pink,
	"category":       pink,
	"prefix":         purple,
	"caller":         purple,
	"time":           purple,
}

func setupLogger(cfg *config.Log) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

// NewLogger builds the process logger on w and installs it as the slog default.
// Binaries that bypass InitializeDependencies use it directly.
func NewLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	return newLogger(w, cfg)
}

func newLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	if cfg == nil {
		cfg = &config.Log{Format: "text", TimeFormat: "2006-01-02 15:04:05"}
	}

	formatter := log.TextFormatter
	switch cfg.Format {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})
	handler.SetStyles(ledgerStyles())

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func ledgerStyles() *log.Styles {
	styles := log.DefaultStyles()
	for level, b := range levelBadges {
		styles.Levels[level] = lipgloss.NewStyle().
			SetString(b.badge).
			Bold(true).
			Padding(0, 1).
			Foreground(b.color)
	}
	for key, color := range keyColors {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(color)
		styles.Values[key] = lipgloss.NewStyle().Bold(true)
	}
	return styles
}
