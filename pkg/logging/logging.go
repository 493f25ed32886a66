package logging

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"haf/config"
)

// New builds the root logger from cfg. A nil w writes to stderr.
func New(cfg config.LoggingConfig, w io.Writer) hclog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := hclog.LevelFromString(cfg.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:            "haf",
		Level:           level,
		Output:          w,
		JSONFormat:      cfg.Format == "json",
		TimeFormat:      "2006-01-02T15:04:05.000Z07:00",
		IncludeLocation: false,
	})
}
