package logger

import (
	"fmt"
	"strings"

	"github.com/pickme-go/errors"
	"github.com/pickme-go/log/v2"
)

var DefaultLogger log.Logger = log.NewLog(log.WithLevel(log.ERROR), log.WithColors(false)).Log()

// NewLogger builds a logger for the named level (`trace`, `debug`, `info`,
// `warn`, `error` or `fatal`).
func NewLogger(level string, colors bool) (log.Logger, error) {
	var lvl log.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case `trace`:
		lvl = log.TRACE
	case `debug`:
		lvl = log.DEBUG
	case `info`, ``:
		lvl = log.INFO
	case `warn`, `warning`:
		lvl = log.WARN
	case `error`:
		lvl = log.ERROR
	case `fatal`:
		lvl = log.FATAL
	default:
		return nil, errors.New(fmt.Sprintf(`unknown log level [%s]`, level))
	}

	return log.NewLog(log.WithLevel(lvl), log.WithColors(colors)).Log(), nil
}
