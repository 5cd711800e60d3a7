// Package logging holds the process-wide logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	clog "github.com/charmbracelet/log"
)

// L is the package-level logger. Components that want their own prefix take
// L.WithPrefix(...) instead of building a new logger.
var L = clog.NewWithOptions(os.Stderr, clog.Options{
	ReportTimestamp: true,
	TimeFormat:      time.DateTime,
})

// Setup points L at w and applies the textual level ("debug", "info",
// "warn", "error"). Unknown levels fall back to info.
func Setup(w io.Writer, level string) {
	L.SetOutput(w)
	lvl, err := clog.ParseLevel(level)
	if err != nil {
		lvl = clog.InfoLevel
	}
	L.SetLevel(lvl)
}

func Debugf(format string, v ...any) {
	L.Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	L.Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	L.Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	L.Error(fmt.Sprintf(format, v...))
}
