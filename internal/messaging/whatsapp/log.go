package whatsapp

import (
	"fmt"

	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/wolfman30/leadtriage/pkg/logging"
)

// waLogger routes whatsmeow's printf-style logging into the structured logger.
type waLogger struct {
	l *logging.Logger
}

var _ waLog.Logger = waLogger{}

func (w waLogger) Warnf(msg string, args ...any)  { w.l.Warn(fmt.Sprintf(msg, args...)) }
func (w waLogger) Errorf(msg string, args ...any) { w.l.Error(fmt.Sprintf(msg, args...)) }
func (w waLogger) Infof(msg string, args ...any)  { w.l.Info(fmt.Sprintf(msg, args...)) }
func (w waLogger) Debugf(msg string, args ...any) { w.l.Debug(fmt.Sprintf(msg, args...)) }

func (w waLogger) Sub(module string) waLog.Logger {
	return waLogger{w.l.With("module", module)}
}
