package logger

import (
	"fmt"

	"github.com/mark3labs/mcp-go/util"
)

// ToUtilLogger adapts a Logger to the util.Logger interface expected by
// MCP-Go transports, so transport-level messages flow into the same sink.
func ToUtilLogger(l Logger) util.Logger {
	return &utilLoggerAdapter{logger: l}
}

type utilLoggerAdapter struct {
	logger Logger
}

func (a *utilLoggerAdapter) Infof(format string, v ...any) {
	a.logger.Info(fmt.Sprintf(format, v...))
}

func (a *utilLoggerAdapter) Errorf(format string, v ...any) {
	a.logger.Error(fmt.Sprintf(format, v...), nil)
}
