// Package logx 构造全程共用的 zerolog.Logger。
package logx

import (
	"io"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// New 返回写到 w 的人类可读日志；verbose 时输出 debug 级别。
func New(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.TimeOnly,
		NoColor:    !isTerminal(w),
	}
	return zerolog.New(cw).Level(level).With().Timestamp().Logger()
}

// Nop 返回丢弃全部输出的 logger（测试与库调用方默认使用）。
func Nop() zerolog.Logger { return zerolog.Nop() }

// IsTerminal 报告 w 是否是交互终端。
func IsTerminal(w io.Writer) bool { return isTerminal(w) }

type fdWriter interface {
	Fd() uintptr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(fdWriter)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
