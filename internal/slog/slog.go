// Package slog provides a simple leveled logging facility for sentinel.
//
// Time/date are omitted by default because supervisors like systemd add
// them; pass --logdate to enable them. Level prefixes follow the
// freedesktop.org syslog convention so output can be piped straight into a
// journal.
package slog

import (
	"fmt"
	"io"
	"log"
	"os"
)

var logDateTime bool

var (
	DebugWriter io.Writer = os.Stderr
	InfoWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	DebugPrefix string = "<7>[DEBUG]   "
	InfoPrefix  string = "<6>[INFO]    "
	WarnPrefix  string = "<4>[WARNING] "
	ErrPrefix   string = "<3>[ERROR]   "
)

var (
	debugLog = log.New(DebugWriter, DebugPrefix, 0)
	infoLog  = log.New(InfoWriter, InfoPrefix, 0)
	warnLog  = log.New(WarnWriter, WarnPrefix, log.Lshortfile)
	errLog   = log.New(ErrWriter, ErrPrefix, log.Llongfile)

	debugTimeLog = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	infoTimeLog  = log.New(InfoWriter, InfoPrefix, log.LstdFlags)
	warnTimeLog  = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	errTimeLog   = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Llongfile)
)

// SetLevel discards writers below lvl ("debug", "info", "warn", "err").
func SetLevel(lvl string) {
	switch lvl {
	case "err", "fatal":
		WarnWriter = io.Discard
		fallthrough
	case "warn":
		InfoWriter = io.Discard
		fallthrough
	case "info":
		DebugWriter = io.Discard
	case "debug":
	default:
		fmt.Printf("slog: invalid loglevel %q, using \"debug\"\n", lvl)
	}
}

// SetDateTime toggles date/time prefixes on every log line.
func SetDateTime(v bool) {
	logDateTime = v
}

func Debug(v ...any) { out(DebugWriter, debugLog, debugTimeLog, fmt.Sprint(v...)) }
func Info(v ...any)  { out(InfoWriter, infoLog, infoTimeLog, fmt.Sprint(v...)) }
func Warn(v ...any)  { out(WarnWriter, warnLog, warnTimeLog, fmt.Sprint(v...)) }
func Error(v ...any) { out(ErrWriter, errLog, errTimeLog, fmt.Sprint(v...)) }

func Debugf(format string, v ...any) { out(DebugWriter, debugLog, debugTimeLog, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { out(InfoWriter, infoLog, infoTimeLog, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { out(WarnWriter, warnLog, warnTimeLog, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { out(ErrWriter, errLog, errTimeLog, fmt.Sprintf(format, v...)) }

// Fatalf logs at error level and terminates the process.
func Fatalf(format string, v ...any) {
	Errorf(format, v...)
	os.Exit(1)
}

func out(w io.Writer, plain, timed *log.Logger, msg string) {
	if w == io.Discard {
		return
	}
	if logDateTime {
		timed.Output(3, msg)
	} else {
		plain.Output(3, msg)
	}
}
