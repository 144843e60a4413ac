// Package cmdutil holds helpers shared by the xenstore command-line tools.
package cmdutil

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var defaultLogLevel = LogLevel{
	value:  level.InfoValue(),
	option: level.AllowInfo(),
}

// LogLevel implements flag.Value and can be used to set the logging level
// from a flag. The zero value is ready for use.
type LogLevel struct {
	value  level.Value
	option level.Option
}

// String implements flag.Value.
func (l LogLevel) String() string {
	if l.value == nil {
		return defaultLogLevel.String()
	}
	return l.value.String()
}

// Set implements flag.Value.
func (l *LogLevel) Set(in string) error {
	switch strings.ToLower(in) {
	case "error":
		l.value = level.ErrorValue()
		l.option = level.AllowError()
	case "warn":
		l.value = level.WarnValue()
		l.option = level.AllowWarn()
	case "info":
		l.value = level.InfoValue()
		l.option = level.AllowInfo()
	case "debug":
		l.value = level.DebugValue()
		l.option = level.AllowDebug()
	default:
		return fmt.Errorf("unknown log level %q, valid options error, warn, info, debug", in)
	}
	return nil
}

// FilterOption returns l as an option usable with level.NewFilter.
func (l LogLevel) FilterOption() level.Option {
	if l.option == nil {
		return defaultLogLevel.option
	}
	return l.option
}

// LogFormat implements flag.Value and selects between logfmt and JSON
// output. The zero value means logfmt.
type LogFormat struct {
	json bool
}

// String implements flag.Value.
func (f LogFormat) String() string {
	if f.json {
		return "json"
	}
	return "logfmt"
}

// Set implements flag.Value.
func (f *LogFormat) Set(in string) error {
	switch strings.ToLower(in) {
	case "", "logfmt":
		f.json = false
	case "json":
		f.json = true
	default:
		return fmt.Errorf("unknown log format %q, valid options logfmt, json", in)
	}
	return nil
}

// NewLogger builds the standard logger for a tool: the requested format and
// level filter, with timestamp and caller attached.
func NewLogger(w io.Writer, lvl LogLevel, format LogFormat) log.Logger {
	sw := log.NewSyncWriter(w)

	var l log.Logger
	if format.json {
		l = log.NewJSONLogger(sw)
	} else {
		l = log.NewLogfmtLogger(sw)
	}
	l = level.NewFilter(l, lvl.FilterOption())
	return log.With(l, "ts", log.DefaultTimestamp, "caller", log.DefaultCaller)
}
