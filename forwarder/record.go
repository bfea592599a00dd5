package forwarder

import (
	"fmt"
	log "github.com/sirupsen/logrus"
	"sort"
	"strings"
)

// Level numbering understood by the cockpit process logger.
const (
	LevelError = 1 + iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// Record is one log entry as sent to cockpit clients.
type Record struct {
	Msg   string `json:"msg"`
	Level int    `json:"level"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`
}

func levelOf(l log.Level) int {
	switch l {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		return LevelError
	case log.WarnLevel:
		return LevelWarn
	case log.InfoLevel:
		return LevelInfo
	case log.DebugLevel:
		return LevelDebug
	}
	return LevelTrace
}

// NewRecord flattens an entry. Fields are appended to the message as
// key=value pairs in key order.
func NewRecord(e *log.Entry) Record {
	msg := e.Message
	if len(e.Data) > 0 {
		keys := make([]string, 0, len(e.Data))
		for k := range e.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(msg)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
		}
		msg = b.String()
	}
	r := Record{
		Msg:   msg,
		Level: levelOf(e.Level),
	}
	if e.HasCaller() {
		r.File = e.Caller.File
		r.Line = e.Caller.Line
	}
	return r
}
