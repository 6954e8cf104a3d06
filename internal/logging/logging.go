package logging

import (
	"fmt"
	"io"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

// New builds the process logger from the configured level and format.
// Unknown levels fall back to info and unknown formats to json; the
// returned error describes the fallback so the caller can log it.
func New(w io.Writer, level, format string) (*log.Logger, error) {
	var problems []string

	parsedLevel, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsedLevel = log.InfoLevel
		problems = append(problems, fmt.Sprintf("unknown log level %q", level))
	}

	var handler log.Handler
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatText:
		handler = text.New(w)
	case FormatJSON, "":
		handler = json.New(w)
	default:
		handler = json.New(w)
		problems = append(problems, fmt.Sprintf("unknown log format %q", format))
	}

	logger := &log.Logger{Handler: handler, Level: parsedLevel}
	if len(problems) > 0 {
		return logger, fmt.Errorf("logging fallback: %s", strings.Join(problems, ", "))
	}
	return logger, nil
}

// Discard returns a logger that drops every entry, for tests and tools.
func Discard() *log.Logger {
	return &log.Logger{Handler: text.New(io.Discard), Level: log.FatalLevel}
}
