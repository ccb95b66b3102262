package logging

import (
	"fmt"

	"github.com/mitchellh/colorstring"
	log "github.com/sirupsen/logrus"
)

// TextFormatter prefixes each message with the job and step it belongs to,
// colored by level.
type TextFormatter struct {
	colorize *colorstring.Colorize
	colors   map[log.Level]string
}

func (f *TextFormatter) Format(entry *log.Entry) ([]byte, error) {
	color := f.colors[entry.Level]
	if color == "" {
		color = "default"
	}
	if stream, _ := entry.Data["stream"].(string); stream == "stderr" && entry.Level == log.InfoLevel {
		color = "light_red"
	}

	prefix := "[" + color + "]"
	if job, ok := entry.Data["job"].(string); ok {
		if step, ok := entry.Data["step"].(string); ok {
			prefix = fmt.Sprintf("%s%s.%s ≫ ", prefix, job, step)
		} else {
			prefix = fmt.Sprintf("%s%s ≫ ", prefix, job)
		}
	}

	// Only the prefix goes through colorstring so that a message like
	// "[red]" is printed verbatim.
	return []byte(fmt.Sprintf("%s%s\n", f.colorize.Color(prefix), entry.Message)), nil
}

type MessageOnlyFormatter struct {
}

func (f *MessageOnlyFormatter) Format(entry *log.Entry) ([]byte, error) {
	return append([]byte(entry.Message), '\n'), nil
}
