// Package logging configures the logrus logger shared by the CLI and the
// executor.
package logging

import (
	"io"
	"os"

	"github.com/mitchellh/colorstring"
	bunyan "github.com/mumoshu/logrus-bunyan-formatter"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	FormatText    = "text"
	FormatJSON    = "json"
	FormatBunyan  = "bunyan"
	FormatMessage = "message"
)

type Options struct {
	// Format is one of text, json, bunyan or message.
	Format   string
	Verbose  bool
	Color    bool
	ToStderr bool
	// Name is the bunyan logger name.
	Name string
	// Colors overrides the colorstring color of a level in the text format.
	Colors map[log.Level]string

	Stdout io.Writer
	Stderr io.Writer
}

// Configure applies o to logger. Verbose is also enabled by a non-empty
// VERBOSE environment variable.
func Configure(logger *log.Logger, o Options) error {
	formatter, err := NewFormatter(o)
	if err != nil {
		return err
	}
	logger.SetFormatter(formatter)

	if o.Verbose || os.Getenv("VERBOSE") != "" {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}

	stdout, stderr := o.Stdout, o.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	if o.ToStderr {
		logger.SetOutput(stderr)
	} else {
		logger.SetOutput(stdout)
	}

	return nil
}

func NewFormatter(o Options) (log.Formatter, error) {
	switch o.Format {
	case FormatText, "":
		f := NewTextFormatter(o.Color)
		for level, color := range o.Colors {
			if _, ok := colorstring.DefaultColors[color]; !ok {
				return nil, errors.Errorf("unknown color %q for level %s", color, level)
			}
			f.colors[level] = color
		}
		return f, nil
	case FormatJSON:
		return &log.JSONFormatter{}, nil
	case FormatBunyan:
		name := o.Name
		if name == "" {
			name = "runjob"
		}
		return &bunyan.Formatter{Name: name}, nil
	case FormatMessage:
		return &MessageOnlyFormatter{}, nil
	default:
		return nil, errors.Errorf("unexpected output format specified: %s", o.Format)
	}
}

func NewTextFormatter(color bool) *TextFormatter {
	return &TextFormatter{
		colorize: &colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: !color,
			Reset:   true,
		},
		colors: map[log.Level]string{
			log.PanicLevel: "red",
			log.FatalLevel: "red",
			log.ErrorLevel: "red",
			log.WarnLevel:  "yellow",
			log.InfoLevel:  "default",
			log.DebugLevel: "dark_gray",
		},
	}
}
