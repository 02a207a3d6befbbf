// Package logging configures the global zerolog logger and routes pion's
// internal logging through it.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/pion/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global log level and output. format is "console" or "json".
func Init(level, format string) error {
	return InitWriter(os.Stderr, level, format)
}

// InitWriter is Init with an explicit destination.
func InitWriter(out io.Writer, level, format string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return nil
	}
	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return nil
}

// PionFactory builds pion loggers that write to a zerolog logger.
type PionFactory struct {
	Logger zerolog.Logger
}

// NewPionFactory returns a factory logging through the global logger.
func NewPionFactory() *PionFactory {
	return &PionFactory{Logger: log.Logger}
}

func (f *PionFactory) NewLogger(scope string) logging.LeveledLogger {
	return &pionLogger{l: f.Logger.With().Str("pion", scope).Logger()}
}

type pionLogger struct {
	l zerolog.Logger
}

func (p *pionLogger) Trace(msg string) { p.l.Trace().Msg(msg) }
func (p *pionLogger) Tracef(format string, args ...interface{}) {
	p.l.Trace().Msgf(format, args...)
}
func (p *pionLogger) Debug(msg string) { p.l.Debug().Msg(msg) }
func (p *pionLogger) Debugf(format string, args ...interface{}) {
	p.l.Debug().Msgf(format, args...)
}
func (p *pionLogger) Info(msg string) { p.l.Info().Msg(msg) }
func (p *pionLogger) Infof(format string, args ...interface{}) {
	p.l.Info().Msgf(format, args...)
}
func (p *pionLogger) Warn(msg string) { p.l.Warn().Msg(msg) }
func (p *pionLogger) Warnf(format string, args ...interface{}) {
	p.l.Warn().Msgf(format, args...)
}
func (p *pionLogger) Error(msg string) { p.l.Error().Msg(msg) }
func (p *pionLogger) Errorf(format string, args ...interface{}) {
	p.l.Error().Msgf(format, args...)
}

var _ logging.LoggerFactory = (*PionFactory)(nil)
