package logging

import (
	"log/slog"

	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

// Slog wraps a zerolog.Logger in an *slog.Logger for libraries that only
// speak slog (e.g. net/http's ErrorLog via slog.NewLogLogger).
func Slog(base zerolog.Logger, level zerolog.Level) *slog.Logger {
	translatedLevel := slog.LevelDebug
	for sl, zl := range slogzerolog.LogLevels {
		if zl == level {
			translatedLevel = sl
			break
		}
	}
	return slog.New(slogzerolog.Option{
		Level:  translatedLevel,
		Logger: &base,
	}.NewZerologHandler())
}
