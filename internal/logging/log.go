package logging

import "github.com/rs/zerolog/log"

// Formatted helpers over the global logger so library packages do not
// import zerolog directly.

func Tracef(format string, args ...any) {
	log.Trace().Msgf(format, args...)
}

func Debugf(format string, args ...any) {
	log.Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}

func Errorf(format string, args ...any) {
	log.Error().Msgf(format, args...)
}
