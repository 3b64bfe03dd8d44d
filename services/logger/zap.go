package logsvc

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shule/backend/core"
)

// NewZap builds the local logger: human readable in DEV, JSON elsewhere.
// Debug entries are only kept when conf.Debug is set.
func NewZap(conf *core.Config) (*zap.SugaredLogger, error) {
	var zconf zap.Config
	if strings.EqualFold(conf.Env, "DEV") || conf.Env == "" {
		zconf = zap.NewDevelopmentConfig()
		zconf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zconf = zap.NewProductionConfig()
		zconf.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zconf.EncoderConfig.TimeKey = "time"
	zconf.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zconf.DisableStacktrace = true
	if conf.Debug {
		zconf.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		zconf.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := zconf.Build(zap.AddCallerSkip(1)) // skip RollbarLogger's frame
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	return logger.Named(conf.AppName).Sugar(), nil
}
