package config

import (
	"context"
	"os"
	"strings"

	"github.com/MerlinStacks/overseek-sub002/appctx"
	"github.com/sirupsen/logrus"
)

var logg *logrus.Logger

func GetLogger() *logrus.Logger {
	return logg
}

func init() {
	logg = logrus.New()
	logg.SetFormatter(&logrus.JSONFormatter{})
	logg.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logrus.InfoLevel
	}
	logg.SetLevel(level)
}

// ContextFields returns the tenant, correlation and run ids carried by ctx.
func ContextFields(ctx context.Context) logrus.Fields {
	fields := logrus.Fields{}
	if ctx == nil {
		return fields
	}
	for name, key := range map[string]appctx.ContextKey{
		"tenant_id":      appctx.ContextKeyTenantId,
		"correlation_id": appctx.ContextKeyCorrelationId,
		"run_id":         appctx.ContextKeyRunId,
	} {
		if v, ok := appctx.GetString(ctx, key); ok && v != "" {
			fields[name] = v
		}
	}
	return fields
}

func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
