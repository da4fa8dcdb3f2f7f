package logger

import (
	"go-helpdesk/internal/config"

	"go.uber.org/zap"
)

// NewLogger builds the zap logger used across the service.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.Environment == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Important: Enable Caller to get Function Name
	zapConfig.EncoderConfig.FunctionKey = "func"

	return zapConfig.Build(zap.AddCaller())
}
