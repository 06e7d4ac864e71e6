package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// InitLogging builds the application logger. Entries go to stdout and the
// log file; the returned writer is shared with the gorm logger.
func InitLogging(cfg *Config) (*logrus.Logger, *os.File, io.Writer) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	var writer io.Writer = os.Stdout
	logger.SetOutput(writer)
	if cfg.LogFile == "" {
		return logger, nil, writer
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), os.ModePerm); err != nil {
		logger.Warnf("Failed to create logs directory: %v", err)
		return logger, nil, writer
	}
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warnf("Failed to open log file: %v", err)
		return logger, nil, writer
	}

	writer = io.MultiWriter(os.Stdout, logFile)
	logger.SetOutput(writer)
	return logger, logFile, writer
}

// LogError logs err with the module and function it came from.
func LogError(logger logrus.FieldLogger, moduleName string, funcName string, context string, data any, err error) {
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
