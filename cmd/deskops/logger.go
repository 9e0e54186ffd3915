package main

import (
	"fmt"
	"os"

	"github.com/deskops-io/deskops/pkg/logger"
)

const (
	// LogFileEnvVar is the environment variable name for the log file path.
	LogFileEnvVar = "LOG_FILE"
	// LogLevelEnvVar is the environment variable name for the log level.
	LogLevelEnvVar = "LOG_LEVEL"
	// LogFormatEnvVar is the environment variable name for the log format.
	LogFormatEnvVar = "LOG_FORMAT"
	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "simple"
)

// initLoggerFromCLI initializes the logger from CLI flags and environment
// variables. Priority: CLI flags > env vars > defaults.
// Returns a cleanup function that closes the log file, if any.
func initLoggerFromCLI(cliLogLevel, cliLogFile, cliLogFormat string) (func(), error) {
	logLevel := cliLogLevel
	if logLevel == "" {
		logLevel = os.Getenv(LogLevelEnvVar)
	}

	logFile := cliLogFile
	if logFile == "" {
		logFile = os.Getenv(LogFileEnvVar)
	}

	logFormat := cliLogFormat
	if logFormat == "" {
		logFormat = os.Getenv(LogFormatEnvVar)
	}
	if logFormat == "" {
		logFormat = DefaultLogFormat
	}

	var output *os.File
	var cleanup func()
	if logFile != "" {
		file, cleanupFn, err := logger.OpenLogFile(logFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = cleanupFn
	} else {
		output = os.Stderr
	}

	logger.Init(logger.ParseLevel(logLevel), output, logFormat)

	return cleanup, nil
}
