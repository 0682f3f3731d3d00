package server

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gametester/runctl/internal/config"
	"github.com/gametester/runctl/internal/constants"
)

// ready and termination messages for process supervisors

// defaultTerminationFile is used when neither the config nor the environment name one
const defaultTerminationFile = "/tmp/runctl-termination-log"

func GetTerminationFile(conf *config.Config, logger *slog.Logger) string {
	if (conf != nil) && (conf.Service != nil) {
		if tf := strings.TrimSpace(conf.Service.TerminationFile); tf != "" {
			return tf
		}
	}
	// the config may have failed to load
	if tf := os.Getenv(constants.EnvVarTerminationFile); tf != "" {
		logger.Info("Termination file set from environment variable", "env", constants.EnvVarTerminationFile, "file", tf)
		return tf
	}
	logger.Info("Termination file fallback value", "file", defaultTerminationFile)
	return defaultTerminationFile
}

func writeFile(fname string, message string, fileType string, logger *slog.Logger) error {
	filename := filepath.Clean(fname)
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create the %s file: %s: %w", fileType, filename, err)
	}
	_, err = file.Write([]byte(message))
	if err1 := file.Close(); err1 != nil && err == nil {
		err = err1
	}
	if err != nil {
		logger.Error(fmt.Sprintf("when trying to write %s message", fileType), "file", filename, "message", message, "error", err.Error())
	} else {
		logger.Info(fmt.Sprintf("Set %s message", fileType), "message", message)
	}
	return err
}

func getReadyContents(conf *config.Config) string {
	return fmt.Sprintf("Version: %s\nBuild: %s\nBuildDate: %s\n", conf.Service.Version, conf.Service.Build, conf.Service.BuildDate)
}

func SetReady(conf *config.Config, logger *slog.Logger) error {
	return writeFile(conf.Service.ReadyFile, getReadyContents(conf), "ready", logger)
}

func SetTerminationMessage(terminationFile string, message string, logger *slog.Logger) error {
	return writeFile(terminationFile, message, "termination", logger)
}
