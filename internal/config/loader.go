package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ConfigPathEnv names an operator supplied configuration file that is merged
// over the bundled one.
const ConfigPathEnv = "CONFIG_PATH"

var defaultConfigDirs = []string{"config", "./config", "../../config"}

type EnvMap struct {
	Mappings map[string]string `mapstructure:"mappings,omitempty"`
}

type SecretMap struct {
	Dir      string            `mapstructure:"dir,omitempty"`
	Mappings map[string]string `mapstructure:"mappings,omitempty"`
}

// readConfig locates and reads a configuration file using Viper. It searches for
// a file named "{name}.{ext}" in each of the given directories in order; the first
// found file is read.
func readConfig(logger *slog.Logger, name string, ext string, dirs ...string) (*viper.Viper, error) {
	logger.Info("Reading the configuration file", "file", fmt.Sprintf("%s.%s", name, ext), "dirs", fmt.Sprintf("%v", dirs))

	configValues := viper.New()

	configValues.SetConfigName(name) // name of config file (without extension)
	configValues.SetConfigType(ext)  // REQUIRED if the config file does not have the extension in the name
	for _, dir := range dirs {
		configValues.AddConfigPath(dir)
	}
	err := configValues.ReadInConfig() // Find and read the config file

	if err != nil {
		logger.Error("Failed to read the configuration file", "file", fmt.Sprintf("%s.%s", name, ext), "dirs", fmt.Sprintf("%v", dirs), "error", err.Error())
	} else {
		logger.Info("Read the configuration file", "file", configValues.ConfigFileUsed())
	}

	return configValues, err
}

// mergeOperatorConfig merges the file named by CONFIG_PATH over the bundled
// configuration. The secrets section is replaced as a whole so that bundled
// secret mappings never leak into an operator deployment.
func mergeOperatorConfig(logger *slog.Logger, configValues *viper.Viper) error {
	path := os.Getenv(ConfigPathEnv)
	if path == "" {
		return nil
	}
	operatorValues := viper.New()
	operatorValues.SetConfigFile(path)
	operatorValues.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))
	if err := operatorValues.ReadInConfig(); err != nil {
		logger.Error("Failed to read the operator configuration file", "file", path, "error", err.Error())
		return err
	}
	if err := configValues.MergeConfigMap(operatorValues.AllSettings()); err != nil {
		return err
	}
	if operatorValues.IsSet("secrets") {
		configValues.Set("secrets", operatorValues.Get("secrets"))
	}
	logger.Info("Merged the operator configuration file", "file", path)
	return nil
}

// LoadConfig loads the configuration with Viper.
//
// Configuration loading order (later sources override earlier ones):
//  1. config.yaml, searched in dirs (defaults to config, ./config, ../../config)
//  2. The file named by CONFIG_PATH, if set
//  3. Secrets from files - Mapped via secrets.mappings with secrets.dir
//  4. Environment variables - Mapped via env.mappings
//
// Example configuration structure:
//
//	env:
//	  mappings:
//	    testgen_backend_url: backend.url
//	secrets:
//	  dir: /var/run/secrets/runctl
//	  mappings:
//	    backend_token:optional: backend.token
//
// A secret file name ending in :optional is skipped silently when missing.
func LoadConfig(logger *slog.Logger, version string, build string, buildDate string, dirs ...string) (*Config, error) {
	if len(dirs) == 0 {
		dirs = defaultConfigDirs
	}
	configValues, err := readConfig(logger, "config", "yaml", dirs...)
	if err != nil {
		return nil, err
	}
	if err := mergeOperatorConfig(logger, configValues); err != nil {
		return nil, err
	}

	// set up the secrets from the secrets directory
	secrets := SecretMap{}
	if err := configValues.UnmarshalKey("secrets", &secrets); err != nil {
		return nil, err
	}
	if secrets.Dir != "" {
		// check that the secrets directory exists
		if _, err := os.Stat(secrets.Dir); !os.IsNotExist(err) {
			for fileName, fieldName := range secrets.Mappings {
				optional := strings.HasSuffix(fileName, ":optional")
				if optional {
					fileName = strings.TrimSuffix(fileName, ":optional")
				}
				secret, err := getSecret(secrets.Dir, fileName, optional)
				if err != nil {
					logger.Error("Failed to read secret file", "file", filepath.Join(secrets.Dir, fileName), "error", err.Error())
					return nil, err
				}
				if secret != "" {
					configValues.Set(fieldName, secret)
				}
			}
		}
	}

	// set up the environment variable mappings
	envMappings := EnvMap{}
	if err := configValues.UnmarshalKey("env", &envMappings); err != nil {
		return nil, err
	}
	for envName, field := range envMappings.Mappings {
		if err := configValues.BindEnv(field, strings.ToUpper(envName)); err != nil {
			return nil, err
		}
		logger.Info("Mapped environment variable", "field_name", field, "env_name", strings.ToUpper(envName))
	}

	conf := Config{}
	if err := configValues.Unmarshal(&conf); err != nil {
		return nil, err
	}
	if conf.Service == nil {
		conf.Service = &ServiceConfig{}
	}
	if conf.Backend == nil {
		conf.Backend = &BackendConfig{}
	}
	if conf.Polling == nil {
		conf.Polling = &PollingConfig{}
	}

	// set the version, build, and build date
	conf.Service.Version = version
	conf.Service.Build = build
	conf.Service.BuildDate = buildDate

	if _, err := conf.Polling.Policy(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// getSecret reads a secret from a file and returns the trimmed value. A
// missing optional secret returns an empty string and no error.
func getSecret(secretsDir string, secretName string, optional bool) (string, error) {
	secret, err := os.ReadFile(filepath.Join(secretsDir, secretName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && optional {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}
