package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// applyFileConfig reads an optional config file and mirrors its keys into
// the environment, where config.LoadConfig picks them up. Keys use the same
// names as the environment variables, so precedence is env over file. A
// missing default file is not an error; a missing --config file is.
func applyFileConfig() error {
	v := viper.New()
	if flagConfig != "" {
		v.SetConfigFile(flagConfig)
	} else {
		v.SetConfigName("taskifyd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/taskify")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if flagConfig == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	for _, key := range v.AllKeys() {
		envKey := strings.ToUpper(key)
		if os.Getenv(envKey) != "" {
			continue
		}
		if err := os.Setenv(envKey, v.GetString(key)); err != nil {
			return fmt.Errorf("apply config key %s: %w", envKey, err)
		}
	}
	return nil
}
