package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from .env files without
// overwriting variables that are already set. Explicit paths are tried
// first, then .env in the working directory, then .env in the home
// directory. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if path != "" {
			if err := loadIfExists(path); err != nil {
				return err
			}
		}
	}

	if err := loadIfExists(".env"); err != nil {
		return err
	}

	if home, err := os.UserHomeDir(); err == nil {
		if err := loadIfExists(filepath.Join(home, ".env")); err != nil {
			return err
		}
	}

	return nil
}

// LoadDotEnvForConfig loads .env from the config file's directory.
func LoadDotEnvForConfig(configPath string) error {
	if configPath == "" {
		return LoadDotEnv()
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return LoadDotEnv()
	}

	return LoadDotEnv(filepath.Join(filepath.Dir(absPath), ".env"))
}

func loadIfExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
