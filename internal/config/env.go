package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadServerEnv builds the environment overrides for a server start: values
// from the shared env file (if configured) overridden by the caller-supplied
// variables. The base process environment is merged later, at spawn time.
func LoadServerEnv(envFile string, overrides map[string]string, baseDir string) (map[string]string, error) {
	env := make(map[string]string)

	if envFile != "" {
		path := envFile
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		fileEnv, err := godotenv.Read(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("env file not found: %s", path)
			}
			return nil, fmt.Errorf("reading env file %s: %w", path, err)
		}
		for k, v := range fileEnv {
			env[k] = v
		}
	}

	for k, v := range overrides {
		env[k] = v
	}

	return env, nil
}
