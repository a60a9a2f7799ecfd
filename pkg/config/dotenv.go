package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultEnvFiles are the locations searched for a .env file
func DefaultEnvFiles() []string {
	files := []string{".env", "../.env"}
	if exe, err := os.Executable(); err == nil {
		files = append(files, filepath.Join(filepath.Dir(exe), ".env"))
	}
	return files
}

// LoadDotEnv loads the first readable file of candidates into the environment.
// It returns the loaded path, or "" when none exists. Variables already set in
// the environment take precedence.
func LoadDotEnv(candidates ...string) (string, error) {
	if len(candidates) == 0 {
		candidates = DefaultEnvFiles()
	}

	for _, envFile := range candidates {
		file, err := os.Open(envFile)
		if err != nil {
			continue
		}
		err = loadEnv(file)
		file.Close()
		if err != nil {
			return envFile, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		return envFile, nil
	}

	return "", nil
}

func loadEnv(file *os.File) error {
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = unquote(strings.TrimSpace(value))

		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	return scanner.Err()
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
