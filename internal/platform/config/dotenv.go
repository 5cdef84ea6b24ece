package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultDotEnvFile is read by LoadDotEnv when no path is given.
const DefaultDotEnvFile = ".env"

// LoadDotEnv copies values from a dotenv file into the process environment.
//
// A missing file is not an error so local overrides stay optional. Variables
// that are already set win over the file.
func LoadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultDotEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load dotenv %s: %w", path, err)
	}
	return nil
}
