package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/postboard/internal/config"
)

// CheckExisting checks if postboard.yml already exists in dir
// Returns an error if it does, nil otherwise
func CheckExisting(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, config.DefaultFileName)); err == nil {
		return fmt.Errorf("project already initialized\n\nFound existing: %s\n\nUse 'postboard init --force' to reinitialize (this will overwrite existing configuration)", config.DefaultFileName)
	}
	return nil
}
