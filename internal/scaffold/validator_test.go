package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dyluth/postboard/internal/config"
)

func TestCheckExisting(t *testing.T) {
	t.Run("clean directory", func(t *testing.T) {
		assert.NoError(t, CheckExisting(t.TempDir()))
	})

	t.Run("existing config", func(t *testing.T) {
		dir := t.TempDir()
		os.WriteFile(filepath.Join(dir, config.DefaultFileName), []byte("version: \"1.0\"\n"), 0644)

		err := CheckExisting(dir)
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "Found existing: postboard.yml")
			assert.Contains(t, err.Error(), "postboard init --force")
		}
	})
}
