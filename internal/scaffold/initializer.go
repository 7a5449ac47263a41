package scaffold

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/postboard/internal/config"
)

//go:embed templates/*
var templatesFS embed.FS

// Initialize writes a default postboard.yml into dir.
// If force is true, an existing postboard.yml is replaced.
func Initialize(dir string, force bool) error {
	path := filepath.Join(dir, config.DefaultFileName)

	if force {
		if err := handleForce(path); err != nil {
			return err
		}
	} else if err := CheckExisting(dir); err != nil {
		return err
	}

	content, err := templatesFS.ReadFile("templates/postboard.yml.tmpl")
	if err != nil {
		return fmt.Errorf("failed to read postboard.yml template: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	// Validate created file
	if _, err := config.Load(path); err != nil {
		return fmt.Errorf("created %s is invalid: %w", config.DefaultFileName, err)
	}

	return nil
}

// handleForce removes an existing config if --force was specified
func handleForce(path string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("⚠️  Removing existing %s...\n", config.DefaultFileName)
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", config.DefaultFileName, err)
		}
	}
	return nil
}

// PrintSuccess prints the success message with next steps
func PrintSuccess() {
	fmt.Println("\n✅ Successfully initialized postboard!")
	fmt.Println("\nCreated:")
	fmt.Printf("  ✓ %s\n", config.DefaultFileName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Run 'postboard serve users' and 'postboard serve posts'")
	fmt.Println("  2. Seed data with 'postboard users add' and 'postboard posts add'")
	fmt.Println("  3. Run 'postboard table --follow' to see posts per user")
}
