package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sbenjam1n/tutorloop/internal/config"
	"github.com/sbenjam1n/tutorloop/internal/workspace"
)

var minimal bool

const defaultIgnore = `# .tutorignore
# Paths the tutor never sends to an agent. Glob patterns, one per line.

# Secrets
.env*
*.pem

# Generated files
*.lock
*.min.js

# Data and fixtures
data/
testdata/
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up a project directory for tutoring",
	Long:  "Initialize project: .tutor/config.yaml, .tutorignore, learner state schema, Redis streams",
	RunE: func(cmd *cobra.Command, args []string) error {
		root := cfg.ProjectRoot

		dir := cfg.ProjectDir()
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", config.DirName, err)
		}
		configPath := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			data, err := yaml.Marshal(projectConfig())
			if err != nil {
				return err
			}
			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return fmt.Errorf("create config.yaml: %w", err)
			}
			fmt.Printf("Created %s\n", configPath)
		} else {
			fmt.Printf("%s already exists\n", configPath)
		}

		ignorePath := filepath.Join(root, workspace.IgnoreFile)
		if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
			if err := os.WriteFile(ignorePath, []byte(defaultIgnore), 0644); err != nil {
				return fmt.Errorf("create %s: %w", workspace.IgnoreFile, err)
			}
			fmt.Printf("Created %s\n", workspace.IgnoreFile)
		} else {
			fmt.Printf("%s already exists\n", workspace.IgnoreFile)
		}

		if minimal {
			fmt.Println("\nMinimal init complete. Run 'tutor migrate' to set up the state store.")
			return nil
		}
		if err := migrateCmd.RunE(cmd, nil); err != nil {
			return err
		}

		fmt.Println("\nProject initialized.")
		fmt.Println("Next steps:")
		fmt.Println("  tutor onboard --name \"Your Name\"")
		fmt.Println("  tutor task")
		return nil
	},
}

// projectConfig is what init writes: only the settings a project usually pins.
func projectConfig() *config.Config {
	return &config.Config{
		Learner: cfg.Learner,
		Catalog: cfg.Catalog,
		Store:   cfg.Store,
	}
}

func init() {
	initCmd.Flags().BoolVar(&minimal, "minimal", false, "only create config files, skip backend setup")
}
