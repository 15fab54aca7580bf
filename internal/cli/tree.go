package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/tutorloop/internal/workspace"
)

var (
	treeDepth int
	treeFiles bool
)

var treeCmd = &cobra.Command{
	Use:   "tree [dir]",
	Short: "Show the project as the agents see it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.ProjectRoot
		if len(args) > 0 {
			dir = args[0]
		}

		tree, err := workspace.Tree(dir, treeDepth)
		if err != nil {
			return fmt.Errorf("scan directory: %w", err)
		}
		fmt.Print(tree)

		if !treeFiles {
			return nil
		}
		files, err := workspace.ReadProjectFiles(dir, workspace.Options{})
		if err != nil {
			return err
		}
		fmt.Printf("\n%s\n", headerStyle.Render(fmt.Sprintf("Files sent for review (%d):", len(files))))
		for _, path := range workspace.SortedPaths(files) {
			fmt.Printf("  %s %s\n", path, dimStyle.Render(fmt.Sprintf("%d bytes", len(files[path]))))
		}
		return nil
	},
}

func init() {
	treeCmd.Flags().IntVarP(&treeDepth, "depth", "d", 3, "maximum directory depth")
	treeCmd.Flags().BoolVar(&treeFiles, "files", false, "also list the files sent to the reviewer")
}
