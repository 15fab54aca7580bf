package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/tutorloop/internal/curriculum"
)

var projectsCmd = &cobra.Command{
	Use:   "projects [id]",
	Short: "Show the build path, or one project's requirements",
	Long: `Show the curriculum. Each project ships something real; later projects build on
earlier ones.

Usage:
  tutor projects                       List every project in order
  tutor projects 01_cli_file_processor Show skills, requirements and checks`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := curriculum.Load(cfg.Catalog)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			listProjects(catalog)
			return nil
		}
		p, err := catalog.Get(args[0])
		if err != nil {
			return fmt.Errorf("%w. Run 'tutor projects' to see the build path", err)
		}
		printProject(catalog, p)
		return nil
	},
}

func listProjects(catalog *curriculum.Catalog) {
	fmt.Println("Build path:")
	fmt.Println()
	for i, p := range catalog.Projects {
		fmt.Printf("  %2d. %-28s %s\n", i+1, p.ID, dimStyle.Render(truncate(p.Build, 60)))
	}
}

func printProject(catalog *curriculum.Catalog, p curriculum.Project) {
	fmt.Printf("%s %s\n", titleStyle.Render(fmt.Sprintf("%d. %s", catalog.Position(p.ID), p.Name)), dimStyle.Render(p.Time))
	fmt.Printf("\n%s\n", p.Build)
	if p.Why != "" {
		fmt.Printf("%s\n", dimStyle.Render(p.Why))
	}
	if p.ShipsAs != "" {
		fmt.Printf("\n%s %s\n", headerStyle.Render("Ships as:"), p.ShipsAs)
	}
	for _, section := range []struct {
		title string
		items []string
	}{
		{"Skills:", p.Skills},
		{"Requirements:", p.Requirements},
	} {
		if len(section.items) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", headerStyle.Render(section.title))
		for _, it := range section.items {
			fmt.Printf("  - %s\n", it)
		}
	}
	if len(p.Checks) > 0 {
		fmt.Printf("\n%s\n", headerStyle.Render("Checks:"))
		for _, c := range p.Checks {
			fmt.Printf("  %-12s %s\n", c.Name, dimStyle.Render(c.Command))
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
