package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/tutorloop/internal/gate"
	"github.com/sbenjam1n/tutorloop/internal/session"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

var (
	exportDir      string
	gardenerDryRun bool
)

var checksCmd = &cobra.Command{
	Use:   "checks",
	Short: "Run the current project's production checks",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			results, err := s.RunChecks(ctx, learner)
			if err != nil {
				return err
			}
			fmt.Print(formatChecks(results))
			passed, total := gate.Summary(results)
			fmt.Printf("\n%d/%d checks passed\n", passed, total)
			return nil
		})
	},
}

var doneCmd = &cobra.Command{
	Use:   "done",
	Short: "Complete the current project if the advancement gate is open",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			c, err := s.CompleteProject(ctx, learner)
			if err != nil {
				return err
			}
			fmt.Print(formatCompletion(c))
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the learner's progress and active coaching",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			st, err := s.Status(ctx, learner)
			if err != nil {
				return err
			}
			fmt.Print(formatStatus(st))
			return nil
		})
	},
}

var directivesCmd = &cobra.Command{
	Use:   "directives [agent]",
	Short: "Show active directives, or an agent's composed instructions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			if len(args) == 1 {
				text, err := s.Instructions(ctx, learner, tutor.AgentRole(strings.ToLower(args[0])))
				if err != nil {
					return err
				}
				fmt.Println(text)
				return nil
			}
			st, err := s.Status(ctx, learner)
			if err != nil {
				return err
			}
			fmt.Print(formatDirectives(st.Live, st.Record.ReviewClock))
			return nil
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a markdown progress report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			dir := exportDir
			if dir == "" {
				dir = cfg.ProjectDir()
			}
			path, err := s.ExportProgress(ctx, learner, dir)
			if err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		})
	},
}

var gardenerCmd = &cobra.Command{
	Use:   "gardener",
	Short: "Scan every learner record for stale or inconsistent coaching state",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		e, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		findings, err := e.s.Garden(ctx, gardenerDryRun)
		if err != nil {
			return err
		}
		if len(findings) == 0 {
			fmt.Println("No issues found.")
			return nil
		}
		for _, f := range findings {
			tag := warnStyle.Render("[review]")
			if f.Mechanical {
				tag = passStyle.Render("[fixed]")
				if gardenerDryRun {
					tag = dimStyle.Render("[fixable]")
				}
			}
			fmt.Printf("%s %s %s: %s\n", tag, f.LearnerID, f.Category, f.Description)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "dir", "o", "", "output directory (default: <project>/.tutor)")
	gardenerCmd.Flags().BoolVar(&gardenerDryRun, "dry-run", false, "report findings without fixing anything")
}
