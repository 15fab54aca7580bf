package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/tutorloop/internal/session"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

var (
	onboardName  string
	onboardGoals []string
	onboardLevel string
	onboardPrefs tutor.Preferences

	reviewFile     string
	reviewNote     string
	reviewTime     time.Duration
	reviewExpected time.Duration

	issueTag string
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Create a learner record and start the first project",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			rec, err := s.Onboard(ctx, session.Enrollment{
				ID:          learner,
				Name:        onboardName,
				Goals:       onboardGoals,
				SkillLevel:  onboardLevel,
				Preferences: onboardPrefs,
			})
			if err != nil {
				return err
			}
			project, _ := s.Catalog().Get(rec.Profile.CurrentProject)
			fmt.Printf("Welcome, %s.\n\n", rec.Profile.Name)
			fmt.Printf("%s %s\n", titleStyle.Render("First project:"), project.Name)
			fmt.Printf("  %s\n", project.Build)
			fmt.Printf("\nNext: %s\n", dimStyle.Render("tutor task"))
			return nil
		})
	},
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Get the next task from the Challenger",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			task, err := s.NextTask(ctx, learner)
			if err != nil {
				return err
			}
			fmt.Print(formatTask(task))
			return nil
		})
	},
}

var lessonCmd = &cobra.Command{
	Use:   "lesson [topic]",
	Short: "Ask the Teacher for a lesson (default: the project's skills)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			lesson, err := s.Lesson(ctx, learner, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Print(formatLesson(lesson))
			return nil
		})
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Submit the current task for review",
	Long: `Submit the current task for review. Without --file the project directory is read.
Use --file - to review code from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		code, err := readCode(reviewFile)
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			res, err := s.SubmitForReview(ctx, learner, session.Submission{
				Code:        code,
				Description: reviewNote,
				TimeSpent:   reviewTime,
				Expected:    reviewExpected,
			})
			if err != nil {
				return err
			}
			fmt.Print(formatReview(res))
			if res.Verdict.Verdict == tutor.VerdictShipIt {
				fmt.Printf("\nNext: %s or %s\n", dimStyle.Render("tutor task"), dimStyle.Render("tutor done"))
			}
			return nil
		})
	},
}

var issueCmd = &cobra.Command{
	Use:   "issue <description>",
	Short: "Tell the coaches something is not working",
	Long: `Report a problem with how the tutor is working for you, for example
"these tasks are too hard" or "the reviews are too harsh". The coaches that own the
problem adjust their agents immediately.

Known tags: lost, bored, too-slow, too-fast, confusing, too-verbose, too-brief,
too-hard, too-easy, harsh, unclear-feedback.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			res, err := s.ReportIssue(ctx, learner, strings.Join(args, " "), issueTag)
			if err != nil {
				return err
			}
			fmt.Print(formatIssue(res))
			return nil
		})
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask the Teacher about your code",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			answer, err := s.Chat(ctx, learner, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		})
	},
}

var curriculumCmd = &cobra.Command{
	Use:   "curriculum",
	Short: "Ask the Curriculum agent whether to advance",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session, learner string) error {
			d, err := s.CurriculumCheck(ctx, learner)
			if err != nil {
				return err
			}
			fmt.Print(formatDecision(d))
			return nil
		})
	},
}

func readCode(path string) (string, error) {
	switch path {
	case "":
		return "", nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return fmt.Sprintf("=== %s ===\n%s", path, data), nil
}

func init() {
	onboardCmd.Flags().StringVar(&onboardName, "name", "", "display name (default: the learner ID)")
	onboardCmd.Flags().StringSliceVar(&onboardGoals, "goal", nil, "learning goal (repeatable)")
	onboardCmd.Flags().StringVar(&onboardLevel, "level", "", "self-assessed skill level")
	onboardCmd.Flags().StringVar(&onboardPrefs.TaskSize, "task-size", "", "small, medium or large")
	onboardCmd.Flags().StringVar(&onboardPrefs.ExplanationDepth, "depth", "", "brief, detailed or deep-dive")
	onboardCmd.Flags().StringVar(&onboardPrefs.LearningStyle, "style", "", "examples, theory-first or trial-error")
	onboardCmd.Flags().StringVar(&onboardPrefs.Pace, "pace", "", "slow, normal or fast")

	reviewCmd.Flags().StringVarP(&reviewFile, "file", "f", "", "review this file instead of the project (- for stdin)")
	reviewCmd.Flags().StringVarP(&reviewNote, "note", "m", "", "note for the reviewer")
	reviewCmd.Flags().DurationVar(&reviewTime, "time", 0, "time spent on the task, e.g. 45m (default: time since the task was assigned)")
	reviewCmd.Flags().DurationVar(&reviewExpected, "expected", 0, "time budget for the task (default: the task's estimate)")

	issueCmd.Flags().StringVar(&issueTag, "tag", "", "issue tag (default: guessed from the description)")
}
