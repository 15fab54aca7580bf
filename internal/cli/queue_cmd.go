package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/tutorloop/internal/queue"
	"github.com/sbenjam1n/tutorloop/internal/tutor"
)

var tailConsumer string

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Activity streams in Redis",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stream lengths in Redis",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := connectQueue()
		if err != nil {
			return err
		}
		defer q.Close()

		events, directives, err := q.Status(context.Background())
		if err != nil {
			return fmt.Errorf("queue status: %w", err)
		}

		fmt.Printf("Queue Status:\n")
		fmt.Printf("  %-17s %d messages\n", queue.StreamEvents+":", events)
		fmt.Printf("  %-17s %d messages\n", queue.StreamDirectives+":", directives)
		return nil
	},
}

var queueTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow reviews and coaching updates as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := connectQueue()
		if err != nil {
			return err
		}
		defer q.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Println(dimStyle.Render("Waiting for activity (ctrl+c to stop)..."))
		err = q.Consume(ctx, tailConsumer, 2*time.Second, func(ev *queue.EventMessage, dm *queue.DirectiveMessage) {
			now := time.Now().Format("15:04:05")
			if ev != nil {
				v := verdictStyle(tutor.Verdict(ev.Verdict)).Render(ev.Verdict)
				fmt.Printf("%s %s review #%d %s %s\n", dimStyle.Render(now), ev.LearnerID, ev.Cycle, v, strings.Join(ev.IssueTags, ","))
				return
			}
			fmt.Printf("%s %s %s coaching at cycle %d: +%d -%d (%d active)\n",
				dimStyle.Render(now), dm.LearnerID, titleStyle.Render(dm.Trigger), dm.Cycle, len(dm.Added), len(dm.Retired), dm.Active)
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func connectQueue() (*queue.Queue, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("no Redis configured\nSet TUTOR_REDIS_URL or pass --redis-url")
	}
	rdb, err := queue.ConnectRedis(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	return queue.New(rdb), nil
}

func init() {
	queueTailCmd.Flags().StringVar(&tailConsumer, "consumer", "tail_1", "consumer name in the observer group")
	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueTailCmd)
}
