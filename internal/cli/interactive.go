package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sbenjam1n/tutorloop/internal/session"
)

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"i"},
	Short:   "Menu-driven tutoring session",
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, err := learnerID()
		if err != nil {
			return err
		}
		ctx := context.Background()
		e, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if interactiveMetricsAddr != "" {
			srv := metricsServer(interactiveMetricsAddr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Printf("metrics server: %v", err)
				}
			}()
			defer func() {
				shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdown)
			}()
		}

		m := newInteractiveModel(ctx, e.s, learner)
		p := tea.NewProgram(m, tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return err
		}
		return nil
	},
}

var interactiveMetricsAddr string

func init() {
	interactiveCmd.Flags().StringVar(&interactiveMetricsAddr, "metrics-addr", "", "serve this session's metrics on addr, e.g. :9465")
}

// --- Menu ---

type action struct {
	key   string
	label string
	// prompt, when set, collects a line of text before running.
	prompt string
	run    func(ctx context.Context, s *session.Session, learner, input string) (string, error)
}

var actions = []action{
	{key: "t", label: "Next task", run: func(ctx context.Context, s *session.Session, learner, _ string) (string, error) {
		task, err := s.NextTask(ctx, learner)
		if err != nil {
			return "", err
		}
		return formatTask(task), nil
	}},
	{key: "l", label: "Lesson", prompt: "Topic (enter for the project's skills)", run: func(ctx context.Context, s *session.Session, learner, in string) (string, error) {
		lesson, err := s.Lesson(ctx, learner, in)
		if err != nil {
			return "", err
		}
		return formatLesson(lesson), nil
	}},
	{key: "r", label: "Submit for review", prompt: "Note for the reviewer (optional)", run: func(ctx context.Context, s *session.Session, learner, in string) (string, error) {
		res, err := s.SubmitForReview(ctx, learner, session.Submission{Description: in})
		if err != nil {
			return "", err
		}
		return formatReview(res), nil
	}},
	{key: "a", label: "Ask about my code", prompt: "Question", run: func(ctx context.Context, s *session.Session, learner, in string) (string, error) {
		return s.Chat(ctx, learner, in)
	}},
	{key: "c", label: "Run checks", run: func(ctx context.Context, s *session.Session, learner, _ string) (string, error) {
		results, err := s.RunChecks(ctx, learner)
		if err != nil {
			return "", err
		}
		return formatChecks(results), nil
	}},
	{key: "d", label: "Complete project", run: func(ctx context.Context, s *session.Session, learner, _ string) (string, error) {
		c, err := s.CompleteProject(ctx, learner)
		if err != nil {
			return "", err
		}
		return formatCompletion(c), nil
	}},
	{key: "p", label: "Should I advance?", run: func(ctx context.Context, s *session.Session, learner, _ string) (string, error) {
		d, err := s.CurriculumCheck(ctx, learner)
		if err != nil {
			return "", err
		}
		return formatDecision(d), nil
	}},
	{key: "s", label: "Status", run: func(ctx context.Context, s *session.Session, learner, _ string) (string, error) {
		st, err := s.Status(ctx, learner)
		if err != nil {
			return "", err
		}
		return formatStatus(st), nil
	}},
	{key: "i", label: "Something's not working", prompt: "What's wrong? (e.g. tasks are too hard)", run: func(ctx context.Context, s *session.Session, learner, in string) (string, error) {
		res, err := s.ReportIssue(ctx, learner, in, "")
		if err != nil {
			return "", err
		}
		return formatIssue(res), nil
	}},
}

// --- Messages ---

type resultMsg struct {
	title string
	body  string
	err   error
}

// --- Model ---

type interactiveModel struct {
	ctx     context.Context
	s       *session.Session
	learner string

	cursor    int
	width     int
	height    int
	busy      bool
	inputMode bool
	input     string

	title  string
	output string
	scroll int
}

func newInteractiveModel(ctx context.Context, s *session.Session, learner string) interactiveModel {
	return interactiveModel{ctx: ctx, s: s, learner: learner, width: 80, height: 24}
}

func (m interactiveModel) Init() tea.Cmd {
	return m.run(actionIndex("s"), "")
}

func actionIndex(key string) int {
	for i, a := range actions {
		if a.key == key {
			return i
		}
	}
	return 0
}

// run executes actions[i] off the UI goroutine.
func (m interactiveModel) run(i int, input string) tea.Cmd {
	a := actions[i]
	ctx, s, learner := m.ctx, m.s, m.learner
	return func() tea.Msg {
		body, err := a.run(ctx, s, learner, input)
		return resultMsg{title: a.label, body: body, err: err}
	}
}

func (m interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case resultMsg:
		m.busy = false
		m.title = msg.title
		m.output = msg.body
		m.scroll = 0
		if msg.err != nil {
			m.output = failStyle.Render("Error: " + msg.err.Error())
		}
		return m, nil

	case tea.KeyMsg:
		if m.inputMode {
			return m.handleInputKey(msg)
		}
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}

		switch msg.String() {
		case "j", "down":
			if m.cursor < len(actions)-1 {
				m.cursor++
			}
		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
			}
		case "J", "pgdown":
			m.scroll++
		case "K", "pgup":
			if m.scroll > 0 {
				m.scroll--
			}
		case "enter", " ":
			return m.choose(m.cursor)
		default:
			for i, a := range actions {
				if msg.String() == a.key {
					m.cursor = i
					return m.choose(i)
				}
			}
		}
	}
	return m, nil
}

func (m interactiveModel) choose(i int) (tea.Model, tea.Cmd) {
	if actions[i].prompt != "" {
		m.inputMode = true
		m.input = ""
		return m, nil
	}
	m.busy = true
	return m, m.run(i, "")
}

func (m interactiveModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.inputMode = false
		m.busy = true
		return m, m.run(m.cursor, strings.TrimSpace(m.input))
	case tea.KeyEsc:
		m.inputMode = false
		m.input = ""
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			r := []rune(m.input)
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	return m, nil
}

func (m interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tutor") + "  " + dimStyle.Render("learner "+m.learner) + "\n")
	b.WriteString(strings.Repeat("─", min(m.width, 80)) + "\n")

	for i, a := range actions {
		line := fmt.Sprintf(" %s  %s", a.key, a.label)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(line) + "\n")
		} else {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString(strings.Repeat("─", min(m.width, 80)) + "\n")

	switch {
	case m.inputMode:
		b.WriteString(actions[m.cursor].prompt + ":\n> " + m.input + "█\n")
	case m.busy:
		b.WriteString(dimStyle.Render("Working...") + "\n")
	case m.output != "":
		b.WriteString(headerStyle.Render(m.title) + "\n")
		b.WriteString(m.visibleOutput())
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("j/k:move  enter or key:run  J/K:scroll  esc:cancel input  q:quit"))
	return b.String()
}

// visibleOutput returns the slice of output that fits under the menu.
func (m interactiveModel) visibleOutput() string {
	lines := strings.Split(strings.TrimRight(m.output, "\n"), "\n")
	room := m.height - len(actions) - 6
	if room < 3 {
		room = 3
	}
	start := min(m.scroll, max(len(lines)-room, 0))
	end := min(start+room, len(lines))
	return strings.Join(lines[start:end], "\n") + "\n"
}
