package notify

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/gmsas95/medremind/internal/alarm"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var (
	alarmStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(0, 1)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Console prints alarms to a terminal and reads answers typed as
// "taken 3", "missed 3" or "snooze 3 10".
type Console struct {
	out     io.Writer
	styled  bool
	logger  *zap.Logger
	pending *pendingAlarms

	mu sync.Mutex // serialises writes to out
}

// NewConsole writes to out, styled when out is a terminal
func NewConsole(out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &Console{
		out:     out,
		styled:  styled,
		logger:  logger,
		pending: newPendingAlarms(),
	}
}

// PresentAlarm prints the alarm and remembers it for a typed answer
func (c *Console) PresentAlarm(_ context.Context, a alarm.Alarm) error {
	c.pending.put(a, 0)

	id := a.Reminder.ID
	hint := fmt.Sprintf("answer: taken %d | missed %d | snooze %d [minutes]", id, id, id)
	body := alarmText(a)

	var text string
	if c.styled {
		text = alarmStyle.Render(titleStyle.Render(fmt.Sprintf("Reminder #%d", id)) + "\n" + body + "\n" + hintStyle.Render(hint))
	} else {
		text = fmt.Sprintf("[Reminder #%d] %s\n%s", id, body, hint)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, text)
	return err
}

// Handle applies one typed line and returns the reply to show
func (c *Console) Handle(line string) (string, error) {
	cmd, err := parseCommand(line)
	if err != nil {
		return "", err
	}

	pa, ok := c.pending.take(cmd.id)
	if !ok {
		return "", fmt.Errorf("no active alarm for reminder %d", cmd.id)
	}
	if !pa.alarm.Respond(cmd.response) {
		return fmt.Sprintf("Reminder %d was already handled", cmd.id), nil
	}
	return fmt.Sprintf("%s %s", pa.alarm.Reminder.MedicineName, describe(cmd.response)), nil
}

// Run reads answers from in until ctx is done or in is exhausted
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errCh <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errCh:
					return err
				default:
					return nil
				}
			}
			if line == "" {
				continue
			}
			reply, err := c.Handle(line)
			if err != nil {
				reply = "error: " + err.Error()
			}
			c.mu.Lock()
			fmt.Fprintln(c.out, reply)
			c.mu.Unlock()
		}
	}
}

// Pending returns the number of alarms awaiting an answer
func (c *Console) Pending() int {
	return c.pending.len()
}
