package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"callnotify/notification"
	"callnotify/presence"
)

// errUsage is returned for a command line the console does not understand.
var errUsage = errors.New("usage: answer | decline | call <id> | cancel <id> | state | history | quit")

// commandTimeout bounds one console command.
const commandTimeout = 10 * time.Second

// Phone is what the console drives.
type Phone interface {
	Answer(ctx context.Context) error
	Decline(ctx context.Context) error
	Call(ctx context.Context, to string) error
	Hangup(ctx context.Context, to string) error
	State() notification.State
	History() ([]presence.Record, error)
}

// Console reads commands line by line and prints call notifications.
type Console struct {
	phone Phone

	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a Console writing to out.
func NewConsole(p Phone, out io.Writer) *Console {
	return &Console{
		phone: p,
		out:   out,
	}
}

// Notify prints a state change of the notification controller.
func (c *Console) Notify(s notification.State) {
	if !s.Ringing() {
		c.printf("call notification closed\n")
		return
	}
	c.printf("incoming call from %s (%s) [%s]: answer or decline\n",
		s.Caller.DisplayName, s.CallerID, s.Caller.AvatarRef)
}

// Serve executes commands from in until quit, EOF or ctx is done.
func (c *Console) Serve(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		quit, err := c.Execute(ctx, scanner.Text())
		if err != nil {
			c.printf("error: %v\n", err)
		}
		if quit {
			return
		}
	}
}

// Execute runs one command line. It reports true for quit.
func (c *Console) Execute(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd, args := fields[0], fields[1:]
	switch {
	case cmd == "answer" && len(args) == 0:
		return false, c.phone.Answer(ctx)
	case cmd == "decline" && len(args) == 0:
		return false, c.phone.Decline(ctx)
	case cmd == "call" && len(args) == 1:
		return false, c.phone.Call(ctx, args[0])
	case cmd == "cancel" && len(args) == 1:
		return false, c.phone.Hangup(ctx, args[0])
	case cmd == "state" && len(args) == 0:
		c.printState(c.phone.State())
		return false, nil
	case cmd == "history" && len(args) == 0:
		return false, c.printHistory()
	case cmd == "quit" && len(args) == 0:
		return true, nil
	default:
		return false, errUsage
	}
}

func (c *Console) printState(s notification.State) {
	if !s.Ringing() {
		c.printf("idle\n")
		return
	}
	c.printf("ringing %s from %s since %s\n", s.NotificationID, s.CallerID, s.Since.Format(time.TimeOnly))
}

func (c *Console) printHistory() error {
	records, err := c.phone.History()
	if err != nil {
		return err
	}
	for _, r := range records {
		c.printf("%s %s %s %s\n", r.StartedAt.Format(time.DateTime), r.ID, r.CallerID, r.Outcome)
	}
	return nil
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}
