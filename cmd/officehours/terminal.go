package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/jrsteele09/go-officehours-client/platform"
	"github.com/jrsteele09/go-officehours-client/worker"
)

var (
	_ platform.Prompter = (*terminal)(nil)
	_ worker.Notifier   = (*terminal)(nil)
)

// terminal is where the CLI shows notifications. It asks the permission
// question, prints what the worker displays and turns typed lines into clicks
// on the last notification.
type terminal struct {
	in  *bufio.Reader
	out io.Writer
	log worker.LogNotifier

	mu   sync.Mutex
	last *worker.Notification
}

func newTerminal(in io.Reader, out io.Writer, log worker.LogNotifier) *terminal {
	return &terminal{in: bufio.NewReader(in), out: out, log: log}
}

func (t *terminal) Prompt(_ context.Context, origin string) (bool, error) {
	fmt.Fprintf(t.out, "Allow %s to show notifications? [y/N] ", origin)
	line, err := t.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

func (t *terminal) ShowNotification(ctx context.Context, n worker.Notification) error {
	t.mu.Lock()
	t.last = &n
	t.mu.Unlock()

	fmt.Fprintf(t.out, "\n%s\n  %s\n", n.Title, n.Body)
	for _, a := range n.Actions {
		fmt.Fprintf(t.out, "  [%s] %s\n", a.Action, a.Title)
	}
	fmt.Fprintf(t.out, "Press Enter to open, or type an action (%s closes it)\n", worker.DismissAction)
	return t.log.ShowNotification(ctx, n)
}

// clicks reads lines until the input ends or the worker stops. Each line is a
// click on the last notification; the line's text names the action.
func (t *terminal) clicks(ctx context.Context, w *worker.Worker) {
	for {
		line, err := t.in.ReadString('\n')
		if err != nil {
			return
		}
		t.mu.Lock()
		last := t.last
		t.mu.Unlock()
		if last == nil {
			continue
		}
		click := worker.NotificationClick{Notification: *last, Action: strings.TrimSpace(line)}
		if err := w.Post(ctx, click); err != nil {
			return
		}
	}
}
