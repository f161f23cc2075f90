package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hp-booking/internal/clock"
	"hp-booking/internal/idle"
)

func watchCmd(opts *globalOptions) *cobra.Command {
	var (
		timeout time.Duration
		page    string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the session for inactivity",
		Long: `watch runs the inactivity monitor against the stored session.

Every line typed on stdin counts as a key press and restarts the countdown.
Commands:
  :nav /path     navigate to a page (checks the session with the server)
  :event NAME    send a raw activity event (pointerdown, scroll, click, ...)
  :quit          stop watching

When the countdown elapses or the server rejects the session, the session is
logged out and the stored token removed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, c, err := opts.session()
			if err != nil {
				return err
			}
			if c.Token() == "" {
				return fmt.Errorf("not signed in, run: bookingctl login")
			}

			out := cmd.OutOrStdout()
			monitor := idle.New(idle.Config{
				Clock:   clock.Real(),
				Timeout: timeout,
				Prober:  c,
				Logger:  slog.Default(),
				Logout: func(ctx context.Context, reason idle.Reason) {
					if err := c.Logout(ctx); err != nil {
						slog.Warn("logout request failed", "error", err)
					}
					if err := file.Remove(); err != nil {
						slog.Warn("remove session file failed", "error", err)
					}
					fmt.Fprintf(out, "Session ended (%s). Sign in again with: bookingctl login\n", reason)
				},
			})

			info("Watching %s, idle timeout %s", page, timeout)
			return runWatch(cmd.Context(), cmd.InOrStdin(), out, monitor, page)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", idle.DefaultTimeout, "Inactivity timeout")
	cmd.Flags().StringVar(&page, "page", "/booking", "Page the session starts on")

	return cmd
}

type watcher struct {
	monitor *idle.Monitor
	out     io.Writer
}

// runWatch feeds stdin lines into the monitor until the session ends, input
// closes or ctx is cancelled.
func runWatch(ctx context.Context, in io.Reader, out io.Writer, monitor *idle.Monitor, page string) error {
	w := &watcher{monitor: monitor, out: out}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			case <-monitor.Done():
				return
			}
		}
	}()

	if !monitor.Mount(page) {
		fmt.Fprintf(out, "%s has no inactivity timeout\n", page)
	}

	for {
		select {
		case <-ctx.Done():
			monitor.Unmount()
			return nil
		case <-monitor.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				monitor.Unmount()
				return nil
			}
			if quit := w.handle(ctx, line); quit {
				monitor.Unmount()
				return nil
			}
		}
	}
}

func (w *watcher) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch command {
	case ":quit":
		return true
	case ":nav":
		if arg == "" {
			fmt.Fprintln(w.out, "usage: :nav /path")
			return false
		}
		if err := w.monitor.Navigate(ctx, arg); err != nil {
			fmt.Fprintf(w.out, "session check failed: %v\n", err)
		}
	case ":event":
		if !w.monitor.Activity(idle.Event(arg)) {
			fmt.Fprintf(w.out, "%q did not restart the countdown\n", arg)
		}
	default:
		w.monitor.Activity(idle.KeyPress)
	}
	return false
}
