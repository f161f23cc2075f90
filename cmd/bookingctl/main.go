package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hp-booking/internal/logger"
	"hp-booking/pkg/client"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultServer = "http://localhost:8080"

type globalOptions struct {
	server      string
	sessionFile string
	verbose     bool
}

func main() {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "bookingctl",
		Short: "Command line client for HP Booking",
		Long: `bookingctl signs in to an HP Booking server, keeps the session token
on disk and can watch a session for inactivity the same way the web app does.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(logger.New(os.Stderr, level, "pretty"))
		},
	}

	serverDefault := os.Getenv("BOOKING_SERVER")
	if serverDefault == "" {
		serverDefault = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", serverDefault, "Server base URL (env BOOKING_SERVER)")
	rootCmd.PersistentFlags().StringVar(&opts.sessionFile, "session-file", "", "Where the session token is stored (default: user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		loginCmd(opts),
		registerCmd(opts),
		meCmd(opts),
		logoutCmd(opts),
		watchCmd(opts),
		versionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

// session resolves the token file and builds a client seeded from it.
func (o *globalOptions) session() (*tokenFile, *client.Client, error) {
	file, err := openTokenFile(o.sessionFile)
	if err != nil {
		return nil, nil, err
	}

	token, err := file.Load()
	if err != nil {
		return nil, nil, err
	}

	c, err := client.New(client.Config{BaseURL: o.server, Token: token, Logger: slog.Default()})
	if err != nil {
		return nil, nil, err
	}
	return file, c, nil
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
