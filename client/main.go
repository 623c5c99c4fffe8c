package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"anonchat/client/metrics"
	"anonchat/client/session"
	"anonchat/client/transport"
	"anonchat/client/ui"
)

var rootCmd = &cobra.Command{
	Use:   "anonchat",
	Short: "Terminal client for the anonymous chat room",
	RunE:  runClient,
}

var (
	flagOrigin   string
	flagNickname string
	flagLogFile  string
	flagLogLevel string
	flagStats    bool
	flagStatsCSV string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagOrigin, "origin", "http://localhost:8080", "origin of the chat page; https selects wss")
	flags.StringVar(&flagNickname, "nickname", "", "prefill the nickname field")
	flags.StringVar(&flagLogFile, "log-file", "", "write logs to this file (logs are discarded when empty)")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.BoolVar(&flagStats, "stats", false, "print a session summary on exit")
	flags.StringVar(&flagStatsCSV, "stats-csv", "", "optional path for a CSV log of every frame")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute chat client")
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closeLog, err := newLogger(flagLogFile, flagLogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	var csvOut io.WriteCloser
	if flagStatsCSV != "" {
		f, err := os.Create(flagStatsCSV)
		if err != nil {
			return fmt.Errorf("create stats csv: %w", err)
		}
		csvOut = f
	}
	collector := metrics.NewCollector(csvOut)
	collector.Start()

	page := ui.NewPage(ui.DefaultStyles())
	page.SetNickname(flagNickname)

	client, err := session.New(session.Config{
		Origin:   flagOrigin,
		Dialer:   transport.NewDialer(logger),
		View:     page,
		Notifier: page,
		Logger:   logger,
		Recorder: collector,
	})
	if err != nil {
		return err
	}
	logger.Info().Str("endpoint", client.Endpoint()).Msg("[client] starting")

	program := tea.NewProgram(ui.New(ctx, page, client), tea.WithAltScreen(), tea.WithContext(ctx))
	_, runErr := program.Run()
	if err := client.Close(); err != nil {
		logger.Warn().Err(err).Msg("[client] close connection")
	}

	collector.Close()
	<-collector.Done
	if csvOut != nil {
		if err := csvOut.Close(); err != nil {
			logger.Warn().Err(err).Msg("[client] close stats csv")
		}
	}
	if flagStats {
		collector.PrintSummary(os.Stdout)
	}

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("run ui: %w", runErr)
	}
	logger.Info().Msg("[client] shutdown complete")
	return nil
}

// newLogger logs to path, or nowhere while the TUI owns the terminal.
func newLogger(path, level string) (zerolog.Logger, func(), error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("parse log level: %w", err)
	}
	if path == "" {
		return zerolog.Nop(), func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}
	logger := zerolog.New(f).Level(lvl).With().Timestamp().Logger()
	return logger, func() { _ = f.Close() }, nil
}
