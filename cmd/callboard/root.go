package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/carein/callboard/internal/api"
	"github.com/carein/callboard/internal/app"
	"github.com/carein/callboard/internal/config"
	"github.com/carein/callboard/internal/logging"
)

var (
	configFile  string
	debugMode   bool
	noAltScreen bool
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "callboard",
		Short: "Browse, submit and re-run call summaries",
		Long: `callboard is a TUI for the call-summary service. It lists recent
summaries, submits new transcripts, re-runs summaries and shows the
communication log of each call.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default: callboard.yaml in ., ~/.config/callboard, /etc/callboard)")
	pf.String("api", "", "API base URL")
	pf.Duration("timeout", 0, "per-request timeout")
	pf.String("log-file", "", "write logs to this file (- for stderr)")
	pf.String("log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&debugMode, "debug", false, "log at debug level")

	f := rootCmd.Flags()
	f.Int("limit", 0, "number of summaries to fetch")
	f.Bool("optimistic-insert", true, "show submitted transcripts before the server confirms them")
	f.BoolVar(&noAltScreen, "no-alt-screen", false, "render inline instead of in the alternate screen")

	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newShowCommand())
	rootCmd.AddCommand(newCommlogCommand())
	rootCmd.AddCommand(newServeStubCommand())

	return rootCmd
}

// setup loads the configuration and builds the logger for cmd.
func setup(cmd *cobra.Command) (*config.Config, *logrus.Logger, func() error, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if debugMode {
		cfg.LogLevel = "debug"
	}

	log, closeLog, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, closeLog, nil
}

// newClient builds the API client from cfg.
func newClient(cfg *config.Config, log logrus.FieldLogger) (*api.Client, error) {
	return api.New(cfg.APIBaseURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(log),
	)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := setup(cmd)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := newClient(cfg, log)
	if err != nil {
		return err
	}

	m := app.New(app.Options{
		Service:          client,
		BaseURL:          client.BaseURL(),
		Limit:            cfg.FetchLimit,
		Timeout:          cfg.RequestTimeout,
		NoticeTTL:        cfg.NoticeTTL,
		OptimisticInsert: cfg.OptimisticInsert,
		Logger:           log,
	})

	var opts []tea.ProgramOption
	if cfg.AltScreen && !noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}

	log.WithField("api", client.BaseURL()).Info("starting dashboard")
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
