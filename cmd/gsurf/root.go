package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/vidyasagar/gsurf/internal/app"
	"github.com/vidyasagar/gsurf/internal/browser"
	"github.com/vidyasagar/gsurf/internal/feeds"
	"github.com/vidyasagar/gsurf/internal/storage"
	"github.com/vidyasagar/gsurf/internal/theme"
	"go.uber.org/zap"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "gsurf [address]",
	Short: "gsurf is a terminal browser for Gemini capsules",
	Long: `gsurf browses Gemini space from the terminal.

Addresses may be full gemini:// URIs, bare host names or about: pages.
Tabs open at the last quit are restored unless --no-resume is given.`,
	Example: `  gsurf                                 # restore the last session
  gsurf geminiprotocol.net              # open a capsule
  gsurf about:feeds                     # read followed gemlogs
  gsurf --theme nord --no-resume`,
	Version:       version,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBrowser,
}

// Execute runs the root command. Interrupts cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().Int("connect-timeout", 0, "seconds to wait for a connection (default from config)")
	rootCmd.PersistentFlags().Int("read-timeout", 0, "seconds to wait for response data (default from config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default from config)")

	rootCmd.Flags().String("theme", "", fmt.Sprintf("color theme (%v)", theme.List()))
	rootCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. localhost:9465")
	rootCmd.Flags().Bool("no-resume", false, "start without restoring the last session")
}

func runBrowser(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if name, _ := cmd.Flags().GetString("theme"); name != "" {
		if !theme.Set(name) {
			return fmt.Errorf("unknown theme %q (available: %v)", name, theme.List())
		}
		e.cfg.Theme = name
	}

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		stop := serveMetrics(addr, e)
		defer stop()
	}

	var startURL string
	if len(args) > 0 {
		startURL = args[0]
	}
	noResume, _ := cmd.Flags().GetBool("no-resume")

	m := app.New(app.Options{
		Transport:  e.client,
		History:    storage.NewHistoryStore(e.db),
		Bookmarks:  storage.NewBookmarkStore(e.db),
		Pins:       e.pins,
		Sessions:   storage.NewSessionStore(e.dataDir),
		Config:     e.cfg,
		Feeds:      feeds.NewAggregator(e.client, feeds.WithLogger(e.logger.Named("feeds"))),
		Dispatcher: browser.SystemDispatcher{},
		Metrics:    e.metrics,
		Logger:     e.logger,
		StartURL:   startURL,
		Resume:     !noResume,
	})

	p := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(cmd.Context()),
	)
	e.logger.Info("gsurf started", zap.String("version", version), zap.String("start_url", startURL))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running UI: %w", err)
	}
	return nil
}

// serveMetrics exposes the registry over HTTP until the returned function
// is called.
func serveMetrics(addr string, e *env) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           e.metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	e.logger.Info("serving metrics", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx) //nolint:errcheck
	}
}
