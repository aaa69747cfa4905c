// Package main provides the just3sec command line game.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	sqlxAdapter "just3sec/adapters/sqlx"
	"just3sec/core"
	"just3sec/engine"
	"just3sec/game"
	"just3sec/server"
	"just3sec/tui"
)

var (
	userFlag string
	dbFlag   string

	revealFlag bool
	yesFlag    bool
	configFlag string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "just3sec",
		Short:        "Stop the clock at exactly three seconds",
		SilenceUsage: true,
		RunE:         runPlayCmd,
	}
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "player id; empty plays anonymously without saving")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", defaultDBPath(), "path of the local SQLite database")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "play",
		Short: "Play in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runPlayCmd,
	})
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newAchievementsCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}

func defaultDBPath() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "just3sec", "just3sec.db")
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "just3sec.db"
	}
	return filepath.Join(home, ".local", "share", "just3sec", "just3sec.db")
}

func openStore(path string) (*sqlxAdapter.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg := sqlxAdapter.DefaultConfig(sqlxAdapter.DriverSQLite)
	cfg.DSN = path
	st, err := sqlxAdapter.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

// quietLogger keeps slog output away from the terminal UI.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openSession opens the database and activates the --user identity.
// The returned close waits for pending writes first.
func openSession(ctx context.Context, opts ...game.Option) (*engine.Session, func(), error) {
	st, err := openStore(dbFlag)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]game.Option{
		game.WithStorage(st),
		game.WithSessionOptions(engine.WithLogger(quietLogger())),
	}, opts...)
	s := game.NewSession(ctx, core.UserID(userFlag), opts...)
	return s, func() {
		s.Wait()
		if cerr := st.Close(); cerr != nil {
			fmt.Fprintf(os.Stderr, "failed to close db: %v\n", cerr)
		}
	}, nil
}

func requireUser() error {
	if _, err := core.NormalizeUserID(core.UserID(userFlag)); err != nil {
		return errors.New("--user is required for this command")
	}
	return nil
}

func runPlayCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	// writes fail on the background writer, possibly before the program exists
	var program atomic.Pointer[tea.Program]
	session, closeSession, err := openSession(ctx,
		game.WithSubscriber(core.EventPersistFailed, func(_ context.Context, e core.Event) {
			if p := program.Load(); p != nil {
				op, _ := e.Metadata["op"].(string)
				p.Send(tui.PersistFailedMsg{Op: op})
			}
		}))
	if err != nil {
		return err
	}
	defer closeSession()

	p := tea.NewProgram(tui.NewModel(ctx, session, core.DefaultRegistry()), tea.WithAltScreen())
	program.Store(p)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show rating, games played and recent attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			st, err := openStore(dbFlag)
			if err != nil {
				return err
			}
			defer st.Close()
			user, _ := core.NormalizeUserID(core.UserID(userFlag))
			rec, err := st.Load(cmd.Context(), user)
			if errors.Is(err, core.ErrRecordNotFound) {
				rec = core.NewRecord(user)
				rec.Updated = time.Time{}
			} else if err != nil {
				return err
			}
			writeStats(cmd.OutOrStdout(), rec)
			return nil
		},
	}
}

func writeStats(w io.Writer, rec core.Record) {
	fmt.Fprintln(w, headerStyle.Render(string(rec.UserID)))
	fmt.Fprintf(w, "%s %.2f\n", dimStyle.Render("rating     "), rec.Rating())
	fmt.Fprintf(w, "%s %s\n", dimStyle.Render("games      "), humanize.Comma(rec.TotalGames))
	best := "-"
	if rec.BestRecord != nil {
		best = fmt.Sprintf("%dms", *rec.BestRecord)
	}
	fmt.Fprintf(w, "%s %s\n", dimStyle.Render("best       "), best)
	fmt.Fprintf(w, "%s %d of %d\n", dimStyle.Render("unlocked   "), len(rec.Unlocked), core.DefaultRegistry().Len())
	if !rec.Updated.IsZero() {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("last played"), humanize.Time(rec.Updated))
	}
	if len(rec.History) > 0 {
		recent := rec.History
		if len(recent) > core.ChartWindow {
			recent = recent[len(recent)-core.ChartWindow:]
		}
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("recent     "), tui.Sparkline(recent))
	}
}

func newAchievementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "List achievements and which ones are unlocked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			unlocked := core.UnlockedSet{}
			if userFlag != "" {
				session, closeSession, err := openSession(cmd.Context())
				if err != nil {
					return err
				}
				defer closeSession()
				unlocked = session.Unlocked()
			}
			writeAchievements(cmd.OutOrStdout(), engine.ViewAchievements(core.DefaultRegistry(), unlocked, revealFlag))
			return nil
		},
	}
	cmd.Flags().BoolVar(&revealFlag, "reveal", false, "show secret achievements")
	return cmd
}

func writeAchievements(w io.Writer, views []engine.AchievementView) {
	var category core.Category
	for _, v := range views {
		if v.Category != category {
			category = v.Category
			fmt.Fprintln(w, headerStyle.Render(strings.ToUpper(string(category))))
		}
		mark, style := "·", dimStyle
		if v.Unlocked {
			mark, style = "✓", doneStyle
		}
		fmt.Fprintf(w, "  %s %s %s\n", style.Render(mark), style.Render(v.Name), dimStyle.Render(v.Description))
	}
}

func newResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear the attempt history (achievements are kept)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireUser(); err != nil {
				return err
			}
			session, closeSession, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer closeSession()
			if err := session.Clear(cmd.Context(), yesFlag); err != nil {
				if errors.Is(err, engine.ErrConfirmationRequired) {
					return errors.New("refusing to clear history without --yes")
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "history of %s cleared\n", session.User())
			return nil
		},
	}
	cmd.Flags().BoolVar(&yesFlag, "yes", false, "confirm clearing the history")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			app, cleanup, err := server.BuildApp(ctx, server.ConfigPath(configFlag))
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}
			defer cleanup()
			return server.Run(ctx, app)
		},
	}
	cmd.Flags().StringVar(&configFlag, "config", os.Getenv("JUST3SEC_CONFIG"), "optional .json or .toml config file")
	return cmd
}
