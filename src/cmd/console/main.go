// Package main provides the BuildMaster console CLI. The watch command runs
// the interactive dashboard; the remaining commands are one-shot operations
// for scripts and quick checks.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"buildmaster-console/src/build"
	"buildmaster-console/src/buildmaster"
	"buildmaster-console/src/config"
	"buildmaster-console/src/controller"
	"buildmaster-console/src/history"
	"buildmaster-console/src/logger"
	"buildmaster-console/src/notify"
	"buildmaster-console/src/sanitize"
	"buildmaster-console/src/tui"
)

var (
	appConfig *config.Config
	client    *buildmaster.Client
	appLogger logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "buildmaster",
	Short: "BuildMaster Console - supervise remote builds from the terminal",
	Long: `BuildMaster Console drives builds on a remote BuildMaster server:
start a build, watch its progress, detect stalls, and cancel it when needed.

The console is an observer with a remote control. The server owns the build;
if the console crashes or restarts, it re-attaches to whatever is running.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		appLogger = commandLogger(debug)

		var err error
		appConfig, err = config.LoadFromEnv()
		if err != nil {
			appLogger.Error("configuration error: %v", err)
			appLogger.Error("set BUILDMASTER_API_URL and BUILDMASTER_SESSION_TOKEN")
			os.Exit(1)
		}

		appLogger.Debug("using BuildMaster server %s", appConfig.APIURL)
		client = buildmaster.NewClient(appConfig.APIURL, appConfig.SessionToken)
	},
}

// commandLogger picks the logger for one-shot commands. The watch command
// swaps in the silent logger once the TUI owns the terminal.
func commandLogger(debug bool) logger.Logger {
	if debug {
		return logger.NewDebugLogger()
	}
	return logger.NewConsoleLogger()
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Launch the interactive build dashboard",
	Long: `Runs the lifecycle controller and the terminal dashboard.

If a build is already running on the server, the dashboard attaches to it
automatically. Keys: s start, c cancel, r reset, p cycle preset, l logs, q quit.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runWatch(); err != nil {
			appLogger.Error("%v", err)
			os.Exit(1)
		}
	},
}

func runWatch() error {
	// The TUI owns the terminal, so everything else stays quiet.
	log := logger.NewSilentLogger()

	var presets []config.Preset
	if appConfig.PresetsPath != "" {
		loaded, err := config.LoadPresets(appConfig.PresetsPath)
		if err != nil {
			return fmt.Errorf("failed to load presets: %w", err)
		}
		presets = loaded
	}

	broker, err := newBroker()
	if err != nil {
		return err
	}
	defer broker.Close()

	store, err := newStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ctrl := controller.New(client, log, nil)
	go ctrl.Run(ctx)

	notifier := notify.NewNotifier(broker, log)
	go notifier.Run(ctx, ctrl.Subscribe())

	recorder := history.NewRecorder(store, log)
	go recorder.Run(ctx, ctrl.Subscribe())

	model := tui.NewDashboardModel(ctrl, client, presets)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

// newBroker returns the Redpanda broker when seed brokers are configured,
// otherwise the in-process one.
func newBroker() (notify.Broker, error) {
	if len(appConfig.RedpandaBrokers) == 0 {
		return notify.NewInMemoryBroker(), nil
	}
	broker, err := notify.NewRedpandaBroker(appConfig.RedpandaBrokers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redpanda: %w", err)
	}
	return broker, nil
}

// newStore returns the Postgres journal when a DSN is configured, otherwise
// the in-process one.
func newStore() (history.Store, error) {
	if appConfig.PostgresDSN == "" {
		return history.NewInMemoryStore(), nil
	}
	store, err := history.NewPostgresStore(appConfig.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open outcome journal: %w", err)
	}
	return store, nil
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a build and exit",
	Long: `Submits a build to the server and prints the build id. The server rejects
the request if another build is already running.

Example:
  buildmaster start
  buildmaster start --preset nightly
  buildmaster start --mode quick --workers 4`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := startConfig(cmd)
		if err != nil {
			appLogger.Error("%v", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), controller.DefaultStartTimeout)
		defer cancel()

		appLogger.Debug("submitting %s build", cfg.BuildMode)
		snap, err := client.StartBuild(ctx, cfg)
		if err != nil {
			appLogger.Error("%v", err)
			os.Exit(1)
		}

		fmt.Printf("Build %s started (%s)\n", snap.BuildID, cfg.BuildMode)
	},
}

// startConfig resolves the build configuration from --preset and flags.
// Flags override the preset.
func startConfig(cmd *cobra.Command) (build.Config, error) {
	cfg := build.DefaultConfig()

	if presetName, _ := cmd.Flags().GetString("preset"); presetName != "" {
		if appConfig.PresetsPath == "" {
			return cfg, fmt.Errorf("--preset given but BUILDMASTER_PRESETS is not set")
		}
		presets, err := config.LoadPresets(appConfig.PresetsPath)
		if err != nil {
			return cfg, err
		}
		preset, err := config.FindPreset(presets, presetName)
		if err != nil {
			return cfg, err
		}
		cfg = preset.Config
	}

	if cmd.Flags().Changed("mode") {
		modeStr, _ := cmd.Flags().GetString("mode")
		mode, err := build.ParseMode(modeStr)
		if err != nil {
			return cfg, err
		}
		cfg.BuildMode = mode
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("production") {
		if prod, _ := cmd.Flags().GetBool("production"); prod {
			cfg.BuildType = build.TypeProduction
		}
	}

	return cfg, cfg.Validate()
}

var statusCmd = &cobra.Command{
	Use:   "status [build-id]",
	Short: "Show the status of the active build, or of a given build",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		buildID := ""
		if len(args) > 0 {
			buildID = args[0]
		} else {
			info, err := client.ActiveBuild(ctx)
			if err != nil {
				appLogger.Error("%v", err)
				os.Exit(1)
			}
			if !info.HasActiveBuild || info.ActiveBuild == nil {
				fmt.Println("No build is currently running.")
				return
			}
			buildID = info.ActiveBuild.BuildID
		}

		snap, err := client.BuildStatus(ctx, buildID)
		if err != nil {
			appLogger.Error("%v", err)
			os.Exit(1)
		}

		printSnapshot(snap)
	},
}

func printSnapshot(snap *build.Snapshot) {
	fmt.Printf("Build:    %s\n", snap.BuildID)
	fmt.Printf("Status:   %s\n", snap.Status)
	if snap.Progress > 0 {
		fmt.Printf("Progress: %.0f%%\n", snap.Progress)
	}
	if snap.CurrentStep != "" {
		fmt.Printf("Step:     %s\n", snap.CurrentStep)
	}
	if snap.Message != "" {
		fmt.Printf("Message:  %s\n", snap.Message)
	}
	if snap.Error != "" {
		fmt.Printf("Error:    %s\n", snap.Error)
	}
	if snap.DurationSeconds > 0 {
		fmt.Printf("Duration: %.1fs\n", snap.DurationSeconds)
	}
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [build-id]",
	Short: "Ask the server to kill the active build",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), controller.DefaultStartTimeout)
		defer cancel()

		buildID := ""
		if len(args) > 0 {
			buildID = args[0]
		} else {
			info, err := client.ActiveBuild(ctx)
			if err != nil {
				appLogger.Error("%v", err)
				os.Exit(1)
			}
			if !info.HasActiveBuild || info.ActiveBuild == nil {
				fmt.Println("No build is currently running.")
				return
			}
			buildID = info.ActiveBuild.BuildID
		}

		result, err := client.CancelBuild(ctx, buildID)
		if err != nil {
			appLogger.Error("%v", err)
			os.Exit(1)
		}
		if !result.Success {
			msg := result.Error
			if msg == "" {
				msg = "server refused to cancel the build"
			}
			appLogger.Error("cancel failed: %s", msg)
			os.Exit(1)
		}

		if result.Message != "" {
			fmt.Println(result.Message)
		} else {
			fmt.Printf("Build %s cancelled\n", buildID)
		}
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs <build-id>",
	Short: "Print the tail of a build's log output",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		lines, _ := cmd.Flags().GetInt("lines")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logs, err := client.BuildLogs(ctx, args[0], lines)
		if err != nil {
			appLogger.Error("%v", err)
			os.Exit(1)
		}

		fmt.Println(sanitize.Clean(logs))
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent builds, newest first",
	Long: `Lists recent builds from the server. With --local the list comes from
the console's own outcome journal instead, which survives server restarts
when POSTGRES_DSN is configured.`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		local, _ := cmd.Flags().GetBool("local")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if local {
			runLocalHistory(ctx, limit)
			return
		}

		builds, err := client.BuildHistory(ctx, limit)
		if err != nil {
			appLogger.Error("%v", err)
			os.Exit(1)
		}
		if len(builds) == 0 {
			fmt.Println("No builds recorded.")
			return
		}

		for _, snap := range builds {
			line := fmt.Sprintf("%-24s %-10s", snap.BuildID, snap.Status)
			if snap.DurationSeconds > 0 {
				line += fmt.Sprintf(" %8.1fs", snap.DurationSeconds)
			}
			if snap.Error != "" {
				line += "  " + snap.Error
			}
			fmt.Println(line)
		}
	},
}

// runLocalHistory lists outcomes from the console's own journal.
func runLocalHistory(ctx context.Context, limit int) {
	store, err := newStore()
	if err != nil {
		appLogger.Error("%v", err)
		os.Exit(1)
	}
	defer store.Close()

	records, err := store.ListOutcomes(ctx, limit)
	if err != nil {
		appLogger.Error("%v", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("No outcomes recorded.")
		return
	}

	for _, line := range formatOutcomes(records) {
		fmt.Println(line)
	}
}

// formatOutcomes renders journal records in the same shape as the server
// history listing, with the completion time leading each line.
func formatOutcomes(records []history.Record) []string {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		line := fmt.Sprintf("%s  %-24s %-10s",
			rec.CompletedAt.Format("2006-01-02 15:04:05"), rec.BuildID, rec.Status)
		if rec.DurationSeconds > 0 {
			line += fmt.Sprintf(" %8.1fs", rec.DurationSeconds)
		}
		if rec.Error != "" {
			line += "  " + rec.Error
		}
		lines = append(lines, line)
	}
	return lines
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(historyCmd)

	rootCmd.PersistentFlags().Bool("debug", false, "Log debug detail to stderr")

	startCmd.Flags().String("preset", "", "Named preset from the presets file")
	startCmd.Flags().String("mode", "", "Build mode (quick, full, phased, phased-prod, clean, ram-optimized)")
	startCmd.Flags().Int("workers", 0, "Worker count (0 lets the server pick)")
	startCmd.Flags().Bool("production", false, "Run a production build")

	logsCmd.Flags().IntP("lines", "n", 100, "Number of log lines to fetch")
	historyCmd.Flags().IntP("limit", "l", 10, "Max builds to list")
	historyCmd.Flags().Bool("local", false, "Read the console's outcome journal instead of the server")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
