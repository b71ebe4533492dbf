package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"pilot/pkg/build"
	"pilot/pkg/config"
	"pilot/pkg/exec"
	"pilot/pkg/git"
	"pilot/pkg/logx"
	"pilot/pkg/metrics"
	"pilot/pkg/persistence"
	"pilot/pkg/selfupdate"
	"pilot/pkg/validation"
)

// Version information - set via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Exit codes.
const (
	exitOK     = 0
	exitSetup  = 1
	exitForced = 2
)

func main() {
	var (
		projectDir  = flag.String("projectdir", ".", "Project directory")
		tee         = flag.Bool("tee", false, "Output logs to both console and file (default: file only)")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("pilot %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(exitOK)
	}

	// Initialize log file rotation BEFORE any logging occurs
	logsDir := filepath.Join(*projectDir, config.ProjectConfigDir, "logs")
	if err := logx.InitializeLogFile(logsDir, 4, *tee); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize log file: %v\n", err)
		os.Exit(exitSetup)
	}

	exitCode := run(*projectDir)

	if closeErr := logx.CloseLogFile(); closeErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", closeErr)
	}
	os.Exit(exitCode)
}

// run contains the main application logic and returns an exit code.
// This allows defers to execute before os.Exit is called.
func run(projectDir string) int {
	if projectDir == "." {
		config.LogInfo("⚠️  -projectdir not set. Using the current directory.")
	}
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid project directory: %v\n", err)
		return exitSetup
	}

	if err := config.LoadConfig(absDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitSetup
	}
	if err := handleSecretsDecryption(absDir); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to handle secrets: %v\n", err)
		return exitSetup
	}
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get config: %v\n", err)
		return exitSetup
	}
	stateDir, err := config.GetStateDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve state directory: %v\n", err)
		return exitSetup
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	executor := exec.NewLocalExec()
	repo := git.NewRepo(absDir, executor)
	runner := validation.NewRunner(executor, absDir, config.GetValidationTimeout())
	recorder := metrics.NewPrometheusRecorder()
	store := selfupdate.NewStore(stateDir)

	// The pending self-update, if any, is settled before anything else runs.
	decision, err := checkSelfUpdate(ctx, selfupdate.ProtocolDeps{
		Store:             store,
		ValidationCommand: config.GetValidationCommand(),
		Validator:         runner,
		Reverter:          repo,
		Builder:           build.NewCommandBuilder(executor, absDir, cfg.Build, build.NewRegistry(binaryPath())),
		Restarter:         selfupdate.ExecRestarter{},
		MaxAttempts:       config.GetMaxRollbackAttempts(),
		Recorder:          recorder,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		return exitForced
	}
	if decision == selfupdate.Restart {
		return exitOK
	}

	db, err := persistence.Open(filepath.Join(stateDir, config.DatabaseFilename))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return exitSetup
	}
	defer func() { _ = db.Close() }()

	if stale, staleErr := persistence.MarkStaleSessions(db); staleErr != nil {
		logx.Warnf("Failed to mark stale sessions: %v", staleErr)
	} else if stale > 0 {
		logx.Infof("🧹 Marked %d unfinished session(s) as crashed", stale)
	}

	sessionID := uuid.NewString()
	configJSON, err := persistence.ConfigSnapshotToJSON(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to snapshot config: %v\n", err)
		return exitSetup
	}
	if err := persistence.CreateSession(db, sessionID, configJSON); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create session: %v\n", err)
		return exitSetup
	}
	config.LogInfo("📋 Session ID: %s", sessionID)

	if cfg.Metrics != nil && cfg.Metrics.ListenAddr != "" {
		srv, serveErr := metrics.Serve(cfg.Metrics.ListenAddr, recorder.Registry())
		if serveErr != nil {
			logx.Warnf("Metrics endpoint disabled: %v", serveErr)
		} else {
			defer func() {
				shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelShutdown()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	coordinator, err := buildSession(&cfg, sessionDeps{
		sessionID: sessionID,
		root:      absDir,
		executor:  executor,
		repo:      repo,
		runner:    runner,
		store:     store,
		db:        db,
		recorder:  recorder,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start session: %v\n", err)
		_ = persistence.UpdateSessionStatus(db, sessionID, persistence.SessionStatusCrashed)
		return exitSetup
	}

	if _, err := coordinator.Restore(ctx, cfg.Session.RestorePrompt); err != nil {
		logx.Warnf("Could not restore the previous session: %v", err)
	}

	runErr := coordinator.Run(ctx)
	status := persistence.SessionStatusShutdown
	if runErr != nil {
		status = persistence.SessionStatusCrashed
	}
	if err := persistence.UpdateSessionStatus(db, sessionID, status); err != nil && !errors.Is(err, persistence.ErrSessionNotFound) {
		logx.Warnf("Failed to record session status: %v", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Session failed: %v\n", runErr)
		return exitSetup
	}
	fmt.Println("👋 Bye.")
	return exitOK
}

// checkSelfUpdate runs the rollback protocol and reports its outcome.
func checkSelfUpdate(ctx context.Context, deps selfupdate.ProtocolDeps) (selfupdate.Decision, error) {
	protocol, err := selfupdate.NewProtocol(deps)
	if err != nil {
		return selfupdate.Proceed, fmt.Errorf("failed to set up self-update check: %w", err)
	}
	report, err := protocol.Run(ctx)
	if report.Outcome != selfupdate.OutcomeNoSentinel {
		fmt.Println(report.String())
	}
	if err != nil {
		return selfupdate.Proceed, fmt.Errorf("self-update rollback could not restart: %w", err)
	}
	return report.Decision, nil
}

// binaryPath is where the package step rebuilds pilot so a restart runs
// the new build.
func binaryPath() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		return resolved
	}
	return exe
}
