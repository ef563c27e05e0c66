package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/ralph/internal/budget"
	"github.com/harrison/ralph/internal/checkpoint"
	"github.com/harrison/ralph/internal/config"
	"github.com/harrison/ralph/internal/display"
	"github.com/harrison/ralph/internal/history"
	"github.com/harrison/ralph/internal/logger"
	"github.com/harrison/ralph/internal/loop"
	"github.com/harrison/ralph/internal/metrics"
	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/platform"
	"github.com/harrison/ralph/internal/provider"
	"github.com/harrison/ralph/internal/run"
	"github.com/harrison/ralph/internal/telemetry"
)

// defaultProviderName labels the claude CLI backend used when the config
// has no providers section.
const defaultProviderName = "claude"

// State layout under the state directory.
const (
	checkpointDir = "checkpoints"
	metricsDir    = "metrics"
	historyFile   = "history.db"
	auditFile     = "audit.jsonl"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run --issue <id>",
		Short: "Implement an issue and iterate until the quality target is met",
		Long: `Run the autonomous loop for one issue.

The issue is fetched from the tracker and implemented by the capability
provider. Verification gates then run tier by tier; each iteration's score
is posted to the issue. The loop ends when the target score is reached,
when required gates keep failing (blocked), or when max iterations are
spent. Successful runs open a pull request against the base branch.

Configuration is loaded from .ralph/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  ralph run --issue 42
  ralph run --issue 42 --preset production
  ralph run --issue 42 --supervised          # 30s pause between iterations
  ralph run --issue 42 --dry-run             # Print the plan only
  ralph run --issue 42 --max-iterations 5 --target-score 90`,
		Args: cobra.NoArgs,
		RunE: runCommand,
	}

	cmd.Flags().String("issue", "", "Issue number to implement (required)")
	cmd.Flags().String("epic", "", "Epic number to process")
	cmd.Flags().String("preset", "", "Configuration preset (default, production, prototype, frontend)")
	cmd.Flags().Bool("supervised", false, "Pause for review between iterations")
	cmd.Flags().Bool("dry-run", false, "Print the run plan without executing")
	cmd.Flags().String("config", "", "Path to config file (default: .ralph/config.yaml)")
	cmd.Flags().Int("max-iterations", 0, "Maximum iterations (overrides config)")
	cmd.Flags().Float64("target-score", 0, "Target score (overrides config)")
	cmd.Flags().Bool("verbose", false, "Show debug output")
	cmd.Flags().String("log-dir", "", "Directory for log files")

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("epic") {
		return fmt.Errorf("--epic is not yet implemented")
	}

	issueID, _ := cmd.Flags().GetString("issue")
	if issueID == "" {
		return fmt.Errorf("--issue is required")
	}
	if err := platform.ValidateIssueID(issueID); err != nil {
		return err
	}

	cfg, preset, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Build flag pointers for merge (only non-default values)
	var maxIterationsPtr *int
	if cmd.Flags().Changed("max-iterations") {
		v, _ := cmd.Flags().GetInt("max-iterations")
		maxIterationsPtr = &v
	}
	var targetPtr *float64
	if cmd.Flags().Changed("target-score") {
		v, _ := cmd.Flags().GetFloat64("target-score")
		targetPtr = &v
	}
	var logDirPtr *string
	if cmd.Flags().Changed("log-dir") {
		v, _ := cmd.Flags().GetString("log-dir")
		logDirPtr = &v
	}
	var logLevelPtr *string
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level := "debug"
		logLevelPtr = &level
	}
	cfg.MergeWithFlags(maxIterationsPtr, targetPtr, logDirPtr, logLevelPtr)

	if err := cfg.Validate(); err != nil {
		return err
	}
	printWarnings(cmd.ErrOrStderr(), cfg)

	supervised, _ := cmd.Flags().GetBool("supervised")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		buildPlan(cfg, issueID, preset, supervised).Display(cmd.OutOrStdout())
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, cmd, cfg, issueID, supervised)
}

func execute(ctx context.Context, cmd *cobra.Command, cfg *config.Config, issueID string, supervised bool) error {
	wd := workingDir()
	stateDir, err := cfg.ResolveStateDir(wd)
	if err != nil {
		return err
	}

	consoleLog := logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)
	fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()
	log := logger.NewMulti(consoleLog, fileLog)

	audit, err := logger.NewAuditLog(filepath.Join(stateDir, auditFile), logger.DefaultAuditMaxBytes)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}

	cfg.Telemetry.ServiceVersion = Version
	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.LogWarn(fmt.Sprintf("tracing disabled: %v", err))
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			log.LogWarn(err.Error())
		}
	}()

	client, note, err := platform.New(ctx, platform.Options{
		Kind:              cfg.Platform.Kind,
		Repo:              cfg.Platform.Repo,
		TokenEnv:          cfg.Platform.TokenEnv,
		RequestsPerSecond: cfg.Platform.RequestsPerSecond,
		BaseURL:           cfg.Platform.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to create platform client: %w", err)
	}
	if note != "" {
		log.LogWarn(note)
	}

	specs := cfg.ProviderSpecs()
	if len(specs) == 0 {
		specs = []provider.Spec{{Name: defaultProviderName}}
	}
	registry, err := provider.NewRegistry(specs, cfg.Routing, cfg.DefaultProvider)
	if err != nil {
		return fmt.Errorf("failed to configure providers: %w", err)
	}

	now := time.Now()
	runID := run.NewRunID(now)
	rc := &run.Context{
		RunID:     runID,
		IssueID:   issueID,
		StartTime: now,
		Limiter:   budget.NewRateLimiter(cfg.Safety.MaxAPICallsPerHour),
		Breaker: budget.NewCircuitBreaker(
			cfg.Safety.CircuitBreaker.Threshold,
			cfg.Safety.CircuitBreaker.Cooldown.Std(),
			budget.OnStateChange(func(open bool) {
				if open {
					log.LogWarn("Circuit breaker OPEN: provider calls paused")
				} else {
					log.LogInfo("Circuit breaker CLOSED")
				}
			}),
		),
		Providers:       registry,
		Metrics:         metrics.NewSink(runID, issueID, wd, now),
		Logger:          log,
		Audit:           audit,
		DisallowedTools: cfg.DisallowedTools(),
	}

	settings := loop.FromConfig(cfg, issueID, supervised)
	settings.MetricsPath = filepath.Join(stateDir, metricsDir, runID+".json")
	settings.TextfilePath = filepath.Join(stateDir, metricsDir, runID+".prom")
	if err := os.MkdirAll(filepath.Join(stateDir, metricsDir), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}

	opts := []loop.Option{loop.WithCheckpoints(checkpoint.NewStore(filepath.Join(stateDir, checkpointDir)))}
	hist, err := history.NewStore(filepath.Join(stateDir, historyFile))
	if err != nil {
		log.LogWarn(fmt.Sprintf("iteration history disabled: %v", err))
	} else {
		defer hist.Close()
		opts = append(opts, loop.WithHistory(hist))
	}

	log.LogInfo(fmt.Sprintf("Run %s for issue #%s (target %g, max %d iterations)", runID, issueID, cfg.TargetScore, cfg.MaxIterations))

	out, err := loop.New(rc, client, settings, opts...).Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\nInterrupted. State saved under %s\n", filepath.Join(stateDir, checkpointDir))
			return &ExitError{Code: ExitInterrupted, Err: err}
		}
		return fmt.Errorf("run failed: %w", err)
	}

	if out.Summary.Verdict == models.VerdictBlocked {
		var gates []string
		if n := len(out.Iterations); n > 0 {
			gates = out.Iterations[n-1].RequiredFailures(specsByName(settings.Gates))
		}
		display.WarnBlocked(out.Summary.Iterations, gates).Display(cmd.ErrOrStderr())
		return &ExitError{Code: ExitBlocked, Err: fmt.Errorf("run blocked by required gates: %s", joinOrNone(gates))}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logs written to: %s\n", fileLog.RunFile())
	return nil
}

func specsByName(specs []models.GateSpec) map[string]models.GateSpec {
	m := make(map[string]models.GateSpec, len(specs))
	for _, s := range specs {
		m[s.Name] = s
	}
	return m
}
