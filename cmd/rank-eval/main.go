// Package main provides the rank-eval binary: an HTTP evaluation
// service and an offline dataset evaluator for ranking metrics.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rank-eval/internal/config"
	"github.com/ricesearch/rank-eval/internal/evaluation"
	"github.com/ricesearch/rank-eval/internal/pkg/logger"
	"github.com/ricesearch/rank-eval/internal/server"
	"github.com/ricesearch/rank-eval/internal/snapshot"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rank-eval",
		Short: "rank-eval - ranking metric evaluation service",
		Long: `rank-eval computes ranking quality metrics (MRR, MAP, NDCG, alpha-NDCG
and friends) over labeled lists or ranked runs joined with relevance
judgments.

Run 'rank-eval serve' to start the HTTP evaluation service.
Run 'rank-eval evaluate <dataset>' to score a dataset file offline.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		serveCmd(),
		evaluateCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the evaluation HTTP server",
		Long: `Start the evaluation service in a single process:
- HTTP API for batch updates, judgment loading and snapshots
- Prometheus metrics and time-series history
- Event bus (in-memory or Kafka) for lifecycle notifications`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "HTTP server port (overrides config)")
	cmd.Flags().String("host", "", "HTTP server host (overrides config)")
	cmd.Flags().String("metrics", "", "metric specs, e.g. \"ndcg@5,mrr,map\" (overrides config)")
	cmd.Flags().String("bus", "", "event bus type (memory, kafka)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	appCfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		appCfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("host") {
		appCfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("metrics") {
		appCfg.Eval.Metrics, _ = cmd.Flags().GetString("metrics")
	}
	if cmd.Flags().Changed("bus") {
		appCfg.Bus.Type, _ = cmd.Flags().GetString("bus")
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Host = appCfg.Host
	srvCfg.Port = appCfg.Port
	srvCfg.Version = version

	srv, err := server.New(srvCfg, *appCfg, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <dataset>",
		Short: "Evaluate a dataset file offline",
		Long: `Evaluate a YAML or JSON dataset file and print the resulting metric
means. The dataset can carry pre-labeled lists, or ranked runs plus
relevance judgments, or both.`,
		Args: cobra.ExactArgs(1),
		RunE: runEvaluate,
	}

	cmd.Flags().String("metrics", "", "metric specs, e.g. \"ndcg@5,mrr,map\" (overrides config)")
	cmd.Flags().String("format", "text", "output format (text, json)")
	cmd.Flags().Bool("save-snapshot", false, "persist aggregates to the configured snapshot store")

	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	appCfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("metrics") {
		appCfg.Eval.Metrics, _ = cmd.Flags().GetString("metrics")
	}
	format, _ := cmd.Flags().GetString("format")
	saveSnapshot, _ := cmd.Flags().GetBool("save-snapshot")

	var store snapshot.Store
	if saveSnapshot {
		store, err = snapshot.NewStore(appCfg.Snapshot)
		if err != nil {
			return fmt.Errorf("failed to create snapshot store: %w", err)
		}
		if store == nil {
			return fmt.Errorf("save-snapshot requires a configured snapshot store")
		}
		defer store.Close()
	}

	svc, err := evaluation.NewService(appCfg.Eval, nil, store, log)
	if err != nil {
		return fmt.Errorf("failed to create evaluation service: %w", err)
	}

	ds, err := evaluation.LoadDataset(args[0])
	if err != nil {
		return err
	}
	log.Info("Dataset loaded",
		"path", args[0],
		"checksum", ds.Checksum,
		"judgments", len(ds.Judgments),
		"lists", len(ds.Lists),
		"runs", len(ds.Runs),
	)

	ctx := cmd.Context()
	summary, err := svc.Evaluate(ctx, ds)
	if err != nil {
		return err
	}

	if saveSnapshot {
		if err := svc.SaveSnapshot(ctx); err != nil {
			return err
		}
	}

	return printSummary(cmd, summary, format)
}

func printSummary(cmd *cobra.Command, summary *evaluation.Summary, format string) error {
	if format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	names := make([]string, 0, len(summary.Running))
	for name := range summary.Running {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(cmd.OutOrStdout(), "lists evaluated: %d\n", summary.Lists)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %.6f\n", name, summary.Running[name])
	}
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	appCfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if verbose {
		appCfg.Log.Level = "debug"
	}
	log := logger.New(appCfg.Log.Level, appCfg.Log.Format)

	return appCfg, log, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rank-eval %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
