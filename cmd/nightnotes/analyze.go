package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/trynightnotes/nightnotes/internal/analysis"
	"github.com/trynightnotes/nightnotes/internal/config"
	"github.com/trynightnotes/nightnotes/internal/llm"
	"github.com/trynightnotes/nightnotes/internal/store"
)

var analyzeUserID string

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the weekly pattern analysis for one user",
	Long:  "Generate and persist the trailing-week pattern analysis for a single user without running the server. Intended for schedulers and backfills.",
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeUserID, "user", "", "User ID to analyze (required)")
	analyzeCmd.MarkFlagRequired("user")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogger(cfg)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	analyzer := analysis.NewAnalyzer(db, llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.AnalysisModel))

	result, err := analyzer.Run(context.Background(), analyzeUserID, time.Now())
	if err != nil {
		return err
	}

	slog.Info("analysis complete",
		"user_id", analyzeUserID,
		"week_start", result.WeekStart.Format("2006-01-02"),
		"patterns", len(result.Patterns),
	)
	return printJSON(cmd.OutOrStdout(), result)
}

// printJSON marshals v to indented JSON and writes it to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
