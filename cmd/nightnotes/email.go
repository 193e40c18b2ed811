package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/trynightnotes/nightnotes/internal/config"
	"github.com/trynightnotes/nightnotes/internal/mailer"
	"github.com/trynightnotes/nightnotes/internal/store"
)

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Run scheduled email batches",
}

var emailMorningCmd = &cobra.Command{
	Use:   "morning",
	Short: "Send the morning digest to opted-in users",
	Long:  "Send last night's ritual summary to every profile with morning email enabled. Users with no session in the last day are skipped.",
	RunE:  runEmailMorning,
}

func init() {
	emailCmd.AddCommand(emailMorningCmd)
}

func runEmailMorning(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogger(cfg)

	if !cfg.Mail.Enabled {
		return errors.New("mail delivery is disabled; set mail.enabled in config and RESEND_API_KEY")
	}

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	digest := mailer.NewDigest(db, mailer.NewResendSender(cfg.Mail.APIKey, cfg.Mail.From))

	result, err := digest.SendMorning(context.Background(), time.Now())
	if err != nil {
		return err
	}

	slog.Info("morning digest complete", "sent", len(result.Sent))
	return printJSON(cmd.OutOrStdout(), result)
}
