package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"solar-workflow-api/services"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newCreateTablesCmd(a *app) *cobra.Command {
	var rollback bool
	cmd := &cobra.Command{
		Use:   "create-tables",
		Short: "Create the database tables (or drop them with --rollback)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.backend.DB == nil {
				a.log.Info("Firestore collections need no provisioning")
				return nil
			}
			if rollback {
				if err := a.maintenance.DropTables(); err != nil {
					return err
				}
				a.log.Info("Tables dropped")
				return nil
			}
			if err := a.maintenance.CreateTables(); err != nil {
				return err
			}
			a.log.Info("Tables created")
			return nil
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "drop all tables instead of creating them")
	return cmd
}

func newSeedCmd(a *app) *cobra.Command {
	var cleanupOnly, skipCleanup bool
	var demoClients int
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Clear workflow records and seed an admin user with demo clients",
		PreRunE: func(*cobra.Command, []string) error {
			if cleanupOnly && skipCleanup {
				return errors.New("--cleanup-only and --skip-cleanup are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !skipCleanup {
				removed, err := a.maintenance.Cleanup(ctx)
				logCounts(a.log, "Cleanup", removed)
				if err != nil {
					return err
				}
			}
			if cleanupOnly {
				return nil
			}

			report, err := a.maintenance.Seed(ctx, services.SeedOptions{
				AdminName:     a.v.GetString("SEED_ADMIN_NAME"),
				AdminEmail:    a.v.GetString("SEED_ADMIN_EMAIL"),
				AdminPassword: a.v.GetString("SEED_ADMIN_PASSWORD"),
				DemoClients:   demoClients,
			})
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"admin_created":   report.AdminCreated,
				"clients_created": report.ClientsCreated,
				"errors":          len(report.Errors),
			}).Info("Seed finished")
			for _, e := range report.Errors {
				a.log.WithError(e).Warn("Seed step failed")
			}
			if len(report.Errors) > 0 {
				return fmt.Errorf("seed finished with %d errors", len(report.Errors))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.BoolVar(&cleanupOnly, "cleanup-only", false, "only delete existing records")
	flags.BoolVar(&skipCleanup, "skip-cleanup", false, "seed without deleting existing records")
	flags.IntVar(&demoClients, "demo-clients", 3, "number of demo clients to create")
	flags.String("admin-name", "Administrator", "seed admin display name (SEED_ADMIN_NAME)")
	flags.String("admin-email", "", "seed admin e-mail (SEED_ADMIN_EMAIL)")
	flags.String("admin-password", "", "seed admin password (SEED_ADMIN_PASSWORD)")
	_ = a.v.BindPFlag("SEED_ADMIN_NAME", flags.Lookup("admin-name"))
	_ = a.v.BindPFlag("SEED_ADMIN_EMAIL", flags.Lookup("admin-email"))
	_ = a.v.BindPFlag("SEED_ADMIN_PASSWORD", flags.Lookup("admin-password"))
	return cmd
}

func newFixAssignmentsCmd(a *app) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "fix-assignments",
		Short: "Assign unassigned clients, steps and sub-steps to a default user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaultUser := a.v.GetString("DEFAULT_ASSIGNEE")
			if defaultUser == "" {
				return errors.New("--default-user (or DEFAULT_ASSIGNEE) is required")
			}
			report, err := a.maintenance.FixAssignments(cmd.Context(), defaultUser, dryRun)
			if err != nil {
				return err
			}
			logFixReport(a.log, "Assignment fix", report, dryRun)
			for _, d := range report.Discrepancies {
				fmt.Fprintln(cmd.OutOrStdout(), "  discrepancy:", d)
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d updates failed", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().String("default-user", "", "user id to assign (DEFAULT_ASSIGNEE)")
	_ = a.v.BindPFlag("DEFAULT_ASSIGNEE", cmd.Flags().Lookup("default-user"))
	return cmd
}

func newFixLegacyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fix-legacy",
		Short: "Rewrite stored overdue statuses to in-progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.maintenance.FixLegacyOverdue(cmd.Context())
			if err != nil {
				return err
			}
			logFixReport(a.log, "Legacy status fix", report, false)
			if report.Failed > 0 {
				return fmt.Errorf("%d updates failed", report.Failed)
			}
			return nil
		},
	}
}

func newImportPhonesCmd(a *app) *cobra.Command {
	var file, createdBy string
	cmd := &cobra.Command{
		Use:   "import-phones",
		Short: "Import phone numbers from an xlsx sheet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			items, err := services.ParsePhoneSheet(f)
			if err != nil {
				return err
			}
			a.log.WithField("items", len(items)).Info("Importing phone numbers")

			res, err := a.phones.Import(cmd.Context(), items, filepath.Base(file), createdBy)
			if res != nil {
				a.log.WithFields(logrus.Fields{
					"total":      res.Total,
					"created":    res.Created,
					"duplicates": res.Duplicates,
					"invalid":    res.Invalid,
					"failed":     res.Failed,
					"batches":    res.Batches,
				}).Info("Phone import result")
				for _, e := range res.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "  item %d %s: %s\n", e.Index, e.Number, e.Reason)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "path to the xlsx file")
	cmd.Flags().StringVar(&createdBy, "created-by", "", "user id recorded as the importer")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSendRemindersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send-reminders",
		Short: "E-mail each assignee their due follow-ups and overdue steps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.followUps.SendReminders(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{
				"assignees":     report.Assignees,
				"sent":          report.Sent,
				"skipped":       report.Skipped,
				"failed":        report.Failed,
				"follow_ups":    report.FollowUps,
				"overdue_steps": report.OverdueSteps,
			}).Info("Reminders sent")
			if report.Failed > 0 {
				return fmt.Errorf("%d reminder e-mails failed", report.Failed)
			}
			return nil
		},
	}
}

func logCounts(log logrus.FieldLogger, what string, counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := logrus.Fields{}
	for _, k := range keys {
		fields[k] = counts[k]
	}
	log.WithFields(fields).Info(what)
}

func logFixReport(log logrus.FieldLogger, what string, r *services.FixReport, dryRun bool) {
	log.WithFields(logrus.Fields{
		"updated":       r.Updated,
		"skipped":       r.Skipped,
		"failed":        r.Failed,
		"discrepancies": len(r.Discrepancies),
		"dry_run":       dryRun,
	}).Info(what)
}
