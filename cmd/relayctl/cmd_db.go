package main

import (
	"context"
	"database/sql"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/rolemaster-relay/db"
)

func openDB(ctx context.Context) (*sql.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		return nil, fmt.Errorf("open database (DB_DSN): %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return database, nil
}

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the audit database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				database, err := openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer database.Close()
				return db.Migrate(cmd.Context(), database)
			},
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				database, err := openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer database.Close()
				return db.MigrateDown(database)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				database, err := openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer database.Close()
				v, dirty, err := db.Version(database)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d dirty=%t\n", v, dirty)
				return nil
			},
		},
	)
	return cmd
}

func newAuditCmd() *cobra.Command {
	var (
		user  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recently handled commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			database, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()
			entries, err := (&db.AuditRecorder{DB: database}).Recent(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tUSER\tKIND\tTYPE\tOUTCOME\tDETAIL")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.At.Local().Format(time.DateTime), e.User, e.Kind, e.DevType, e.Outcome, e.Detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Only show this chat login")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries")
	return cmd
}
