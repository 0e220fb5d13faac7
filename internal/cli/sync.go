package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/erpsync/internal/app"
	"github.com/Additional-Code/erpsync/internal/entity"
	"github.com/Additional-Code/erpsync/internal/erp"
	"github.com/Additional-Code/erpsync/internal/repository/mapping"
	"github.com/Additional-Code/erpsync/internal/repository/synclog"
	"github.com/Additional-Code/erpsync/internal/service/erpsync"
)

var errSyncDisabled = errors.New("erp sync is disabled (SYNC_ENABLED=false)")

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger and inspect order synchronisation",
	}

	orderCmd := &cobra.Command{
		Use:   "order [order-id]",
		Short: "Sync one order to the ERP",
		Args:  orderIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := parseOrderID(args[0])
			var (
				orch     *erpsync.Orchestrator
				mappings *mapping.Repository
			)
			opts := fx.Options(app.Core, fx.Populate(&orch, &mappings))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if !orch.Enabled() {
					return errSyncDisabled
				}
				ok := orch.SyncOrder(ctx, id, erpsync.TriggerManual)
				return reportSync(ctx, cmd, mappings, id, ok, "sync")
			})
		},
	}

	invoiceCmd := &cobra.Command{
		Use:   "invoice [order-id]",
		Short: "Create the ERP invoice for a paid order",
		Args:  orderIDArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, _ := parseOrderID(args[0])
			var (
				orch     *erpsync.Orchestrator
				mappings *mapping.Repository
			)
			opts := fx.Options(app.Core, fx.Populate(&orch, &mappings))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if !orch.Enabled() {
					return errSyncDisabled
				}
				ok := orch.CreateInvoice(ctx, id, erpsync.TriggerManual)
				return reportSync(ctx, cmd, mappings, id, ok, "invoice")
			})
		},
	}

	mappingsCmd := &cobra.Command{
		Use:   "mappings",
		Short: "List sync mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			filter := mapping.ListFilter{Status: entity.SyncStatus(status), Limit: limit}
			if status != "" && !filter.Status.Valid() {
				return fmt.Errorf("unknown status %q", status)
			}

			var mappings *mapping.Repository
			opts := fx.Options(app.Core, fx.Populate(&mappings))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				rows, err := mappings.List(ctx, filter)
				if err != nil {
					return err
				}
				return renderMappings(cmd.OutOrStdout(), rows)
			})
		},
	}
	mappingsCmd.Flags().String("status", "", "Filter by status (pending, processing, success, failed)")
	mappingsCmd.Flags().Int("limit", 50, "Maximum rows to print")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show mapping counts by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				mappings *mapping.Repository
				logs     *synclog.Repository
			)
			opts := fx.Options(app.Core, fx.Populate(&mappings, &logs))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				counts, err := mappings.CountByStatus(ctx)
				if err != nil {
					return err
				}
				errorsLogged, err := logs.CountByKind(ctx, entity.LogError)
				if err != nil {
					return err
				}
				return renderStats(cmd.OutOrStdout(), counts, errorsLogged)
			})
		},
	}

	cmd.AddCommand(orderCmd, invoiceCmd, mappingsCmd, statsCmd)
	return cmd
}

func newERPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "erp",
		Short: "Inspect the remote ERP",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ping",
		Short: "Authenticate against the ERP and run a cheap read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var client *erp.Client
			opts := fx.Options(app.Core, fx.Populate(&client))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := client.Ping(ctx); err != nil {
					return fmt.Errorf("erp unreachable: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "erp connection ok")
				return nil
			})
		},
	})
	return cmd
}

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Manage sync logs",
	}

	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old sync log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetInt("days")
			all, _ := cmd.Flags().GetBool("all")
			if !all && days <= 0 {
				return errors.New("--days must be positive unless --all is set")
			}

			var logs *synclog.Repository
			opts := fx.Options(app.Core, fx.Populate(&logs))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				var (
					deleted int64
					err     error
				)
				if all {
					deleted, err = logs.DeleteAll(ctx)
				} else {
					deleted, err = logs.DeleteOlderThan(ctx, days)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d log entries\n", deleted)
				return nil
			})
		},
	}
	pruneCmd.Flags().Int("days", 30, "Delete entries older than this many days")
	pruneCmd.Flags().Bool("all", false, "Delete every entry")

	cmd.AddCommand(pruneCmd)
	return cmd
}

func reportSync(ctx context.Context, cmd *cobra.Command, mappings *mapping.Repository, orderID int64, ok bool, action string) error {
	m, err := mappings.Get(ctx, orderID)
	if err != nil && !errors.Is(err, mapping.ErrNotFound) {
		return err
	}
	if m != nil {
		if err := renderMappings(cmd.OutOrStdout(), []entity.SyncMapping{*m}); err != nil {
			return err
		}
	}
	if !ok {
		return fmt.Errorf("%s failed for order %d; see sync logs", action, orderID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s completed for order %d\n", action, orderID)
	return nil
}

func orderIDArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	_, err := parseOrderID(args[0])
	return err
}

func parseOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", raw)
	}
	return id, nil
}
