package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"supplydesk/backend/internal/service"
)

func newPivotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pivot",
		Short: "Print today's item-by-restaurant pivot grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.service()
				if err != nil {
					return err
				}
				grid, err := svc.ComputePivot(ctx, time.Now())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), grid)
			})
		},
	}
}

func newKPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kpi",
		Short: "Print the dashboard KPI rollup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.service()
				if err != nil {
					return err
				}
				rollup, err := svc.ComputeKPIs(ctx, time.Now())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rollup)
			})
		},
	}
}

func newPeriodsCmd() *cobra.Command {
	var restaurantID string
	cmd := &cobra.Command{
		Use:     "periods",
		Short:   "Print a restaurant's half-month billing periods",
		Example: `  backoffice periods --restaurant user-olive`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.service()
				if err != nil {
					return err
				}
				c, err := svc.ComputeBillingPeriods(ctx, restaurantID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), c)
			})
		},
	}
	cmd.Flags().StringVar(&restaurantID, "restaurant", "", "restaurant account id")
	_ = cmd.MarkFlagRequired("restaurant")
	return cmd
}

func newSalesCmd() *cobra.Command {
	var month, date string
	cmd := &cobra.Command{
		Use:     "sales",
		Short:   "Print total, paid and unpaid sales for a month and a day",
		Example: `  backoffice sales --month 2024-03 --date 2024-03-15`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.service()
				if err != nil {
					return err
				}
				report, err := svc.SalesSummary(ctx, month, date)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default: current month)")
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default: today)")
	return cmd
}

func newMarkPaidCmd() *cobra.Command {
	var restaurantID, period, actor string
	var paid bool
	cmd := &cobra.Command{
		Use:   "mark-paid",
		Short: "Set the payment flag on every invoice of one billing period",
		Long: `mark-paid updates isBillPaid on each invoice of the period. Updates are
not transactional: when some invoices fail the command reports them and
exits non-zero, and the successful updates stay in place.`,
		Example: `  backoffice mark-paid --restaurant user-olive --period 2024-03-first
  backoffice mark-paid --restaurant user-olive --period 2024-03-first --paid=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				publisher, closePublisher := openPublisher(a.cfg)
				defer closePublisher()
				svc, err := a.serviceWith(nil, publisher)
				if err != nil {
					return err
				}
				ctx = service.WithActor(ctx, actorFor(actor))
				update, err := svc.SetPeriodPaid(ctx, restaurantID, period, paid)
				if printErr := printJSON(cmd.OutOrStdout(), update); printErr != nil {
					return printErr
				}
				if err != nil {
					return fmt.Errorf("mark period %s: %w", period, err)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&restaurantID, "restaurant", "", "restaurant account id")
	cmd.Flags().StringVar(&period, "period", "", "period key, e.g. 2024-03-first")
	cmd.Flags().BoolVar(&paid, "paid", true, "payment flag to set")
	cmd.Flags().StringVar(&actor, "actor", "cli", "who is recorded on the payment event")
	_ = cmd.MarkFlagRequired("restaurant")
	_ = cmd.MarkFlagRequired("period")
	return cmd
}
