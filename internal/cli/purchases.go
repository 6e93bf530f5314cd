package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/models"
	strutil "github.com/chinmay4o/superlinks/internal/util/strings"
)

// newPurchasesCmd creates the 'purchases' command group.
func newPurchasesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "purchases",
		Aliases: []string{"sales"},
		Short:   "View and refund purchases",
	}
	cmd.AddCommand(newPurchasesListCmd())
	cmd.AddCommand(newPurchasesGetCmd())
	cmd.AddCommand(newPurchasesRefundCmd())
	return cmd
}

func printPurchase(w io.Writer, p models.Purchase) {
	fmt.Fprintf(w, "  ID:      %s\n", p.ID)
	fmt.Fprintf(w, "  Product: %s\n", p.ProductID)
	fmt.Fprintf(w, "  Buyer:   %s\n", p.BuyerEmail)
	fmt.Fprintf(w, "  Amount:  %s\n", formatPrice(p.Amount, p.Currency))
	fmt.Fprintf(w, "  Status:  %s\n", p.Status)
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  Created: %s (%s)\n", p.CreatedAt.Format("2006-01-02 15:04"), humanize.Time(p.CreatedAt))
	}
}

func parsePurchaseStatus(s string) (models.PurchaseStatus, error) {
	switch st := models.PurchaseStatus(strings.ToLower(s)); st {
	case "", models.PurchaseStatusPending, models.PurchaseStatusPaid, models.PurchaseStatusRefunded:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q (pending, paid, refunded)", s)
}

func newPurchasesListCmd() *cobra.Command {
	var (
		status    string
		productID string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List purchases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := parsePurchaseStatus(status)
			if err != nil {
				return err
			}
			filter := api.PurchaseFilter{ProductID: productID, Status: st}

			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				list, err := a.purchases().List(ctx, filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No purchases found")
					return nil
				}
				var total int64
				for _, p := range list {
					if p.Status == models.PurchaseStatusPaid {
						total += p.Amount
					}
				}
				fmt.Fprintf(out, "Found %s:\n\n", strutil.Count(len(list), "purchase"))
				for i, p := range list {
					fmt.Fprintf(out, "Purchase #%d:\n", i+1)
					printPurchase(out, p)
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Paid total: %s.%02d\n", humanize.Comma(total/100), total%100)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Only purchases with this status: pending, paid, refunded")
	cmd.Flags().StringVar(&productID, "product", "", "Only purchases of this product")
	return cmd
}

func newPurchasesGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <purchase-id>",
		Short: "Show one purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				p, err := a.purchases().Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Purchase Details:")
				printPurchase(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

func newPurchasesRefundCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "refund <purchase-id>",
		Short: "Refund a purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("refunding %s cannot be undone; pass --confirm to proceed", args[0])
			}
			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				h, err := a.purchases().Refund(ctx, args[0])
				if err != nil {
					return err
				}
				p, err := h.Wait(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Refunded %s to %s\n", formatPrice(p.Amount, p.Currency), p.BuyerEmail)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm the refund")
	return cmd
}
