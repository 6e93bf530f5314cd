package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/mutation"
	"github.com/chinmay4o/superlinks/internal/services"
	strutil "github.com/chinmay4o/superlinks/internal/util/strings"
)

// newProductsCmd creates the 'products' command group.
func newProductsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Manage products for sale",
	}
	cmd.AddCommand(newProductsListCmd())
	cmd.AddCommand(newProductsGetCmd())
	cmd.AddCommand(newProductsCreateCmd())
	cmd.AddCommand(newProductsUpdateCmd())
	cmd.AddCommand(newProductsDeleteCmd())
	cmd.AddCommand(newProductsAttachCmd())
	return cmd
}

// parsePrice reads a decimal amount like "12.5" into minor units (1250).
func parsePrice(s string) (int64, error) {
	s = strings.TrimSpace(s)
	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, fmt.Errorf("invalid price %q: at most two decimals", s)
	}
	frac += strings.Repeat("0", 2-len(frac))
	if whole == "" {
		whole = "0"
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	return w*100 + f, nil
}

func formatPrice(minor int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", minor/100, minor%100, strings.ToUpper(currency))
}

func printProduct(w io.Writer, p models.Product) {
	status := "draft"
	if p.Published {
		status = "published"
	}
	fmt.Fprintf(w, "  ID:     %s\n", p.ID)
	fmt.Fprintf(w, "  Title:  %s\n", p.Title)
	fmt.Fprintf(w, "  Price:  %s\n", formatPrice(p.Price, p.Currency))
	fmt.Fprintf(w, "  Status: %s\n", status)
	if p.Description != "" {
		fmt.Fprintf(w, "  About:  %s\n", p.Description)
	}
	if len(p.FileIDs) > 0 {
		fmt.Fprintf(w, "  Files:  %s\n", strings.Join(p.FileIDs, ", "))
	}
}

func newProductsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				products, err := a.products().List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(products) == 0 {
					fmt.Fprintln(out, "No products found")
					return nil
				}
				fmt.Fprintf(out, "Found %s:\n\n", strutil.Count(len(products), "product"))
				for i, p := range products {
					fmt.Fprintf(out, "Product #%d:\n", i+1)
					printProduct(out, p)
					fmt.Fprintln(out)
				}
				return nil
			})
		},
	}
}

func newProductsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <product-id>",
		Short: "Show one product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				p, err := a.products().Get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Product Details:")
				printProduct(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

func newProductsCreateCmd() *cobra.Command {
	var (
		title       string
		description string
		price       string
		currency    string
		publish     bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a product",
		Long: `Create a product.

Example:
  superlinks products create --title "Lightroom presets" --price 12.50 --currency usd`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" {
				return fmt.Errorf("--title is required")
			}
			minor, err := parsePrice(price)
			if err != nil {
				return err
			}

			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				p, err := a.products().Create(ctx, models.Product{
					Title:       title,
					Description: description,
					Price:       minor,
					Currency:    strings.ToLower(currency),
					Published:   publish,
				}).Wait(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Product created\n  Product ID: %s\n", p.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Product title (required)")
	cmd.Flags().StringVar(&description, "description", "", "Product description")
	cmd.Flags().StringVar(&price, "price", "0", "Price, e.g. 12.50")
	cmd.Flags().StringVar(&currency, "currency", "usd", "ISO currency code")
	cmd.Flags().BoolVar(&publish, "publish", false, "Publish immediately")
	return cmd
}

func newProductsUpdateCmd() *cobra.Command {
	var (
		title       string
		description string
		price       string
		currency    string
		coverURL    string
		published   bool
	)

	cmd := &cobra.Command{
		Use:   "update <product-id>",
		Short: "Change a product",
		Long: `Change the fields of a product. Only the flags given are sent.

Examples:
  superlinks products update prd_123 --price 9.99
  superlinks products update prd_123 --published`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch services.ProductPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("price") {
				minor, err := parsePrice(price)
				if err != nil {
					return err
				}
				patch.Price = &minor
			}
			if flags.Changed("currency") {
				c := strings.ToLower(currency)
				patch.Currency = &c
			}
			if flags.Changed("cover-url") {
				patch.CoverURL = &coverURL
			}
			if flags.Changed("published") {
				patch.Published = &published
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update")
			}

			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				svc := a.products()
				if _, err := svc.List(ctx); err != nil {
					return err
				}
				p, err := svc.Update(ctx, args[0], patch).Wait(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Product updated")
				printProduct(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&price, "price", "", "New price, e.g. 12.50")
	cmd.Flags().StringVar(&currency, "currency", "", "New currency code")
	cmd.Flags().StringVar(&coverURL, "cover-url", "", "New cover image URL")
	cmd.Flags().BoolVar(&published, "published", true, "Publish or unpublish")
	return cmd
}

func newProductsDeleteCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "delete <product-id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("deleting %s cannot be undone; pass --confirm to proceed", args[0])
			}
			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				svc := a.products()
				if _, err := svc.List(ctx); err != nil {
					return err
				}
				if _, err := svc.Delete(ctx, args[0]).Wait(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted product: %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm the deletion")
	return cmd
}

func newProductsAttachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <product-id> <file>",
		Short: "Upload a file and attach it to a product",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := loadFiles(args[1:])
			if err != nil {
				return err
			}

			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				svc := a.products()
				if _, err := svc.List(ctx); err != nil {
					return err
				}

				attached := make(chan *mutation.Handle[models.Product], 1)
				id, err := svc.AttachFile(ctx, args[0], files[0], func(h *mutation.Handle[models.Product]) {
					attached <- h
				})
				if err != nil {
					return err
				}
				desc, err := a.coord.Wait(ctx, id)
				if err != nil {
					return err
				}

				var h *mutation.Handle[models.Product]
				select {
				case h = <-attached:
				case <-ctx.Done():
					return ctx.Err()
				}
				if _, err := h.Wait(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Attached %s to %s\n  File ID: %s\n", files[0].Name, args[0], desc.ID)
				return nil
			})
		},
	}
}
