package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/services"
	strutil "github.com/chinmay4o/superlinks/internal/util/strings"
)

// newBlocksCmd creates the 'blocks' command group.
func newBlocksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Manage bio page blocks",
		Long: `Commands for the blocks of your bio page.

Changes apply locally first and are saved in the background. A change the
server rejects is rolled back and the error is reported.`,
	}

	cmd.AddCommand(newBlocksListCmd())
	cmd.AddCommand(newBlocksAddCmd())
	cmd.AddCommand(newBlocksUpdateCmd())
	cmd.AddCommand(newBlocksRemoveCmd())
	cmd.AddCommand(newBlocksReorderCmd())
	return cmd
}

func printBlocks(w io.Writer, blocks []models.Block) {
	if len(blocks) == 0 {
		fmt.Fprintln(w, "No blocks found")
		return
	}
	fmt.Fprintf(w, "Found %s:\n\n", strutil.Count(len(blocks), "block"))
	for i, b := range blocks {
		hidden := ""
		if !b.Visible {
			hidden = " (hidden)"
		}
		fmt.Fprintf(w, "%2d. [%s] %s%s\n", i+1, b.Type, b.Title, hidden)
		fmt.Fprintf(w, "    ID:  %s\n", b.ID)
		if b.URL != "" {
			fmt.Fprintf(w, "    URL: %s\n", b.URL)
		}
	}
}

func newBlocksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List bio page blocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				blocks, err := a.bio().LoadBlocks(ctx)
				if err != nil {
					return fmt.Errorf("failed to list blocks: %w", err)
				}
				printBlocks(cmd.OutOrStdout(), blocks)
				return nil
			})
		},
	}
}

func newBlocksAddCmd() *cobra.Command {
	var (
		blockType string
		title     string
		url       string
		imageURL  string
		hidden    bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a block to the end of the page",
		Long: `Add a block to the end of the bio page.

Examples:
  superlinks blocks add --title "My shop" --url https://example.com/shop
  superlinks blocks add --type text --title "New drop every Friday"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bt := models.BlockType(strings.ToLower(blockType))
			switch bt {
			case models.BlockTypeLink, models.BlockTypeText, models.BlockTypeImage,
				models.BlockTypeProduct, models.BlockTypeSocial:
			default:
				return fmt.Errorf("unknown block type %q (link, text, image, product, social)", blockType)
			}
			if title == "" {
				return fmt.Errorf("--title is required")
			}

			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				bio := a.bio()
				if _, err := bio.LoadBlocks(ctx); err != nil {
					return fmt.Errorf("failed to load blocks: %w", err)
				}
				h := bio.AddBlock(ctx, models.Block{
					Type:     bt,
					Title:    title,
					URL:      url,
					ImageURL: imageURL,
					Visible:  !hidden,
				})
				block, err := h.Wait(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Added block: %s\n", block.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&blockType, "type", string(models.BlockTypeLink), "Block type: link, text, image, product, social")
	cmd.Flags().StringVar(&title, "title", "", "Block title (required)")
	cmd.Flags().StringVar(&url, "url", "", "Link target")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "Image shown with the block")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "Add the block hidden")
	return cmd
}

func newBlocksUpdateCmd() *cobra.Command {
	var (
		title    string
		url      string
		imageURL string
		visible  bool
	)

	cmd := &cobra.Command{
		Use:   "update <block-id>",
		Short: "Change a block",
		Long: `Change the fields of a block. Only the flags given are sent.

Examples:
  superlinks blocks update blk_123 --title "Shop (20% off)"
  superlinks blocks update blk_123 --visible=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch services.BlockPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("url") {
				patch.URL = &url
			}
			if flags.Changed("image-url") {
				patch.ImageURL = &imageURL
			}
			if flags.Changed("visible") {
				patch.Visible = &visible
			}
			if patch.IsEmpty() {
				return fmt.Errorf("nothing to update: pass --title, --url, --image-url or --visible")
			}

			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				bio := a.bio()
				if _, err := bio.LoadBlocks(ctx); err != nil {
					return fmt.Errorf("failed to load blocks: %w", err)
				}
				block, err := bio.UpdateBlock(ctx, args[0], patch).Wait(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated block: %s\n", block.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&url, "url", "", "New link target")
	cmd.Flags().StringVar(&imageURL, "image-url", "", "New image")
	cmd.Flags().BoolVar(&visible, "visible", true, "Show or hide the block")
	return cmd
}

func newBlocksRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <block-id> [block-id...]",
		Aliases: []string{"rm"},
		Short:   "Remove blocks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				bio := a.bio()
				if _, err := bio.LoadBlocks(ctx); err != nil {
					return fmt.Errorf("failed to load blocks: %w", err)
				}

				out := cmd.OutOrStdout()
				var failures []string
				for _, id := range args {
					if _, err := bio.RemoveBlock(ctx, id).Wait(ctx); err != nil {
						failures = append(failures, fmt.Sprintf("%s: %v", id, err))
						continue
					}
					fmt.Fprintf(out, "✓ Removed block: %s\n", id)
				}
				if len(failures) > 0 {
					return fmt.Errorf("failed to remove %s:\n  - %s", strutil.Count(len(failures), "block"), strings.Join(failures, "\n  - "))
				}
				return nil
			})
		},
	}
}

func newBlocksReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <block-id> [block-id...]",
		Short: "Set the order of blocks",
		Long: `Move the given blocks to the top of the page in the given order.
Blocks not named keep their relative order after them.

Example:
  superlinks blocks reorder blk_3 blk_1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				bio := a.bio()
				if _, err := bio.LoadBlocks(ctx); err != nil {
					return fmt.Errorf("failed to load blocks: %w", err)
				}
				if _, err := bio.ReorderBlocks(ctx, args).Wait(ctx); err != nil {
					return err
				}
				printBlocks(cmd.OutOrStdout(), bio.Blocks())
				return nil
			})
		},
	}
}
