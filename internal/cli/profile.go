package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/services"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// newProfileCmd creates the 'profile' command group.
func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show and edit your bio page profile",
	}
	cmd.AddCommand(newProfileShowCmd())
	cmd.AddCommand(newProfileSetCmd())
	cmd.AddCommand(newProfileAvatarCmd())
	return cmd
}

func printProfile(w io.Writer, p models.Profile) {
	fmt.Fprintln(w, "Profile")
	fmt.Fprintln(w, "=======")
	for _, f := range services.ProfileFields {
		v := f.Value(p)
		if v == "" {
			v = "<not set>"
		}
		fmt.Fprintf(w, "  %-12s %s\n", string(f)+":", v)
	}
}

func newProfileShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				p, err := a.bio().LoadProfile(ctx)
				if err != nil {
					return err
				}
				printProfile(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

// parseAssignments turns field=value arguments into ordered edits.
func parseAssignments(args []string) ([]services.ProfileField, []string, error) {
	fields := make([]services.ProfileField, 0, len(args))
	values := make([]string, 0, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		f, err := services.ParseProfileField(strings.TrimSpace(name))
		if err != nil {
			return nil, nil, err
		}
		fields = append(fields, f)
		values = append(values, value)
	}
	return fields, values, nil
}

func newProfileSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <field=value> [field=value...]",
		Short: "Change profile fields",
		Long: `Change one or more profile fields.

Fields: username, displayName, bio, avatarUrl, theme

Examples:
  superlinks profile set bio="Prints and presets"
  superlinks profile set displayName=Mia theme=dark`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, values, err := parseAssignments(args)
			if err != nil {
				return err
			}

			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				bio := a.bio()
				if _, err := bio.LoadProfile(ctx); err != nil {
					return err
				}
				for i, f := range fields {
					if err := bio.EditProfile(ctx, f, values[i]); err != nil {
						return err
					}
				}
				bio.FlushProfile()

				// A rejected save has been rolled back to the previous value.
				p, _ := bio.Profile()
				var rejected []string
				for i, f := range fields {
					if f.Value(p) != values[i] {
						rejected = append(rejected, string(f))
					}
				}
				if len(rejected) > 0 {
					return fmt.Errorf("profile not saved: %s", strings.Join(rejected, ", "))
				}
				printProfile(cmd.OutOrStdout(), p)
				return nil
			})
		},
	}
}

func newProfileAvatarCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "avatar <image>",
		Short: "Upload a new avatar image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := loadFiles(args)
			if err != nil {
				return err
			}

			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				bio := a.bio()
				if _, err := bio.LoadProfile(ctx); err != nil {
					return err
				}
				return setAvatar(ctx, a, bio, files[0], cmd.OutOrStdout())
			})
		},
	}
}

func setAvatar(ctx context.Context, a *app, bio *services.BioService, file transfer.File, out io.Writer) error {
	id, err := bio.SetAvatar(ctx, file)
	if err != nil {
		return err
	}
	desc, err := a.coord.Wait(ctx, id)
	if err != nil {
		return err
	}
	// Close returns once the completion hook has queued the profile save.
	a.coord.Close()
	a.engine.Wait()

	p, _ := bio.Profile()
	if p.AvatarURL != desc.URL {
		return fmt.Errorf("avatar uploaded but profile not saved")
	}
	fmt.Fprintf(out, "✓ Avatar set: %s\n", desc.URL)
	return nil
}
