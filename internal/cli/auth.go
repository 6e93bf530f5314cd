package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/pathutil"
	"github.com/chinmay4o/superlinks/internal/session"
)

// readToken prompts for a token on in. Terminal input is not echoed.
func readToken(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Session token: ")
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token",
		Long: `Store a session token for later commands.

The token is written with 0600 permissions to the default token file
(see 'superlinks config path') unless --path is given. With --token it is
stored without prompting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			value := token
			if value == "" {
				var err error
				value, err = readToken(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
			}
			if value == "" {
				return fmt.Errorf("no token given")
			}

			info := session.Inspect(value)
			if !info.ExpiresAt.IsZero() && !info.ExpiresAt.After(time.Now()) {
				return fmt.Errorf("token expired %s", humanize.Time(info.ExpiresAt))
			}

			if path != "" {
				resolved, err := pathutil.ResolveAbsolutePath(path)
				if err != nil {
					return fmt.Errorf("invalid --path: %w", err)
				}
				path = resolved
			}
			store := session.NewStore(value, path, nil)
			if err := store.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Token saved to %s\n", store.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Token file (default: see 'superlinks config path')")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.GetDefaultTokenPath()
			if path == "" {
				return fmt.Errorf("no token file location available")
			}
			err := os.Remove(path)
			switch {
			case os.IsNotExist(err):
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			case err != nil:
				return fmt.Errorf("failed to remove token file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", path)
			return nil
		},
	}
}

func printSession(w io.Writer, tok string, now time.Time) {
	info := session.Inspect(tok)
	fmt.Fprintf(w, "Token:   %s\n", session.Mask(tok))
	if !info.IsJWT {
		fmt.Fprintln(w, "Type:    opaque")
		return
	}
	fmt.Fprintln(w, "Type:    JWT")
	if info.Subject != "" {
		fmt.Fprintf(w, "Subject: %s\n", info.Subject)
	}
	switch {
	case info.ExpiresAt.IsZero():
		fmt.Fprintln(w, "Expires: never")
	case info.ExpiresAt.After(now):
		fmt.Fprintf(w, "Expires: %s (%s)\n", info.ExpiresAt.Format(time.RFC3339), humanize.RelTime(info.ExpiresAt, now, "ago", "from now"))
	default:
		fmt.Fprintf(w, "Expired: %s (%s)\n", info.ExpiresAt.Format(time.RFC3339), humanize.RelTime(info.ExpiresAt, now, "ago", "from now"))
	}
}

func newWhoamiCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.Token == "" {
				return fmt.Errorf("not logged in; run 'superlinks login'")
			}
			out := cmd.OutOrStdout()
			printSession(out, cfg.Token, time.Now())
			if offline {
				return nil
			}

			return withApp(cmd.ErrOrStderr(), func(ctx context.Context, a *app) error {
				p, err := a.bio().LoadProfile(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "User:    %s (%s)\n", p.Username, p.DisplayName)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "Only decode the token, do not contact the server")
	return cmd
}
