package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	linkTimeout      = 3 * time.Minute
	linkPollInterval = 2 * time.Second
)

// NewLinkCommand returns the device link command that stores an account
// token for later runs.
func NewLinkCommand(ctx *Context, appName string) *cobra.Command {
	return &cobra.Command{
		Use:   "link",
		Short: "Authorize " + appName + " with plex.tv using the device link flow",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := context.WithTimeout(cmd.Context(), linkTimeout)
			defer cancel()

			manager, err := ctx.TokenManager()
			if err != nil {
				return err
			}

			pin, err := manager.RequestPin(runCtx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if strings.TrimSpace(pin.AuthURL) != "" {
				fmt.Fprintf(out, "Open the following URL to authorize %s with Plex:\n", appName)
				fmt.Fprintf(out, "\n    %s\n\n", pin.AuthURL)
				fmt.Fprintf(out, "If Plex asks for a PIN, enter: %s\n\n", pin.Code)
			} else {
				fmt.Fprintln(out, "Open https://plex.tv/link and enter the code:")
				fmt.Fprintf(out, "\n    %s\n\n", pin.Code)
			}
			fmt.Fprintln(out, "Waiting for authorization... (Ctrl+C to abort)")

			expires := pin.ExpiresAt
			if expires.IsZero() {
				expires = time.Now().Add(5 * time.Minute)
			}

			poll := time.NewTicker(linkPollInterval)
			defer poll.Stop()

			for {
				select {
				case <-runCtx.Done():
					return runCtx.Err()
				case <-poll.C:
					status, err := manager.PollPin(runCtx, pin.ID)
					if err != nil {
						return err
					}
					if status.Authorized {
						if err := manager.SetAuthorizationToken(status.AuthorizationToken); err != nil {
							return err
						}
						if _, err := manager.Token(runCtx); err != nil {
							return err
						}
						fmt.Fprintln(out, "Plex linked successfully.")
						return nil
					}
					if !status.ExpiresAt.IsZero() {
						expires = status.ExpiresAt
					}
					if time.Now().After(expires) {
						return fmt.Errorf("link code expired; run '%s link' again", appName)
					}
				}
			}
		},
	}
}

// NewCheckCommand returns the command that connects to the server and
// prints what the token can see.
func NewCheckCommand(ctx *Context) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the server accepts the configured token",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.Session(cmd.Context(), defaultInventoryOptions)
			if err != nil {
				return err
			}
			if session == nil {
				return errors.New("session not established")
			}
			inv := session.Inventory
			rows := [][]string{
				{"Server", inv.Server.FriendlyName},
				{"Machine ID", inv.Server.MachineIdentifier},
				{"Version", inv.Server.Version},
				{"URL", session.Client.ServerURL()},
				{"Owner", inv.Owner.Title},
				{"Plex Pass", yesNo(inv.PlexPass)},
				{"Users", fmt.Sprintf("%d", len(inv.Users))},
				{"Libraries", strings.Join(inv.SectionTitles(), ", ")},
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, RenderTable([]string{"Check", "Result"}, rows, IsTerminal(out)))
			return nil
		},
	}
}
