package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/divviup/divviup-console/internal/models"
)

func (a *app) apiTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "api-token",
		Aliases: []string{"api-tokens", "token"},
		Short:   "Manage API tokens of the current account",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List API tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}
			tokens, err := c.ApiTokens(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(tokens, func(w io.Writer) error {
				rows := make([][]string, 0, len(tokens))
				for _, t := range tokens {
					rows = append(rows, []string{t.ID.String(), orDash(t.Name), formatTime(t.CreatedAt), formatOptionalTime(t.LastUsedAt)})
				}
				return table(w, []string{"ID", "NAME", "CREATED", "LAST USED"}, rows)
			})
		},
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API token; the secret is shown only once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}
			token, err := unwrap(c.CreateApiToken(cmd.Context(), id))
			if err != nil {
				return err
			}
			return a.print(token, func(w io.Writer) error {
				if err := fields(w, "ID", token.ID.String(), "Token", orDash(token.Token)); err != nil {
					return err
				}
				return done(w, "Store the token now, it cannot be shown again.")
			})
		},
	}

	rename := &cobra.Command{
		Use:   "rename <token-id> <name>",
		Short: "Name an API token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("api token", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			token, err := unwrap(c.UpdateApiToken(cmd.Context(), id, models.UpdateApiToken{Name: args[1]}))
			if err != nil {
				return err
			}
			return a.print(token, func(w io.Writer) error {
				return done(w, "Renamed API token %s to %s", token.ID, orDash(token.Name))
			})
		},
	}

	remove := &cobra.Command{
		Use:     "delete <token-id>",
		Aliases: []string{"revoke", "rm"},
		Short:   "Revoke an API token",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("api token", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteApiToken(cmd.Context(), id); err != nil {
				return err
			}
			return a.deleted("api token", id.String())
		},
	}

	cmd.AddCommand(list, create, rename, remove)
	return cmd
}
