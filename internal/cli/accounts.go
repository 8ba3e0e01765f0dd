package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/divviup/divviup-console/internal/models"
	"github.com/divviup/divviup-console/internal/store"
)

func (a *app) accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Manage accounts",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the accounts visible to the current credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			accounts, err := c.Accounts(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(accounts, func(w io.Writer) error {
				rows := make([][]string, 0, len(accounts))
				for _, acc := range accounts {
					rows = append(rows, []string{acc.ID.String(), acc.Name, strconv.FormatBool(acc.Admin), formatTime(acc.CreatedAt)})
				}
				return table(w, []string{"ID", "NAME", "ADMIN", "CREATED"}, rows)
			})
		},
	}

	get := &cobra.Command{
		Use:   "get [account-id]",
		Short: "Show an account (default: the current account)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := a.accountOrArg(cmd, args, "account")
			if err != nil {
				return err
			}
			account, err := c.Account(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printAccount(*account)
		},
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			account, err := unwrap(c.CreateAccount(cmd.Context(), models.NewAccount{Name: args[0]}))
			if err != nil {
				return err
			}
			return a.printAccount(account)
		},
	}

	rename := &cobra.Command{
		Use:   "rename <name>",
		Short: "Rename the current account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}
			account, err := unwrap(c.RenameAccount(cmd.Context(), id, args[0]))
			if err != nil {
				return err
			}
			return a.printAccount(account)
		},
	}

	sharedAggregators := &cobra.Command{
		Use:   "shared-aggregators <true|false>",
		Short: "Record whether the current account intends to use shared aggregators",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			intends, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", args[0])
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}
			account, err := unwrap(c.UpdateAccount(cmd.Context(), id, models.UpdateAccount{IntendsToUseSharedAggregators: &intends}))
			if err != nil {
				return err
			}
			return a.printAccount(account)
		},
	}

	use := &cobra.Command{
		Use:   "use <account-id>",
		Short: "Remember the account to operate on when none is configured",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("account", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			// confirm the account is visible before remembering it
			account, err := c.Account(cmd.Context(), id)
			if err != nil {
				return err
			}
			keys, err := a.keystore()
			if err != nil {
				return err
			}
			if err := keys.Settings().Set(store.SettingDefaultAccountID, id.String()); err != nil {
				return err
			}
			return a.print(account, func(w io.Writer) error {
				return done(w, "Using account %s (%s)", account.Name, account.ID)
			})
		},
	}

	cmd.AddCommand(list, get, create, rename, sharedAggregators, use)
	return cmd
}

func (a *app) printAccount(account models.Account) error {
	return a.print(account, func(w io.Writer) error {
		intends := "-"
		if account.IntendsToUseSharedAggregators != nil {
			intends = strconv.FormatBool(*account.IntendsToUseSharedAggregators)
		}
		return fields(w,
			"ID", account.ID.String(),
			"Name", account.Name,
			"Admin", strconv.FormatBool(account.Admin),
			"Shared aggregators", intends,
			"Created", formatTime(account.CreatedAt),
			"Updated", formatTime(account.UpdatedAt),
		)
	})
}

func (a *app) membershipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "membership",
		Aliases: []string{"memberships", "members"},
		Short:   "Manage who can access the current account",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List account members",
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
			memberships, err := c.Memberships(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.print(memberships, func(w io.Writer) error {
				rows := make([][]string, 0, len(memberships))
				for _, m := range memberships {
					rows = append(rows, []string{m.ID.String(), m.UserEmail, formatTime(m.CreatedAt)})
				}
				return table(w, []string{"ID", "EMAIL", "CREATED"}, rows)
			})
		},
	}

	create := &cobra.Command{
		Use:     "create <email>",
		Aliases: []string{"invite", "add"},
		Short:   "Invite a user to the current account",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			id, err := a.accountID(cmd.Context())
			if err != nil {
				return err
			}
			membership, err := unwrap(c.CreateMembership(cmd.Context(), id, models.NewMembership{UserEmail: args[0]}))
			if err != nil {
				return err
			}
			return a.print(membership, func(w io.Writer) error {
				return done(w, "Invited %s (membership %s)", membership.UserEmail, membership.ID)
			})
		},
	}

	remove := &cobra.Command{
		Use:     "delete <membership-id>",
		Aliases: []string{"remove", "rm"},
		Short:   "Remove a member",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("membership", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteMembership(cmd.Context(), id); err != nil {
				return err
			}
			return a.deleted("membership", id.String())
		},
	}

	cmd.AddCommand(list, create, remove)
	return cmd
}
