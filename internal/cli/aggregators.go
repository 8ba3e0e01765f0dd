package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/divviup/divviup-console/internal/models"
)

func (a *app) aggregatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "aggregator",
		Aliases: []string{"aggregators", "agg"},
		Short:   "Manage aggregators",
	}

	var shared bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List the aggregators of the current account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			var aggregators []models.Aggregator
			if shared {
				aggregators, err = c.SharedAggregators(cmd.Context())
			} else {
				id, idErr := a.accountID(cmd.Context())
				if idErr != nil {
					return idErr
				}
				aggregators, err = c.Aggregators(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			return a.print(aggregators, func(w io.Writer) error {
				rows := make([][]string, 0, len(aggregators))
				for _, agg := range aggregators {
					rows = append(rows, []string{
						agg.ID.String(), agg.Name, string(agg.Role), string(agg.Protocol),
						strconv.FormatBool(agg.IsShared()), agg.DapURL,
					})
				}
				return table(w, []string{"ID", "NAME", "ROLE", "PROTOCOL", "SHARED", "DAP URL"}, rows)
			})
		},
	}
	list.Flags().BoolVar(&shared, "shared", false, "List the shared aggregators instead")

	get := &cobra.Command{
		Use:   "get <aggregator-id>",
		Short: "Show an aggregator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("aggregator", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			agg, err := c.Aggregator(cmd.Context(), id)
			if err != nil {
				return err
			}
			return a.printAggregator(*agg)
		},
	}

	var newAgg models.NewAggregator
	create := &cobra.Command{
		Use:   "create",
		Short: "Pair an aggregator with the current account",
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
			agg, err := unwrap(c.CreateAggregator(cmd.Context(), id, newAgg))
			if err != nil {
				return err
			}
			return a.printAggregator(agg)
		},
	}
	create.Flags().StringVar(&newAgg.Name, "name", "", "Display name")
	create.Flags().StringVar(&newAgg.APIURL, "api-url", "", "Aggregator API URL")
	create.Flags().StringVar(&newAgg.BearerToken, "bearer-token", "", "Token for the aggregator API")

	var newShared models.NewSharedAggregator
	createShared := &cobra.Command{
		Use:   "create-shared",
		Short: "Pair a shared aggregator available to every account (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			agg, err := unwrap(c.CreateSharedAggregator(cmd.Context(), newShared))
			if err != nil {
				return err
			}
			return a.printAggregator(agg)
		},
	}
	createShared.Flags().StringVar(&newShared.Name, "name", "", "Display name")
	createShared.Flags().StringVar(&newShared.APIURL, "api-url", "", "Aggregator API URL")
	createShared.Flags().StringVar(&newShared.BearerToken, "bearer-token", "", "Token for the aggregator API")
	createShared.Flags().BoolVar(&newShared.IsFirstParty, "first-party", false, "Mark the aggregator as first party")

	rename := &cobra.Command{
		Use:   "rename <aggregator-id> <name>",
		Short: "Rename an aggregator",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("aggregator", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			agg, err := unwrap(c.RenameAggregator(cmd.Context(), id, args[1]))
			if err != nil {
				return err
			}
			return a.printAggregator(agg)
		},
	}

	rotate := &cobra.Command{
		Use:   "rotate-token <aggregator-id> <bearer-token>",
		Short: "Replace the token used for an aggregator's API",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("aggregator", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			agg, err := unwrap(c.RotateAggregatorBearerToken(cmd.Context(), id, args[1]))
			if err != nil {
				return err
			}
			return a.printAggregator(agg)
		},
	}

	remove := &cobra.Command{
		Use:     "delete <aggregator-id>",
		Aliases: []string{"rm"},
		Short:   "Delete an aggregator",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("aggregator", args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteAggregator(cmd.Context(), id); err != nil {
				return err
			}
			return a.deleted("aggregator", id.String())
		},
	}

	cmd.AddCommand(list, get, create, createShared, rename, rotate, remove)
	return cmd
}

func (a *app) printAggregator(agg models.Aggregator) error {
	return a.print(agg, func(w io.Writer) error {
		return fields(w,
			"ID", agg.ID.String(),
			"Name", agg.Name,
			"Role", string(agg.Role),
			"Protocol", string(agg.Protocol),
			"Shared", strconv.FormatBool(agg.IsShared()),
			"First party", strconv.FormatBool(agg.IsFirstParty),
			"DAP URL", agg.DapURL,
			"API URL", agg.APIURL,
			"VDAFs", strings.Join(agg.Vdafs, ", "),
			"Query types", strings.Join(agg.QueryTypes, ", "),
			"Features", strings.Join(agg.Features, ", "),
			"Created", formatTime(agg.CreatedAt),
		)
	})
}
