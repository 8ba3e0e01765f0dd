package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	apierrors "github.com/divviup/divviup-console/internal/errors"
)

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the user behind the current credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			user, err := c.CurrentUser(cmd.Context())
			if apierrors.IsForbidden(err) {
				if login, loginErr := c.LoginURL(cmd.Context()); loginErr == nil {
					fmt.Fprintf(a.errOut, "Not signed in. Log in at %s\n", login)
				}
				return err
			}
			if err != nil {
				return err
			}
			return a.print(user, func(w io.Writer) error {
				return fields(w,
					"Email", user.Email,
					"Name", user.Name,
					"Admin", strconv.FormatBool(user.Admin),
				)
			})
		},
	}
}
