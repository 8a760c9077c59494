package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
)

// AdminPasswordEnv is read when --password is not given, keeping the secret out of shell history.
const AdminPasswordEnv = "SEED_ADMIN_PASSWORD"

// UserResult is the outcome for one seeded account.
type UserResult struct {
	ID     string `json:"id,omitempty"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"` // created | elevated | exists | failed
	Error  string `json:"error,omitempty"`
}

// NewCreateAdminCommand creates the create-admin command.
func NewCreateAdminCommand(rootOpts *RootOptions) *cobra.Command {
	var input services.RegisterInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator, or elevate an existing user",
		Long: `Create an administrator account. If a user with the email already exists
it is elevated to admin and keeps its password.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input.Password == "" {
				input.Password = os.Getenv(AdminPasswordEnv)
			}
			if input.Email == "" {
				return errors.New("--email is required")
			}

			var result UserResult
			err := rootOpts.withUsers(cmd.Context(), func(users services.IUserService) error {
				var err error
				result, err = ensureAdmin(cmd.Context(), users, input)
				return err
			})
			if err != nil {
				return err
			}
			return rootOpts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "admin %s %s (id %s)\n", result.Email, result.Status, result.ID)
			})
		},
	}

	cmd.Flags().StringVar(&input.Name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&input.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&input.Password, "password", "", "password; defaults to $"+AdminPasswordEnv)

	return cmd
}

// ensureAdmin creates the admin or reports how an existing account was handled.
func ensureAdmin(ctx context.Context, users services.IUserService, input services.RegisterInput) (UserResult, error) {
	status := "created"
	existing, err := users.FindByEmail(ctx, input.Email)
	switch {
	case err == nil && existing.IsAdmin():
		status = "exists"
	case err == nil:
		status = "elevated"
	case !errors.Is(err, services.ErrUserNotFound):
		return UserResult{}, err
	}
	admin, err := users.CreateAdmin(ctx, input)
	if err != nil {
		return UserResult{}, err
	}
	return UserResult{ID: admin.ID.String(), Email: admin.Email, Role: string(admin.Role), Status: status}, nil
}

// NewListAdminsCommand creates the list-admins command.
func NewListAdminsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list-admins",
		Short: "List administrator accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var results []UserResult
			err := rootOpts.withUsers(cmd.Context(), func(users services.IUserService) error {
				admins, err := users.ListAdmins(cmd.Context())
				if err != nil {
					return err
				}
				for _, a := range admins {
					results = append(results, UserResult{ID: a.ID.String(), Email: a.Email, Role: string(a.Role), Status: "exists"})
				}
				return nil
			})
			if err != nil {
				return err
			}
			return rootOpts.print(cmd.OutOrStdout(), results, func(w io.Writer) {
				if len(results) == 0 {
					fmt.Fprintln(w, "no administrators")
				}
				for _, r := range results {
					fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Email)
				}
			})
		},
	}
}
