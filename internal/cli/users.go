package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/myloveankyy/xkey-auction-sub000/internal/models"
	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
)

// SeedFile is the YAML document read by the users command.
//
//	admins:
//	  - name: Ops
//	    email: ops@example.com
//	    password: change-me-now
//	sellers:
//	  - name: Demo Seller
//	    email: seller@example.com
//	    password: change-me-too
type SeedFile struct {
	Admins  []SeedUser `yaml:"admins"`
	Sellers []SeedUser `yaml:"sellers"`
}

// SeedUser is one account in a seed file.
type SeedUser struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// LoadSeedFile parses a seed file. Unknown keys are rejected so that typos do not
// silently skip accounts.
func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	var seed SeedFile
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}
	return &seed, nil
}

// NewUsersCommand creates the users command.
func NewUsersCommand(rootOpts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "users",
		Short: "Create the accounts listed in a YAML file",
		Long: `Create admins and sellers from a YAML seed file. Sellers that already
exist are left untouched; listed admins are created or elevated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := LoadSeedFile(file)
			if err != nil {
				return err
			}

			var results []UserResult
			err = rootOpts.withUsers(cmd.Context(), func(users services.IUserService) error {
				ctx := cmd.Context()
				for _, u := range seed.Admins {
					res, err := ensureAdmin(ctx, users, services.RegisterInput{Name: u.Name, Email: u.Email, Password: u.Password})
					if err != nil {
						res = UserResult{Email: u.Email, Role: string(models.RoleAdmin), Status: "failed", Error: err.Error()}
					}
					results = append(results, res)
				}
				for _, u := range seed.Sellers {
					input := services.RegisterInput{Name: u.Name, Email: u.Email, Password: u.Password}
					res, err := users.Register(ctx, input)
					switch {
					case errors.Is(err, services.ErrEmailExists):
						results = append(results, UserResult{Email: u.Email, Role: string(models.RoleSeller), Status: "exists"})
					case err != nil:
						results = append(results, UserResult{Email: u.Email, Role: string(models.RoleSeller), Status: "failed", Error: err.Error()})
					default:
						results = append(results, UserResult{ID: res.ID.String(), Email: res.Email, Role: string(res.Role), Status: "created"})
					}
				}
				return nil
			})
			if err != nil {
				return err
			}

			if err := rootOpts.print(cmd.OutOrStdout(), results, func(w io.Writer) {
				for _, r := range results {
					line := fmt.Sprintf("%-8s %-7s %s", r.Status, r.Role, r.Email)
					if r.Error != "" {
						line += ": " + r.Error
					}
					fmt.Fprintln(w, line)
				}
			}); err != nil {
				return err
			}
			for _, r := range results {
				if r.Status == "failed" {
					return errors.New("some accounts could not be created")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (YAML)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
