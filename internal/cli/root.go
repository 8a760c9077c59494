// Package cli implements the operator commands used to bootstrap a deployment,
// most importantly creating the first administrator.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/myloveankyy/xkey-auction-sub000/internal/services"
)

// Opener connects to the user store. The returned func releases the connection.
type Opener func(ctx context.Context) (services.IUserService, func(), error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	open   Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of the seed tool.
func NewRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed users into the xKey marketplace",
		Long:  "Create administrators and bulk-load users. Registration through the API can only create sellers.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewCreateAdminCommand(opts))
	cmd.AddCommand(NewUsersCommand(opts))
	cmd.AddCommand(NewListAdminsCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// withUsers opens the store for the duration of fn.
func (o *RootOptions) withUsers(ctx context.Context, fn func(services.IUserService) error) error {
	users, closeFn, err := o.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer closeFn()
	return fn(users)
}

// print writes v as indented JSON, or calls text for the text format.
func (o *RootOptions) print(w io.Writer, v any, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
