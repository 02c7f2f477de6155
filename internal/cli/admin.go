package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewAdminCmd groups administrator maintenance commands.
func NewAdminCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}
	cmd.AddCommand(newAdminCreateCmd(configPath))
	return cmd
}

func newAdminCreateCmd(configPath *string) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the first administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			c, err := buildComponents(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			admin, err := c.auth.SetupAdmin(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %q (id %d)\n", admin.Username, admin.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username (at least 3 characters)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (at least 6 characters)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
