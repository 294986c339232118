package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"yojana/pkg/domain"
)

// adminPasswordEnv supplies the password when --password is not given.
const adminPasswordEnv = "YOJANA_ADMIN_PASSWORD"

func newBootstrapAdminCmd(flags *globalFlags) *cobra.Command {
	var id, fullName, username, password string
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first administrator account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if password == "" {
				password = os.Getenv(adminPasswordEnv)
			}
			if password == "" {
				return errors.New("a password is required: pass --password or set " + adminPasswordEnv)
			}
			if id == "" {
				id = username
			}
			svc, closeStore, err := openService(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeStore() }()

			yes := true
			acct, err := svc.CreateEmployee(cmd.Context(), domain.EmployeePatch{
				ID:       &id,
				FullName: &fullName,
				IsAdmin:  &yes,
				Username: &username,
				Password: &password,
			})
			if err != nil {
				return fmt.Errorf("create administrator: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (username %s)\n", acct.Employee.ID, acct.Username)
			return err
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "employee id (defaults to the username)")
	cmd.Flags().StringVar(&fullName, "name", "Administrator", "full name")
	cmd.Flags().StringVar(&username, "username", "admin", "login username")
	cmd.Flags().StringVar(&password, "password", "", "login password (or "+adminPasswordEnv+")")
	return cmd
}
