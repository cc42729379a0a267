package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/services"
)

func newMigrateCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.migrate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
}

func newReconcileCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recount worker workloads from the task table and fix drift",
		Long: `Recounts the active assignments of every worker and overwrites any
current_workload counter that disagrees. Prints the report as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.reconciler.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func newCreateAdminCmd(configFile *string) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.close()

			user, err := a.auth.Signup(cmd.Context(), services.SignupInput{
				Username: username,
				Password: password,
				Role:     models.RoleAdmin,
			})
			if err != nil {
				return fmt.Errorf("failed to create admin: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (%s)\n", user.Username, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "admin username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "admin password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
