package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amoshaviv/flow-tester-sub001/internal/repository"
	"github.com/amoshaviv/flow-tester-sub001/internal/service"
)

func newUserCommand(a *app) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	var req service.SignUpRequest
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth := service.NewAuthService(
				repository.NewUserRepository(a.db),
				repository.NewSessionRepository(a.db),
				repository.NewInviteRepository(a.db),
				a.cfg.Auth,
				a.logger,
			)
			user, err := auth.SignUp(cmd.Context(), &req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s\n", user.Email)
			return nil
		},
	}
	createCmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	createCmd.Flags().StringVar(&req.Password, "password", "", "Password")
	createCmd.Flags().StringVar(&req.DisplayName, "name", "", "Display name")
	createCmd.MarkFlagRequired("email")
	createCmd.MarkFlagRequired("password")

	userCmd.AddCommand(createCmd)
	return userCmd
}
