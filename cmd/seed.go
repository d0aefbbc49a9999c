/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/nsmonitor/apiserver/config"
	"github.com/nsmonitor/apiserver/internal/db"
	"github.com/nsmonitor/apiserver/internal/logging"
	"github.com/nsmonitor/apiserver/internal/services"
	"github.com/nsmonitor/apiserver/internal/store"
	"github.com/nsmonitor/apiserver/types"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed initial data",
}

var (
	adminEmail    string
	adminName     string
	adminPassword string
)

var seedAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Create a super_admin account",
	Long: `Create the first super_admin account. Roles and permissions are seeded
by migrations; run "monitor migrate up" first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Log)

		conn, err := db.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer conn.Close()

		roles := store.NewRoleRepository(conn)
		role, err := roles.GetByName(cmd.Context(), types.RoleSuperAdmin)
		if err != nil {
			return fmt.Errorf("load %s role: %w", types.RoleSuperAdmin, err)
		}

		users := services.NewUserService(store.NewUserRepository(conn), roles)
		user, err := users.Create(cmd.Context(), services.UserInput{
			Name:                 adminName,
			Email:                adminEmail,
			Password:             adminPassword,
			PasswordConfirmation: adminPassword,
			RoleID:               &role.ID,
		})
		if err != nil {
			return err
		}
		logger.WithField("user_id", user.ID).WithField("email", user.Email).Info("super_admin created")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.AddCommand(seedAdminCmd)
	seedAdminCmd.Flags().StringVar(&adminEmail, "email", "", "login email")
	seedAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name")
	seedAdminCmd.Flags().StringVar(&adminPassword, "password", "", "password, at least 8 characters")
	_ = seedAdminCmd.MarkFlagRequired("email")
	_ = seedAdminCmd.MarkFlagRequired("password")
}
