/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/hostel-tracker/apiserver/config"
	"github.com/hostel-tracker/apiserver/internal/db"
	"github.com/hostel-tracker/apiserver/internal/services"
	"github.com/hostel-tracker/apiserver/internal/store"
	"github.com/hostel-tracker/apiserver/types"
	"github.com/spf13/cobra"
)

var newAccount services.NewAccount
var newAccountRole string

// userCmd represents the user command
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account with any role",
	Long: `Creates an account directly in the database. Registration through the
API always creates students; use this to provision staff and management:

	hostel user create --role staff --name "Ravi" --email ravi@example.com \
		--password secret1 --phone 9999999999 --hostel H1 --block A
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			_ = dbConn.Close()
		}()

		account := newAccount
		account.Role = types.Role(newAccountRole)
		user, err := services.NewUserService(store.NewUserRepository(dbConn)).Create(cmd.Context(), account)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", user.Role, user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	flags := userCreateCmd.Flags()
	flags.StringVar(&newAccountRole, "role", string(types.RoleStaff), "role: student, staff or management")
	flags.StringVar(&newAccount.Name, "name", "", "full name")
	flags.StringVar(&newAccount.Email, "email", "", "login email")
	flags.StringVar(&newAccount.Password, "password", "", "initial password")
	flags.StringVar(&newAccount.Phone, "phone", "", "contact number")
	flags.StringVar(&newAccount.Hostel, "hostel", "", "hostel name")
	flags.StringVar(&newAccount.Block, "block", "", "block within the hostel")
	flags.StringVar(&newAccount.RoomNumber, "room", "", "room number")
	_ = userCreateCmd.MarkFlagRequired("email")
	_ = userCreateCmd.MarkFlagRequired("password")
}
