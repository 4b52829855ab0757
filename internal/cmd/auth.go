package cmd

import (
	"github.com/spf13/cobra"

	"github.com/taxonline/admin/cli/pkg/api"
	"github.com/taxonline/admin/cli/pkg/formatter"
	"github.com/taxonline/admin/cli/pkg/output"
	"github.com/taxonline/admin/cli/pkg/prompter"
	"github.com/taxonline/admin/cli/pkg/session"
)

var (
	loginUsername string
	loginPassword string

	newUserName     string
	newUserEmail    string
	newUserPassword string
	newUserFullName string
	newUserRole     string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Log in, log out and manage back-office users",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the TaxOnline back office",
	RunE: func(cmd *cobra.Command, args []string) error {
		username := loginUsername
		if username == "" {
			var err error
			if username, err = prompter.PromptString("Username: "); err != nil {
				return err
			}
		}
		password := loginPassword
		if password == "" {
			var err error
			if password, err = prompter.PromptPassword("Password: "); err != nil {
				return err
			}
		}

		u, err := app.Auth.Login(cmd.Context(), username, password)
		if err != nil {
			return err
		}
		formatter.PrintSuccess("Logged in as %s (%s)", u.DisplayName(), u.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app.Auth.Logout()
		formatter.PrintSuccess("Logged out")
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := app.Auth.Me(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintRecord("Current user", map[string]interface{}{
			"id":        u.ID,
			"username":  u.Username,
			"email":     u.Email,
			"full_name": u.FullName,
			"role":      u.Role,
		})
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage back-office users (admin only)",
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := app.Auth.Users(cmd.Context())
		if err != nil {
			return err
		}
		return output.PrintTable(formatter.UserHeaders, formatter.UserRows(users), users)
	},
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := api.UserInput{
			Username: newUserName,
			Email:    newUserEmail,
			Password: newUserPassword,
			FullName: newUserFullName,
			Role:     session.Role(newUserRole),
		}
		var err error
		if in.Username == "" {
			if in.Username, err = prompter.PromptString("Username: "); err != nil {
				return err
			}
		}
		if in.Email == "" {
			if in.Email, err = prompter.PromptString("Email: "); err != nil {
				return err
			}
		}
		if in.Password == "" {
			if in.Password, err = prompter.PromptPassword("Password: "); err != nil {
				return err
			}
		}

		created, err := app.Auth.CreateUser(cmd.Context(), in)
		if err != nil {
			return err
		}
		formatter.PrintSuccess("Created user %s (id %d)", created.Username, created.ID)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (prompted when omitted)")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted when omitted)")

	usersCreateCmd.Flags().StringVar(&newUserName, "username", "", "Username")
	usersCreateCmd.Flags().StringVar(&newUserEmail, "email", "", "Email address")
	usersCreateCmd.Flags().StringVar(&newUserPassword, "password", "", "Password (prompted when omitted)")
	usersCreateCmd.Flags().StringVar(&newUserFullName, "full-name", "", "Full name")
	usersCreateCmd.Flags().StringVar(&newUserRole, "role", string(session.RoleViewer), "Role: admin, editor or viewer")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)

	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(meCmd)
	authCmd.AddCommand(usersCmd)
}
