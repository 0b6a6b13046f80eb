package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"spitbox/logger"
)

var (
	loginEmail    string
	loginPassword string
	registerName  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Start a session and persist its token.",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := newClient()
		if err != nil {
			return err
		}

		email := loginEmail
		if email == "" {
			email = prompt("Email: ")
		}
		password := loginPassword
		if password == "" {
			password = prompt("Password: ")
		}

		resp, err := api.Login(context.Background(), email, password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		logger.Info("logged in", logger.String("username", resp.User.Username))
		fmt.Printf("Logged in as %s.\n", resp.User.Username)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in.",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := newClient()
		if err != nil {
			return err
		}

		username := registerName
		if username == "" {
			username = prompt("Username: ")
		}
		email := loginEmail
		if email == "" {
			email = prompt("Email: ")
		}
		password := loginPassword
		if password == "" {
			password = prompt("Password: ")
		}

		resp, err := api.Register(context.Background(), username, email, password)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		fmt.Printf("Welcome, %s.\n", resp.User.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, tokens, err := newClient()
		if err != nil {
			return err
		}
		if err := tokens.Clear(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}

func prompt(label string) string {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password")
	registerCmd.Flags().StringVar(&registerName, "username", "", "display name")
	registerCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&loginPassword, "password", "", "account password")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
}
