package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	accountsapp "rainlog/internal/accounts/application"
	accountspg "rainlog/internal/accounts/infrastructure/postgres"
)

var (
	createUserAdmin    bool
	createUserUsername string
	setAdminRevoke     bool
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long:  `Commands for managing rainlog accounts.`,
}

var createUserCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user, prompting for the password",
	Args:  cobra.NoArgs,
	RunE:  runCreateUser,
}

var setAdminCmd = &cobra.Command{
	Use:   "set-admin <username>",
	Short: "Grant or revoke the admin role",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetAdmin,
}

func init() {
	createUserCmd.Flags().BoolVar(&createUserAdmin, "admin", false, "grant the admin role")
	createUserCmd.Flags().StringVar(&createUserUsername, "username", "", "username (prompted when empty)")
	setAdminCmd.Flags().BoolVar(&setAdminRevoke, "revoke", false, "revoke instead of grant")
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(createUserCmd, setAdminCmd)
}

func openAccounts(cmd *cobra.Command) (*accountsapp.Service, func(), error) {
	db, err := openDB(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	service, err := accountsapp.NewService(accountspg.NewUserRepository(db), newLogger())
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return service, func() { _ = db.Close() }, nil
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	username := strings.TrimSpace(createUserUsername)
	if username == "" {
		fmt.Print("Enter username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	fmt.Print("Enter password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()
	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %w", err)
	}
	fmt.Println()
	if string(password) != string(confirm) {
		return fmt.Errorf("passwords do not match")
	}

	service, closeDB, err := openAccounts(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := service.CreateUser(cmd.Context(), username, string(password), createUserAdmin)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User created successfully!\n")
	fmt.Fprintf(out, "ID: %d\n", user.ID)
	fmt.Fprintf(out, "Username: %s\n", user.Username)
	fmt.Fprintf(out, "Admin: %t\n", user.IsAdmin)
	return nil
}

func runSetAdmin(cmd *cobra.Command, args []string) error {
	service, closeDB, err := openAccounts(cmd)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := service.SetAdmin(cmd.Context(), args[0], !setAdminRevoke); err != nil {
		return fmt.Errorf("set admin for %q: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "User %s admin=%t\n", args[0], !setAdminRevoke)
	return nil
}
