package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dhvanip/nagarseva/internal/config"
	"github.com/dhvanip/nagarseva/internal/dashboard"
	"github.com/dhvanip/nagarseva/internal/db"
	"github.com/dhvanip/nagarseva/internal/models"
	"github.com/dhvanip/nagarseva/internal/repo"
)

func newOperatorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operator",
		Short: "Manage dashboard operator accounts",
	}

	cmd.AddCommand(newOperatorAddCmd())
	return cmd
}

func newOperatorAddCmd() *cobra.Command {
	var (
		configPath  string
		displayName string
		role        string
		wards       []int
		password    string
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a dashboard login",
		Long:  "Creates an operator account. Ward officers see only their assigned wards; admins see everything.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperatorAdd(cmd, configPath, args[0], displayName, role, wards, password)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to NagarSeva config file")
	cmd.Flags().StringVar(&displayName, "name", "", "display name (defaults to the username)")
	cmd.Flags().StringVar(&role, "role", "ward_officer", `"admin" or "ward_officer"`)
	cmd.Flags().IntSliceVar(&wards, "wards", nil, "ward numbers the operator may act on (empty: all)")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted interactively when omitted)")
	return cmd
}

func runOperatorAdd(cmd *cobra.Command, configPath, username, displayName, role string, wards []int, password string) error {
	out := cmd.OutOrStdout()

	if role != "admin" && role != "ward_officer" {
		return fmt.Errorf("role must be admin or ward_officer, got %q", role)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, w := range wards {
		if w < 1 || w > cfg.Wards.Count {
			return fmt.Errorf("ward %d outside 1..%d", w, cfg.Wards.Count)
		}
	}

	if password == "" {
		password, err = promptPassword(out)
		if err != nil {
			return err
		}
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := dashboard.HashPassword(password)
	if err != nil {
		return err
	}

	wardsJSON := "[]"
	if len(wards) > 0 {
		raw, err := json.Marshal(wards)
		if err != nil {
			return fmt.Errorf("encode wards: %w", err)
		}
		wardsJSON = string(raw)
	}

	gormDB, err := db.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if displayName == "" {
		displayName = username
	}

	err = repo.New(gormDB).CreateOperator(cmd.Context(), &models.Operator{
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         role,
		Wards:        wardsJSON,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Operator %q created (role: %s, wards: %s)\n", username, role, wardsJSON)
	return nil
}

// promptPassword reads the password twice without echo.
func promptPassword(out interface{ Write([]byte) (int, error) }) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("stdin is not a terminal; pass --password")
	}

	fmt.Fprint(out, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(out, "Confirm: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
