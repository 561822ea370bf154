// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/portal-tui/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(
		newConfigInitCmd(root),
		newConfigShowCmd(root),
		newConfigPathCmd(root),
		newConfigHashCmd(),
	)
	return cmd
}

// =============================================================================
// INIT
// =============================================================================

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := root.path()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			if err := config.SaveTOML(config.Default(), path); err != nil {
				return NewCommandError("config init", "write", err)
			}
			if root.jsonOutput {
				return NewJSONResponse("config init", map[string]string{"path": path}).Write(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("[OK]")+" wrote "+path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// =============================================================================
// SHOW / PATH
// =============================================================================

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, environment overrides and
flags are applied. Secrets are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret != "" {
				cfg.Server.JWTSecret = redacted
			}
			for i := range cfg.Server.Users {
				cfg.Server.Users[i].PasswordHash = redacted
				if cfg.Server.Users[i].TOTPSecret != "" {
					cfg.Server.Users[i].TOTPSecret = redacted
				}
			}

			out := cmd.OutOrStdout()
			if root.jsonOutput {
				return NewJSONResponse("config show", cfg).Write(out)
			}
			return toml.NewEncoder(out).Encode(cfg)
		},
	}
}

const redacted = "[redacted]"

func newConfigPathCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := root.path()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// =============================================================================
// HASH
// =============================================================================

func newConfigHashCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Hash a password for a [[server.users]] entry",
		Long: `Read a password and print its bcrypt hash for the password_hash field
of a development backend account.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			defer p.Close()

			password, err := p.PasswordPrompt("Password: ")
			if err != nil {
				return err
			}
			if password == "" {
				return errors.New("password must not be empty")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
