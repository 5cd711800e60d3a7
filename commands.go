package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"iplogin/logging"
	"iplogin/options"
	"iplogin/updates"
)

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Delete the allow-list, the secret key and its change date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := options.Uninstall(db); err != nil {
				return fmt.Errorf("failed to remove options: %w", err)
			}
			logging.Infof("Removed %s, %s and %s", options.AllowedIPs, options.SecretKey, options.KeyLastChangedDate)
			return nil
		},
	}
}

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	var email, password string

	add := &cobra.Command{
		Use:   "add",
		Short: "Create an administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			admin, err := db.AddAdmin(email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created administrator %s (id %d)\n", admin.Email, admin.ID)
			return nil
		},
	}
	add.Flags().StringVar(&email, "email", "", "administrator email")
	add.Flags().StringVar(&password, "password", "", "administrator password")
	_ = add.MarkFlagRequired("email")
	_ = add.MarkFlagRequired("password")

	passwd := &cobra.Command{
		Use:   "passwd",
		Short: "Change an administrator's password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.UpdateAdminPassword(email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "password updated for %s\n", email)
			return nil
		},
	}
	passwd.Flags().StringVar(&email, "email", "", "administrator email")
	passwd.Flags().StringVar(&password, "password", "", "new password")
	_ = passwd.MarkFlagRequired("email")
	_ = passwd.MarkFlagRequired("password")

	list := &cobra.Command{
		Use:   "list",
		Short: "List administrators",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			admins, err := db.ListAdmins()
			if err != nil {
				return err
			}
			for _, a := range admins {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", a.ID, a.Email, a.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.AddCommand(add, passwd, list)
	return cmd
}

func newCheckUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-update",
		Short: "Check GitHub for a newer release",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Updates.Owner == "" || cfg.Updates.Repo == "" {
				return errors.New("updates.owner and updates.repo must be set")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			checker := updates.NewChecker(cfg.Updates.Owner, cfg.Updates.Repo, cfg.Updates.Token)
			rel, newer, err := checker.Check(ctx, version)
			if err != nil {
				return err
			}
			if newer {
				fmt.Fprintf(cmd.OutOrStdout(), "new version available: %s\n%s\n%s\n", rel.TagName, rel.HTMLURL, rel.ZipballURL)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "up to date (%s, latest %s)\n", version, rel.TagName)
			return nil
		},
	}
}
