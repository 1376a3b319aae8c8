package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dailyplan/internal/config"
	"dailyplan/internal/httpapi"
	"dailyplan/internal/repository"
)

func newSyncCmd() *cobra.Command {
	var (
		userID     uint
		calendarID string
		full       bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one calendar of a user now",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ctx := cmd.Context()

			if full {
				if err := a.repos.SyncStates.ClearSyncToken(ctx, userID, calendarID); err != nil {
					return err
				}
			}
			result, err := a.syncer.SyncEvents(ctx, userID, calendarID)
			if err != nil {
				return err
			}
			fmt.Printf("Synced %s: %d created, %d updated, %d deleted (full resync: %t)\n",
				calendarID, result.Created, result.Updated, result.Deleted, result.FullResync)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "User ID")
	cmd.Flags().StringVar(&calendarID, "calendar", "primary", "Calendar ID")
	cmd.Flags().BoolVar(&full, "full", false, "Drop the sync token and resync from now")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newRenewWatchesCmd() *cobra.Command {
	var window time.Duration
	cmd := &cobra.Command{
		Use:   "renew-watches",
		Short: "Re-register push channels that expire soon",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if window <= 0 {
				window = a.cfg.Google.RenewWindow
			}
			n, err := a.watches.RenewExpiring(cmd.Context(), window)
			fmt.Printf("Renewed %d watch channel(s)\n", n)
			return err
		},
	}
	cmd.Flags().DurationVar(&window, "window", 0, "Renew channels expiring within this duration (default from config)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := repository.NewDB(cfg.Database.Driver, cfg.Database.URL)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			fmt.Printf("Schema is up to date (%s)\n", cfg.Database.Driver)
			return nil
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		userID uint
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServe(); err != nil {
				return err
			}
			token, err := httpapi.IssueToken(userID, cfg.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "User ID")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
