package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/inbox-triage/internal/buckets"
	"github.com/mikey/inbox-triage/internal/core"
	"github.com/mikey/inbox-triage/internal/di"
	"github.com/mikey/inbox-triage/internal/ports"
)

func newPollCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run a single poll cycle for every active user and print the reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := di.BuildContainer(*configFile)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}
			return container.Invoke(func(logger *zap.Logger, store ports.Store, runner ports.Runner) error {
				defer logger.Sync()
				defer store.Close()

				reports, err := runner.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(reports)
			})
		},
	}
}

func newUserCmd(open storeOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage triaged accounts",
	}

	var user ports.User
	var noDefaults bool
	add := &cobra.Command{
		Use:   "add",
		Short: "Create or update a user, seeding the default buckets",
		RunE: func(cmd *cobra.Command, args []string) error {
			if user.ID == "" || user.Email == "" {
				return errors.New("--id and --email are required")
			}
			user.Active = true
			return open(func(ctx context.Context, store ports.Store) error {
				if err := store.SaveUser(ctx, &user); err != nil {
					return err
				}
				if noDefaults {
					return nil
				}
				existing, err := store.ListBuckets(ctx, user.ID)
				if err != nil {
					return err
				}
				if len(existing) > 0 {
					return nil
				}
				return store.SaveBuckets(ctx, user.ID, buckets.Defaults())
			})
		},
	}
	add.Flags().StringVar(&user.ID, "id", "", "User id")
	add.Flags().StringVar(&user.Email, "email", "", "Mailbox address, also used to route ingested mail")
	add.Flags().StringVar(&user.DisplayName, "name", "", "Display name")
	add.Flags().BoolVar(&noDefaults, "no-default-buckets", false, "Do not seed the default buckets")

	var packFile, packUser string
	setContext := &cobra.Command{
		Use:   "set-context",
		Short: "Replace a user's context pack from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(packFile)
			if err != nil {
				return fmt.Errorf("failed to read context pack: %w", err)
			}
			var pack core.ContextPack
			if err := json.Unmarshal(data, &pack); err != nil {
				return fmt.Errorf("failed to parse context pack: %w", err)
			}
			return open(func(ctx context.Context, store ports.Store) error {
				if _, err := store.GetUser(ctx, packUser); err != nil {
					return err
				}
				return store.SaveContextPack(ctx, packUser, &pack)
			})
		},
	}
	setContext.Flags().StringVar(&packUser, "user", "", "User id")
	setContext.Flags().StringVarP(&packFile, "file", "f", "", "Context pack JSON file")
	_ = setContext.MarkFlagRequired("user")
	_ = setContext.MarkFlagRequired("file")

	cmd.AddCommand(add, setContext)
	return cmd
}

func newBucketsCmd(open storeOpener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "buckets",
		Short: "Manage a user's routing buckets",
	}

	var userID, file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Replace a user's buckets with the contents of a YAML bucket file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := buckets.LoadFile(file)
			if err != nil {
				return err
			}
			decoded, errs := core.DecodeBuckets(raw)
			if len(errs) > 0 {
				return errors.Join(errs...)
			}
			return open(func(ctx context.Context, store ports.Store) error {
				if _, err := store.GetUser(ctx, userID); err != nil {
					return err
				}
				return store.SaveBuckets(ctx, userID, decoded)
			})
		},
	}
	importCmd.Flags().StringVar(&userID, "user", "", "User id")
	importCmd.Flags().StringVarP(&file, "file", "f", "", "YAML bucket file")
	_ = importCmd.MarkFlagRequired("user")
	_ = importCmd.MarkFlagRequired("file")

	var exportUser string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's buckets as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			return open(func(ctx context.Context, store ports.Store) error {
				raw, err := store.ListBuckets(ctx, exportUser)
				if err != nil {
					return err
				}
				decoded, errs := core.DecodeBuckets(raw)
				for _, err := range errs {
					fmt.Fprintf(cmd.ErrOrStderr(), "skipping invalid bucket: %v\n", err)
				}
				return buckets.Write(cmd.OutOrStdout(), decoded)
			})
		},
	}
	exportCmd.Flags().StringVar(&exportUser, "user", "", "User id")
	_ = exportCmd.MarkFlagRequired("user")

	cmd.AddCommand(importCmd, exportCmd)
	return cmd
}

// storeOpener runs fn against the store of a one-off administrative command
type storeOpener func(fn func(ctx context.Context, store ports.Store) error) error

// configuredStore opens the store named by the config file
func configuredStore(configFile *string) storeOpener {
	return func(fn func(ctx context.Context, store ports.Store) error) error {
		container, err := di.BuildContainer(*configFile)
		if err != nil {
			return fmt.Errorf("failed to build dependency container: %w", err)
		}
		return container.Invoke(func(logger *zap.Logger, store ports.Store) error {
			defer logger.Sync()
			defer store.Close()
			return fn(context.Background(), store)
		})
	}
}
