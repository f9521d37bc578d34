package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"animatic/internal/credstore"
	"animatic/internal/logging"
)

func newKeyCommand(configFlag *string) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API credential",
	}
	keyCmd.AddCommand(newKeySetCommand(configFlag))
	keyCmd.AddCommand(newKeyGetCommand(configFlag))
	keyCmd.AddCommand(newKeyClearCommand(configFlag))
	return keyCmd
}

func openCredStore(configFlag *string) (*credstore.Store, error) {
	cfg, err := loadConfig(*configFlag)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return credstore.New(cfg.DataDir, logging.New(cfg.LogLevel)), nil
}

func newKeySetCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Store the API credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return fmt.Errorf("key must not be empty")
			}
			store, err := openCredStore(configFlag)
			if err != nil {
				return err
			}
			if err := store.Save(key); err != nil {
				return fmt.Errorf("store credential: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credential stored")
			return nil
		},
	}
}

func newKeyGetCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the stored API credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCredStore(configFlag)
			if err != nil {
				return err
			}
			key, err := store.Load()
			if err != nil {
				return fmt.Errorf("read credential: %w", err)
			}
			if key == "" {
				return fmt.Errorf("no credential stored")
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newKeyClearCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored API credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCredStore(configFlag)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return fmt.Errorf("clear credential: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credential cleared")
			return nil
		},
	}
}
