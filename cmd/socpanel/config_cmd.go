package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/socpanel/internal/config"
)

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage the config file"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [FILE]",
		Short: "Write a config file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			body, err := config.DefaultYAML()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, body, 0o600); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintln(os.Stdout, "wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Password != "" {
				cfg.Password = "***"
			}
			if cfg.Token != "" {
				cfg.Token = "***"
			}
			return printJSON(cfg)
		},
	}
}
