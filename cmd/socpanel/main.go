package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ahmethakanbesel/socpanel/internal/config"
	"github.com/ahmethakanbesel/socpanel/internal/socapi"
)

const defaultConfigFile = "socpanel.yaml"

var rootCmd = &cobra.Command{
	Use:   "socpanel",
	Short: "Survey platform export client",
	Long: `socpanel talks to the admin API of an online survey platform.
It exports poll data in batches (submit, wait, download, acknowledge),
searches polls and reports quotas and completed interviews.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SOCPANEL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName(strings.TrimSuffix(defaultConfigFile, ".yaml"))
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && viper.GetString("config") != "" {
			fmt.Fprintln(os.Stderr, "error: read config:", err)
			os.Exit(1)
		}
	}
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default ./"+defaultConfigFile+")")
	flags.Bool("json", false, "output JSON")
	flags.BoolP("verbose", "v", false, "debug logging")
	flags.Bool("log-json", false, "log as JSON")
	flags.String("platform", config.DefaultPlatform, "platform identifier")
	flags.String("base-url", "", "platform base URL (overrides --platform)")
	flags.String("login", "", "account login")
	flags.String("password", "", "account password")
	flags.String("token", "", "existing session token")

	for flag, key := range map[string]string{
		"config":   "config",
		"json":     "json",
		"verbose":  "verbose",
		"log-json": "log_json",
		"platform": "platform",
		"base-url": "base_url",
		"login":    "login",
		"password": "password",
		"token":    "token",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func registerCommands() {
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(exportOneCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(metaCmd())
	rootCmd.AddCommand(quotaCmd())
	rootCmd.AddCommand(completesCmd())
	rootCmd.AddCommand(columnsCmd())
	rootCmd.AddCommand(targetCmd())
	rootCmd.AddCommand(linksCmd())
	rootCmd.AddCommand(configCmd())
}

func setupLogging() {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if viper.GetBool("log_json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func loadConfig() (config.Config, error) {
	return config.Load(viper.GetViper())
}

func newClient() (*socapi.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return socapi.New(cfg), nil
}
