package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/finbot-backend/internal/config"
	"github.com/Ananth-NQI/finbot-backend/internal/services"
)

const version = "1.0.0"

var envDir string

var rootCmd = &cobra.Command{
	Use:           "finbot",
	Short:         "FinBot WhatsApp backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and WhatsApp sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(envDir)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		return serve(cmd.Context(), cfg, logger)
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <message>",
	Short: "Show how a chat message would be classified",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parsed := services.Classify(strings.Join(args, " "))

		out := map[string]interface{}{
			"intent":      parsed.Intent,
			"description": parsed.Description,
			"category":    parsed.CategoryName,
		}
		if parsed.HasAmount() {
			out["amount"] = parsed.Amount.StringFixed(2)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envDir, "env-dir", ".", "directory containing an optional .env file")
	rootCmd.AddCommand(serveCmd, parseCmd)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
