package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalambet/relaybot/internal/config"
)

// --- send ---

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Post a telemetry reading to the relay",
	Long: `Post a telemetry reading to the relay, the same way the robot does.

Examples:
  relaybot send --left 120 --right 118 --state forward
  relaybot send --bot r2 --left 0 --right 0 --state idle --server http://10.0.0.5:5000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bot, _ := cmd.Flags().GetString("bot")
		left, _ := cmd.Flags().GetInt("left")
		right, _ := cmd.Flags().GetInt("right")
		state, _ := cmd.Flags().GetString("state")

		reading := map[string]any{
			"left":  left,
			"right": right,
			"state": state,
		}
		if bot != "" {
			reading["bot"] = bot
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/relaybot-data", reading)
		if err != nil {
			return err
		}

		var result struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Reading accepted (left=%d right=%d state=%q)", left, right, state)
		return nil
	},
}

func init() {
	sendCmd.Flags().String("bot", "", "reporting robot id")
	sendCmd.Flags().Int("left", 0, "left motor speed")
	sendCmd.Flags().Int("right", 0, "right motor speed")
	sendCmd.Flags().String("state", "", "robot state label")
	_ = sendCmd.MarkFlagRequired("left")
	_ = sendCmd.MarkFlagRequired("right")
	_ = sendCmd.MarkFlagRequired("state")
}

// --- latest ---

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the most recent reading",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/latest")
		if err != nil {
			return err
		}

		var latest map[string]any
		if err := decodeJSON(resp, &latest); err != nil {
			return err
		}

		if status, ok := latest["status"].(string); ok && len(latest) == 1 {
			printWarning("%s", status)
			return nil
		}

		out, err := json.MarshalIndent(latest, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting reading: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "  %s %s\n", colorize(colorBold, "file:"), config.ConfigFilePath())
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a configuration value in the config file.

Tokens are never written to disk; set them through the environment.

Valid keys: %v`, config.ValidKeys()),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
