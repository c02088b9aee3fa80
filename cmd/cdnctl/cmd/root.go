package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/config"
)

var configPath string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cdnctl",
	Short: color.GreenString("cdnctl - CDN endpoint pool operations tool"),
	Long: color.BlueString(`cdnctl inspects the CDN endpoint pool subsystem from the outside:
it can dump the persisted per-host penalty scores and query the endpoint
directory service, printing candidates ranked by their effective selection
weight.`),
	Run: func(cmd *cobra.Command, args []string) {
		color.Green("cdnctl - CDN endpoint pool operations tool")
		color.Cyan("Use 'penalties' to dump persisted penalty scores, or 'endpoints' to query the directory service.")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/.config.yaml", "path to the YAML config file")
}

// loadConfig reads the config file referenced by the --config flag.
func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfigFromYAML(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config from %s: %w", configPath, err)
	}
	return cfg, nil
}
