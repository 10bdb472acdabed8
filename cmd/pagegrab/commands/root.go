// Package commands implements the CLI commands for pagegrab.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagegrab/pagegrab/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "pagegrab",
	Short: "Archive authenticated web pages to local folders",
	Long: `Pagegrab drives a visible browser to a target page, handles login
(restoring saved cookies, or waiting while you log in manually), then
archives the page: text, headlines, images, metadata, links, and
screenshots, each page into its own folder.

Examples:
  # Archive a single page
  pagegrab grab -u "https://example.com/article"

  # Prompt for URLs interactively
  pagegrab grab

  # Longer login window, no screenshots
  pagegrab grab -u "https://instagram.com/someone" \
      --login-timeout 120s --no-screenshots`,
	Version: version.String(),
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.pagegrab.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".pagegrab")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("PAGEGRAB")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
