package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pinleague/pipeline/internal/config"
)

var (
	dbPath     string
	configPath string
	aliasPath  string
	verbose    bool

	cfg *config.Config
	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "pinstats",
	Short: "Pinball league stats pipeline",
	Long:  "Load pinball league match records and compute score percentiles, player machine stats, and team pick tendencies.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetOutput(os.Stderr)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		} else {
			log.SetLevel(logrus.InfoLevel)
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		// Flags win over config file values.
		if dbPath == "" {
			dbPath = cfg.DBPath
		}
		if aliasPath == "" {
			aliasPath = cfg.AliasFile
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to SQLite database (default ~/.pinstats/league.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&aliasPath, "aliases", "", "path to machine alias JSON file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(percentilesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(picksCmd)
	rootCmd.AddCommand(totalsCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(playersCmd)
	rootCmd.AddCommand(ratingsCmd)
	rootCmd.AddCommand(dropCmd)
}
