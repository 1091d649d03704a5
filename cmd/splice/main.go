// Command splice builds block programs from scripts or saved projects and
// prints the generated source.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"tlog.app/go/tlog"

	"github.com/chazu/splice/pkg/config"
)

var (
	configPath string
	cfg        = config.Default()

	rootCmd = &cobra.Command{
		Use:   "splice",
		Short: "Build block programs and generate C-like source from them",
		Long: `splice evaluates .splice scripts and saved project files, validates
the resulting block graph and prints the source it generates.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err = config.Load(configPath)
			return err
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SPLICE_CONFIG"), "settings file (yaml)")

	rootCmd.AddCommand(generateCmd, scriptCmd, validateCmd, fmtCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		tlog.Printw("splice", "err", err)
		os.Exit(1)
	}
}
