// Package commands implements the sealed command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/zoobzio/sealed"
	"github.com/zoobzio/sealed/internal/config"
)

var (
	configPath string
	showStats  bool

	newAlgorithm = loadAlgorithm
)

// Execute runs the root command with os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sealed",
		Short:         "Encrypt and decrypt line-oriented values within one cipher session",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (mode, key, iv)")
	root.PersistentFlags().BoolVar(&showStats, "stats", false, "print session transform stats to stderr")

	root.AddCommand(encryptCmd(), decryptCmd(), modesCmd())
	return root
}

func loadAlgorithm() (sealed.Algorithm, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return sealed.NewAlgorithm(cfg)
}
