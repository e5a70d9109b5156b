package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/mailmatch/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize mailmatch configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure mailmatch and generates a .mailmatch.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
