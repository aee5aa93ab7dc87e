package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run schema migrations and exit",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

// runMigrate solo confirma: initApp ya corrió AutoMigrate al inicializar.
func runMigrate(_ *cobra.Command, _ []string) {
	logrus.Info("[MIGRATION] AutoMigrate ran during initialization, nothing left to do")
	StopApp()
}
