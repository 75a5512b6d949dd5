package main

import (
	"github.com/spf13/cobra"
)

var (
	logLevel    string
	lspDebounce string
)

var rootCmd = &cobra.Command{
	Use:   "xeno-kerneld",
	Short: "Editor kernel daemon",
	Long: `xeno-kerneld runs the editor kernel's runtime pump, syntax manager,
LSP document sync, broker routing, and shared-state services as a
standalone process.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, notice, warning, error)")
	rootCmd.PersistentFlags().StringVar(&lspDebounce, "lsp-debounce", "80ms", "LSP change-notification debounce duration")
	rootCmd.AddCommand(serveCmd)
}
