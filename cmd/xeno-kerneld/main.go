// Command xeno-kerneld runs the editor kernel as a standalone daemon
// process: the runtime pump, syntax manager, LSP sync, broker, and
// shared-state services, fronted by a small cobra CLI.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
