// vfsmux is a demo and diagnostic tool for the dispatcher: it assembles an
// in-process descriptor space from the bundled backends and drives it.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
