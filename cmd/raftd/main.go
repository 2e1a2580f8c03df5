// Command raftd runs one raft node and exposes its client API, in the
// package-level-rootCmd-plus-Execute shape of the teacher's
// cmd/warren/main.go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dataDir string
var logLevel string

var rootCmd = &cobra.Command{
	Use:     "raftd",
	Short:   "Run and administer a raftcore cluster node",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "directory holding this node's bbolt store")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "raftd: %v\n", err)
		os.Exit(1)
	}
}
