// Package cli defines the assignd command tree.  The binary has two jobs:
// running the HTTP trigger service (serve) and running a single assignment
// pass from a shell or a scheduled job (assign).
package cli

import (
    "os"

    "github.com/hashicorp/go-hclog"
    "github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
    Use:           "assignd",
    Short:         "Table assignment coordination service",
    Long:          "assignd drives restaurant bookings from \"needs a table\" to \"confirmed\": it plans candidate table sets with pluggable strategies, holds the winner, and confirms it under a distributed lock, a circuit breaker and per-restaurant rate limits.",
    SilenceUsage:  true,
    SilenceErrors: true,
}

// Execute runs the command tree and returns the exit code.
func Execute() int {
    rootCmd.AddCommand(serveCmd, assignCmd, versionCmd)
    if err := rootCmd.Execute(); err != nil {
        hclog.Default().Error("command failed", "error", err)
        return 1
    }
    return 0
}

// newLogger builds the process logger.  LOG_LEVEL controls verbosity and
// defaults to info.
func newLogger() hclog.Logger {
    return hclog.New(&hclog.LoggerOptions{
        Name:  "assignd",
        Level: hclog.LevelFromString(envLevel()),
    })
}

func envLevel() string {
    if v := os.Getenv("LOG_LEVEL"); v != "" {
        return v
    }
    return "info"
}
