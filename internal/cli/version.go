package cli

import (
    "fmt"
    "runtime"

    "github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags "-X ...cli.version=".
var version = "dev"

var versionCmd = &cobra.Command{
    Use:   "version",
    Short: "Print version information",
    Run: func(cmd *cobra.Command, args []string) {
        fmt.Printf("assignd %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
    },
}
