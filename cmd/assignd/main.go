package main // entry point for the assignd binary

import (
    "os"

    "github.com/joho/godotenv"

    "github.com/restobook/assignd/internal/cli"
)

func main() {
    // Load a local .env when present; real deployments set the
    // environment directly and have no such file.
    _ = godotenv.Load()
    os.Exit(cli.Execute())
}
