package main

import (
	"context"
	"os"

	"github.com/ironsheep/slide-tools-mcp/internal/cli"
)

// Version is set by ldflags during build
var Version = "dev"

func main() {
	os.Exit(cli.Execute(context.Background(), Version, os.Args[1:]))
}
