package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ironsheep/slide-tools-mcp/internal/config"
	"github.com/ironsheep/slide-tools-mcp/internal/logging"
	"github.com/ironsheep/slide-tools-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("slide-tools-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("slide-tools-mcp - MCP server for whole-slide and scientific images")
			fmt.Println()
			fmt.Println("Usage: slide-tools-mcp [--config path]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --config path    YAML configuration file")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Printf("  %s=debug    Override the log level\n", logging.EnvLevel)
			fmt.Printf("  %s=path        Configuration file\n", config.EnvConfig)
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it as a stdio server in your MCP client.")
			return
		}
	}

	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// stdout is reserved for the protocol; logs go to stderr
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Debug("starting", "version", Version, "built", BuildTime, "commit", GitCommit)

	server.Version = Version
	srv := server.New(cfg, logger)
	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
