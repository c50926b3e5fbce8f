// Command h2d serves a directory of static files over HTTP/2, in
// cleartext or TLS, following the same minimal CLI surface the proxy
// this server grew out of exposes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iridium2/h2d/cli"
	"github.com/iridium2/h2d/internal/config"
	"github.com/iridium2/h2d/internal/logging"
	"github.com/iridium2/h2d/internal/server"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v":
			fmt.Printf("h2d version %s\n", server.Version)
			return
		case "--help", "-h":
			printUsage()
			return
		case "validate":
			runValidate()
			return
		case "cert":
			runCert(os.Args[2:])
			return
		default:
			fmt.Println("Unknown argument:", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}

	runServe()
}

func printUsage() {
	fmt.Println("Usage: h2d [options]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  --version, -v          Show version information")
	fmt.Println("  --help, -h             Show this help message")
	fmt.Println("  validate               Validate the configuration file")
	fmt.Println("  cert generate <host>   Generate a self-signed TLS certificate for the specified host")
	fmt.Println("  cert obtain <host>     Obtain a TLS certificate from Let's Encrypt for the specified host")
}

func runValidate() {
	path := config.DefaultPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Println("Configuration file does not exist:", path)
		return
	}
	if _, err := config.Load(path); err != nil {
		fmt.Println("Configuration is invalid:", err)
		os.Exit(1)
	}
	fmt.Println("Configuration is valid:", path)
}

func runCert(args []string) {
	if len(args) < 2 {
		fmt.Println("Please specify 'generate' or 'obtain'. Example: h2d cert generate example.com")
		os.Exit(1)
	}
	switch args[0] {
	case "generate":
		if _, _, err := cli.GenerateSelfSignedCert(args[1]); err != nil {
			fmt.Println("Failed to generate self-signed certificate:", err)
			os.Exit(1)
		}
	case "obtain":
		if _, _, err := cli.GenerateACMECert(args[1]); err != nil {
			fmt.Println("Failed to obtain TLS certificate:", err)
			os.Exit(1)
		}
	default:
		fmt.Println("Unknown cert subcommand:", args[0])
		os.Exit(1)
	}
}

func runServe() {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		fmt.Println("Failed to load configuration:", err)
		os.Exit(1)
	}

	logger, err := logging.New("", cfg.Server.Verbose)
	if err != nil {
		fmt.Println("Failed to start logger:", err)
		os.Exit(1)
	}
	defer logger.Close()

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Errorf("failed to start server: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info(fmt.Sprintf("h2d %s listening on %s:%d", server.Version, cfg.Server.Address, cfg.Server.Port))
	if err := srv.Run(ctx); err != nil {
		logger.Errorf("server stopped: %v", err)
		os.Exit(1)
	}
}
