// ABOUTME: Entry point for the atrium panel host
// ABOUTME: Runs panel definitions against a simulated content runtime

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/fatih/color"

	"github.com/atriumhq/atrium/internal/config"
	"github.com/atriumhq/atrium/internal/host"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
        _        _
   __ _| |_ _ __(_)_   _ _ __ ___
  / _' | __| '__| | | | | '_ ' _ \
 | (_| | |_| |  | | |_| | | | | | |
  \__,_|\__|_|  |_|\__,_|_| |_| |_|
`

// getConfigPath returns the path to the host config file.
// Priority: ATRIUM_CONFIG env var > XDG config dir/atrium/atrium.yaml
func getConfigPath() string {
	if envPath := os.Getenv("ATRIUM_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(xdg.ConfigHome, "atrium", "atrium.yaml")
}

// getManifestDir returns the default panel manifest directory.
func getManifestDir() string {
	return filepath.Join(xdg.ConfigHome, "atrium", "panels.d")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: atrium-host <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve [panel-id ...]   Start the host and open the named panels")
		fmt.Println("  demo                   Run a scripted messaging walkthrough and exit")
		fmt.Println("  init                   Create a new config file interactively")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "demo":
		err = runDemo(ctx)
	case "init":
		err = runInit()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to built-in defaults when
// nothing exists at the default location. An explicit ATRIUM_CONFIG pointing
// at a missing file is an error.
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if os.Getenv("ATRIUM_CONFIG") != "" {
			return nil, false, fmt.Errorf("config file not found: %s", path)
		}
		return config.Default(), false, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

func runServe(ctx context.Context, openIDs []string) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)

	green.Print("    ▶ ")
	if fromFile {
		fmt.Printf("Config:    %s\n", configPath)
	} else {
		fmt.Printf("Config:    built-in defaults (%s not found)\n", configPath)
	}
	if cfg.Panels.ManifestDir != "" {
		green.Print("    ▶ ")
		fmt.Printf("Manifests: %s\n", cfg.Panels.ManifestDir)
	}

	// Create the host with simulated surfaces standing in for a real
	// embedder. A desktop shell would inject its own factory here.
	factory := newSimFactory(logger)
	h, err := host.New(host.Params{
		Config:  cfg,
		Factory: factory,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("creating host: %w", err)
	}

	known := h.Registry().KnownDefinitions()
	green.Print("    ▶ ")
	if len(known) > 0 {
		fmt.Printf("Panels:    %s\n", strings.Join(known, ", "))
	} else {
		fmt.Printf("Panels:    ")
		gray.Println("none registered")
	}

	fmt.Println()

	logger.Info("starting atrium-host",
		"config", configPath,
		"version", version,
	)

	ids := openIDs
	if len(ids) == 0 {
		ids = known
	}
	if len(ids) == 0 {
		logger.Warn("no panel definitions registered",
			"hint", "run 'atrium-host init' or point panels.manifest_dir at a manifest directory")
	}
	for _, id := range ids {
		p, err := h.Open(ctx, id)
		if err != nil {
			return fmt.Errorf("opening panel %q: %w", id, err)
		}
		factory.Connect(p.ID(), h.BridgeFor(p))
	}

	return h.Run(ctx)
}

// runInit walks through creating a config file, mirroring what a first run
// needs: where panels are defined and how the host logs.
func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("atrium-host configuration setup")
	fmt.Println("===============================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultManifestDir := getManifestDir()

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Panel Configuration ---")
	manifestDir := prompt(reader, "Panel manifest directory", defaultManifestDir)

	fmt.Println("\n--- Bus Configuration ---")
	requestTimeout := prompt(reader, "Request timeout", "5s")

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# atrium-host configuration\n")
	cfg.WriteString("# Generated by atrium-host init\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))
	cfg.WriteString("\n")

	cfg.WriteString("bus:\n")
	cfg.WriteString(fmt.Sprintf("  request_timeout: \"%s\"\n", requestTimeout))
	cfg.WriteString("\n")

	cfg.WriteString("panels:\n")
	cfg.WriteString(fmt.Sprintf("  manifest_dir: \"%s\"\n", manifestDir))
	cfg.WriteString("\n")
	cfg.WriteString("  # Panels can also be defined inline:\n")
	cfg.WriteString("  # definitions:\n")
	cfg.WriteString("  #   - id: console\n")
	cfg.WriteString("  #     title: Console\n")
	cfg.WriteString("  #     width: 800\n")
	cfg.WriteString("  #     height: 600\n")
	cfg.WriteString("  #     content: app://panels/console\n")

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if err := os.MkdirAll(manifestDir, 0755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Manifest directory: %s\n", manifestDir)
	fmt.Println("\nTo start the host:")
	fmt.Printf("  atrium-host serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
