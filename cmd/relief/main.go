// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// relief runs local development projects behind local domains.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/wingedpig/relief/internal/app"
	"github.com/wingedpig/relief/internal/config"
)

var (
	version = "0.9.0"
)

func main() {
	// Check for subcommands before flag parsing
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var (
		configPath  string
		host        string
		port        int
		showVersion bool
		check       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (default: auto-detect)")
	flag.StringVar(&configPath, "c", "", "Path to config file (short)")
	flag.StringVar(&host, "host", "", "HTTP server host (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP server port (overrides config)")
	flag.BoolVar(&check, "check", false, "Validate the config file and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.BoolVar(&showVersion, "v", false, "Show version (short)")
	flag.Parse()

	if showVersion {
		fmt.Printf("relief %s\n", version)
		os.Exit(0)
	}

	// Find config file if not specified
	if configPath == "" {
		found, err := config.NewLoader().FindConfig()
		if err != nil {
			if check {
				log.Fatalf("Error: %v", err)
			}
			log.Printf("No config file found, running with defaults (create one with: relief init)")
		}
		configPath = found
	}

	if check {
		if err := checkConfig(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", configPath, err)
			os.Exit(1)
		}
		fmt.Printf("%s: ok\n", configPath)
		os.Exit(0)
	}

	if configPath != "" {
		log.Printf("Using config: %s", configPath)
	}

	application, err := app.New(app.Options{
		ConfigPath: configPath,
		Host:       host,
		Port:       port,
		Version:    version,
	})
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}

	if err := application.Run(context.Background()); err != nil {
		log.Fatalf("App error: %v", err)
	}
}

func checkConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	_, err = config.NewLoader().Check(data)
	return err
}
