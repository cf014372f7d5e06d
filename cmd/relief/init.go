// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const initUsage = `Usage: relief init [options]

Create a relief.hjson configuration file.

The command asks a few questions and writes a fully commented file. Press
Enter to accept the defaults shown in [brackets].

Options:
  -o, -output PATH   Where to write the file (default: ./relief.hjson)
  -h, -help          Show this help message

After running init:
  1. Review and edit relief.hjson as needed
  2. Run: relief
  3. Register a project: relief-ctl projects add ~/src/myapp`

// initAnswers are the values collected by the init prompts.
type initAnswers struct {
	Port         int
	DomainSuffix string
	Backend      string
	ProjectRoot  string
	Services     []initService
}

type initService struct {
	Name    string
	Command string
	Port    int
}

// runInit handles the "relief init" command.
func runInit(args []string) error {
	initFlags := flag.NewFlagSet("init", flag.ExitOnError)
	showHelp := initFlags.Bool("help", false, "Show help for init command")
	initFlags.BoolVar(showHelp, "h", false, "Show help for init command")
	output := initFlags.String("output", "relief.hjson", "Where to write the config file")
	initFlags.StringVar(output, "o", "relief.hjson", "Where to write the config file (short)")
	initFlags.Parse(args)

	if *showHelp {
		fmt.Println(initUsage)
		return nil
	}

	if _, err := os.Stat(*output); err == nil {
		return fmt.Errorf("%s already exists; remove it first or choose another path with -output", *output)
	}

	fmt.Println("Relief Configuration Setup")
	fmt.Println("==========================")
	fmt.Println()

	answers := askInit(bufio.NewReader(os.Stdin), os.Stdout)

	if dir := filepath.Dir(*output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(*output, []byte(generateConfig(answers)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Println()
	fmt.Printf("Created %s\n", *output)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Review and edit %s as needed\n", *output)
	fmt.Println("  2. Run: relief")
	fmt.Println("  3. Register a project: relief-ctl projects add <path>")
	fmt.Println()
	return nil
}

func askInit(reader *bufio.Reader, out io.Writer) initAnswers {
	a := initAnswers{}

	port, err := strconv.Atoi(prompt(reader, out, "API port", "7420"))
	if err != nil || port <= 0 || port > 65535 {
		port = 7420
	}
	a.Port = port

	a.DomainSuffix = strings.TrimPrefix(prompt(reader, out, "Domain suffix for projects", "local"), ".")

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Projects are served through a reverse proxy: traefik (external binary)")
	fmt.Fprintln(out, "or builtin (in-process, no install needed).")
	a.Backend = strings.ToLower(prompt(reader, out, "Proxy backend (traefik/builtin)", "traefik"))
	if a.Backend != "builtin" {
		a.Backend = "traefik"
	}

	defaultRoot := ""
	if home, err := os.UserHomeDir(); err == nil {
		defaultRoot = filepath.Join(home, "src")
	}
	a.ProjectRoot = prompt(reader, out, "Directory holding your projects (or empty)", defaultRoot)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Managed services are backing processes such as databases.")
	for {
		if strings.ToLower(prompt(reader, out, "Add a service? (y/n)", "n")) != "y" {
			break
		}
		svc := initService{}
		svc.Name = prompt(reader, out, "  Service name", "postgres")
		svc.Command = prompt(reader, out, "  Command to run", "postgres -D /usr/local/var/postgres")
		svc.Port, _ = strconv.Atoi(prompt(reader, out, "  Port it listens on (or empty)", ""))
		a.Services = append(a.Services, svc)
		fmt.Fprintln(out)
	}
	return a
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

// escapeHJSONValue escapes a string for safe inclusion in an HJSON double-quoted value.
func escapeHJSONValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

func generateConfig(a initAnswers) string {
	var sb strings.Builder

	sb.WriteString(`{
  // =============================================================================
  // Relief Configuration
  // =============================================================================
  //
  // This is an HJSON file (JSON with comments and relaxed syntax).
  // Durations are Go duration strings: "500ms", "30s", "10m".
  // Relative paths resolve against the directory of this file.
  // Relief reloads this file when it changes.

  // ---------------------------------------------------------------------------
  // HTTP control surface
  // ---------------------------------------------------------------------------
  server: {
`)
	fmt.Fprintf(&sb, "    port: %d\n", a.Port)
	sb.WriteString(`    host: "127.0.0.1"
    // Serve HTTPS by setting both:
    // tls_cert: "~/.config/relief/cert.pem"
    // tls_key: "~/.config/relief/key.pem"
  }

  // Where registered projects are stored.
  registry: {
    path: "projects.json"
  }

  // Projects are reachable at <name>.<domain_suffix>.
`)
	fmt.Fprintf(&sb, "  domain_suffix: \"%s\"\n", escapeHJSONValue(a.DomainSuffix))

	sb.WriteString(`
  // Relative paths given to "projects add" resolve against the first root.
`)
	if a.ProjectRoot != "" {
		fmt.Fprintf(&sb, "  project_roots: [\"%s\"]\n", escapeHJSONValue(a.ProjectRoot))
	} else {
		sb.WriteString("  project_roots: []\n")
	}

	sb.WriteString(`
  // ---------------------------------------------------------------------------
  // Process supervision
  // ---------------------------------------------------------------------------
  supervisor: {
    stop_timeout: "10s"   // SIGTERM grace before SIGKILL
    ready_timeout: "30s"  // A project must listen on its port within this
    ready_grace: "500ms"  // and stay alive at least this long
    log_capacity: 1000    // Log lines kept per project
    workers: 8            // Concurrent start/stop/git/script operations
    tty: false            // Run dev servers under a pseudo-terminal
  }

  // ---------------------------------------------------------------------------
  // Reverse proxy
  // ---------------------------------------------------------------------------
  proxy: {
`)
	fmt.Fprintf(&sb, "    backend: \"%s\"\n", a.Backend)
	sb.WriteString(`    traefik_binary: "traefik"
    config_path: "traefik-dynamic.yaml"
    listen: "127.0.0.1"   // builtin backend only
    http_port: 80
    https_port: 443
    tls_tailscale: false  // builtin backend only
    // Keep /etc/hosts entries for project domains (needs write access).
    manage_hosts: false
    hosts_file: "/etc/hosts"
  }

  // ---------------------------------------------------------------------------
  // Managed services
  // ---------------------------------------------------------------------------
  // A service either runs a long-lived command that relief supervises, or
  // delegates to start_command/stop_command (for example brew services).
  // Projects name services in their dependencies with managed: true.
  services: [
`)
	for _, svc := range a.Services {
		sb.WriteString("    {\n")
		fmt.Fprintf(&sb, "      name: \"%s\"\n", escapeHJSONValue(svc.Name))
		fmt.Fprintf(&sb, "      command: \"%s\"\n", escapeHJSONValue(svc.Command))
		if svc.Port > 0 {
			fmt.Fprintf(&sb, "      port: %d\n", svc.Port)
		}
		sb.WriteString("    }\n")
	}
	if len(a.Services) == 0 {
		sb.WriteString(`    // {
    //   name: "redis"
    //   start_command: "brew services start redis"
    //   stop_command: "brew services stop redis"
    //   install_command: "brew install redis"
    //   port: 6379
    // }
`)
	}

	sb.WriteString(`  ]

  // ---------------------------------------------------------------------------
  // Scripts
  // ---------------------------------------------------------------------------
  // Commands run to completion from the API or relief-ctl scripts run.
  scripts: [
    // {
    //   name: "reset-db"
    //   command: "dropdb app && createdb app"
    //   timeout: "2m"
    // }
  ]
  scripts_timeout: "10m"

  git: {
    timeout: "60s"
  }

  events: {
    history: {
      max_events: 10000
      max_age: "1h"
    }
  }

  watch: {
    debounce: "250ms"
    disabled: false
  }
}
`)
	return sb.String()
}
