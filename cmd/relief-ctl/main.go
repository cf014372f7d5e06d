// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// relief-ctl is a command-line tool for controlling a running Relief instance.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/wingedpig/relief/cmd/relief-ctl/logview"
	"github.com/wingedpig/relief/pkg/client"
)

var (
	version    = "0.9.0"
	apiURL     = "http://127.0.0.1:7420"
	apiVersion = ""
	jsonOutput = false

	// API client instance
	apiClient *client.Client
)

func main() {
	if env := os.Getenv("RELIEF_API"); env != "" {
		apiURL = strings.TrimSuffix(env, "/")
	}

	args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var opts []client.Option
	if apiVersion != "" {
		opts = append(opts, client.WithVersion(apiVersion))
	}
	apiClient = client.New(apiURL, opts...)

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := args[0]
	args = args[1:]

	switch cmd {
	case "projects", "project", "p":
		err = cmdProjects(ctx, args)
	case "start", "stop", "restart":
		// Shorthand for projects start|stop|restart
		err = cmdProjects(ctx, append([]string{cmd}, args...))
	case "logs":
		err = cmdLogs(ctx, args)
	case "status":
		err = cmdStatus(ctx)
	case "watch":
		err = cmdWatch(ctx)
	case "port":
		err = cmdPort(ctx, args)
	case "kill":
		err = cmdKill(ctx, args)
	case "git":
		err = cmdGit(ctx, args)
	case "services", "service":
		err = cmdServices(ctx, args)
	case "scripts", "script":
		err = cmdScripts(ctx, args)
	case "proxy":
		err = cmdProxy(ctx, args)
	case "config":
		err = cmdConfig(ctx, args)
	case "events":
		err = cmdEvents(ctx, args)
	case "version", "-v", "--version":
		err = cmdVersion(ctx)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		reportError(err)
		os.Exit(1)
	}
}

// parseGlobalFlags removes -json and -api-version from args.
func parseGlobalFlags(in []string) ([]string, error) {
	var out []string
	for i := 0; i < len(in); i++ {
		switch arg := in[i]; {
		case arg == "-json":
			jsonOutput = true
		case arg == "-api-version":
			if i+1 >= len(in) {
				return nil, fmt.Errorf("-api-version requires a value")
			}
			i++
			apiVersion = in[i]
		case strings.HasPrefix(arg, "-api-version="):
			apiVersion = strings.TrimPrefix(arg, "-api-version=")
		default:
			out = append(out, arg)
		}
	}
	return out, nil
}

func reportError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return
	}
	if conflict, ok := apiErr.PortConflict(); ok {
		holder := conflict.Command
		if holder == "" {
			holder = "unknown command"
		}
		fmt.Fprintf(os.Stderr, "Port %d is held by pid %d (%s).\n", conflict.Port, conflict.PID, holder)
		fmt.Fprintf(os.Stderr, "Free it with: relief-ctl kill %d\n", conflict.PID)
		return
	}
	if unsatisfied, ok := apiErr.Details["unsatisfied"].([]interface{}); ok {
		for _, name := range unsatisfied {
			fmt.Fprintf(os.Stderr, "  missing dependency: %v\n", name)
		}
	}
	if summary, ok := apiErr.Details["summary"].(string); ok && summary != "" {
		fmt.Fprintf(os.Stderr, "Last output:\n%s\n", summary)
	}
	if suggestion, ok := apiErr.Details["suggestion"].(string); ok && suggestion != "" {
		fmt.Fprintf(os.Stderr, "Did you mean %q?\n", suggestion)
	}
}

func printUsage() {
	fmt.Println(`relief-ctl - Control a running Relief instance

Usage:
  relief-ctl [-json] [-api-version DATE] <command> [arguments]

Global Flags:
  -json                    Output in JSON format
  -api-version DATE        Pin the API version (default: ` + client.LatestVersion + `)

Environment:
  RELIEF_API               Base URL of the Relief API (default: http://127.0.0.1:7420)

Commands:
  projects                 List registered projects
  projects add <path>      Register the project at path
  projects remove <id>     Unregister a stopped project
  projects info <id>       Show one project
  start <id>               Start a project and wait until it is ready
  stop <id>                Stop a project
  restart <id>             Restart a project

  logs <id> [options]      Show captured output of a project
    -n N                   Number of lines (default: 100)
    -f                     Stream new output
    -since <time>          Only output since (e.g. 30m, 2h, 2026-01-15T10:00:00Z)
    -level <levels>        Filter by level (error, warn,error, info+)
    -grep <pattern>        Filter by regex pattern
    -format <name>         Output as plain, json, jsonl, csv or raw

  status                   Show a summary of all projects
  watch                    Refresh the summary at the server's poll interval
  port <port>              Show which process holds a port
  kill <pid>               Terminate a process

  git info <id>            Show working copy state
  git sync <id>            Fast-forward the current branch
  git checkout <id> <br>   Switch branches

  services                 List managed services
  services start <name>    Start a service
  services stop <name>     Stop a service
  services install <name>  Run a service's install command

  scripts                  List scripts
  scripts run <name>       Run a script and print its output

  proxy                    List proxy routes
  proxy restart            Restart the reverse proxy

  config                   Print the configuration file
  config save [file]       Replace the configuration (reads stdin without file)
  config reload            Re-read the configuration file

  events [options]         Show recent events
    -n N                   Number of events (default: 50)
    -type <pattern>        Filter by type (e.g. project.*)
    -project <id>          Filter by project
    -f                     Stream new events

  version                  Show client and server versions
  help                     Show this help`)
}

// printJSON outputs any value as formatted JSON
func printJSON(v interface{}) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func requireArg(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: relief-ctl %s", usage)
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func cmdProjects(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	var (
		p   *client.Project
		err error
	)
	switch sub {
	case "list", "ls":
		projects, err := apiClient.Projects.List(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(projects)
			return nil
		}
		printProjects(os.Stdout, projects)
		return nil
	case "info", "get":
		if err := requireArg(args, 1, "projects info <id>"); err != nil {
			return err
		}
		p, err = apiClient.Projects.Get(ctx, args[0])
	case "add":
		if err := requireArg(args, 1, "projects add <path>"); err != nil {
			return err
		}
		p, err = apiClient.Projects.Add(ctx, args[0])
	case "remove", "rm":
		if err := requireArg(args, 1, "projects remove <id>"); err != nil {
			return err
		}
		p, err = apiClient.Projects.Remove(ctx, args[0])
	case "start":
		if err := requireArg(args, 1, "start <id>"); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Starting %s...\n", args[0])
		p, err = apiClient.Projects.Start(ctx, args[0])
	case "stop":
		if err := requireArg(args, 1, "stop <id>"); err != nil {
			return err
		}
		p, err = apiClient.Projects.Stop(ctx, args[0])
	case "restart":
		if err := requireArg(args, 1, "restart <id>"); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Restarting %s...\n", args[0])
		p, err = apiClient.Projects.Restart(ctx, args[0])
	default:
		return fmt.Errorf("unknown projects subcommand: %s", sub)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(p)
		return nil
	}
	printProject(os.Stdout, p)
	return nil
}

func printProjects(w io.Writer, projects []client.Project) {
	fmt.Fprintf(w, "%-16s %-20s %-9s %-6s %-8s %s\n", "ID", "DOMAIN", "STATUS", "PORT", "PID", "PATH")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	for _, p := range projects {
		pid := "-"
		if p.PID > 0 {
			pid = strconv.Itoa(p.PID)
		}
		fmt.Fprintf(w, "%-16s %-20s %-9s %-6d %-8s %s\n", p.ID, p.Domain, p.Status, p.Port, pid, p.Path)
	}
}

func printProject(w io.Writer, p *client.Project) {
	fmt.Fprintf(w, "ID:      %s\n", p.ID)
	fmt.Fprintf(w, "Name:    %s\n", p.Name)
	fmt.Fprintf(w, "Path:    %s\n", p.Path)
	fmt.Fprintf(w, "Domain:  %s\n", p.Domain)
	fmt.Fprintf(w, "Type:    %s\n", p.Type)
	fmt.Fprintf(w, "Status:  %s\n", p.Status)
	fmt.Fprintf(w, "Port:    %d\n", p.Port)
	if p.PID > 0 {
		fmt.Fprintf(w, "PID:     %d\n", p.PID)
	}
	if p.Image != "" {
		fmt.Fprintf(w, "Image:   %s\n", p.Image)
	}
	if p.LastError != "" {
		fmt.Fprintf(w, "Error:   %s\n", p.LastError)
	}
	if len(p.Dependencies) > 0 {
		fmt.Fprintln(w, "Dependencies:")
		for _, d := range p.Dependencies {
			mark := "ok"
			if !d.Satisfied {
				mark = "MISSING"
			}
			fmt.Fprintf(w, "  %-14s %-10s %-8s %s\n", d.Name, dash(d.RequiredVersion), mark, d.Message)
		}
	}
}

// logsConfig holds parsed command-line options for the logs command
type logsConfig struct {
	project string
	lines   int
	follow  bool
	since   string
	level   string
	grep    string
	format  string
}

func parseLogsArgs(args []string) (*logsConfig, error) {
	cfg := &logsConfig{lines: 100}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-n" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("invalid value for -n: %s", args[i])
			}
			cfg.lines = n
		case arg == "-f":
			cfg.follow = true
		case arg == "-since" && i+1 < len(args):
			i++
			cfg.since = args[i]
		case arg == "-level" && i+1 < len(args):
			i++
			cfg.level = args[i]
		case arg == "-grep" && i+1 < len(args):
			i++
			cfg.grep = args[i]
		case arg == "-format" && i+1 < len(args):
			i++
			cfg.format = args[i]
		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown option: %s", arg)
		case cfg.project == "":
			cfg.project = arg
		default:
			return nil, fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	if cfg.project == "" {
		return nil, fmt.Errorf("usage: relief-ctl logs <id> [options]")
	}
	return cfg, nil
}

func cmdLogs(ctx context.Context, args []string) error {
	cfg, err := parseLogsArgs(args)
	if err != nil {
		return err
	}

	opts := logview.FilterOptions{MinLevel: logview.LevelUnset, Grep: cfg.grep}
	if cfg.since != "" {
		if opts.Since, err = logview.ParseSince(cfg.since, time.Now()); err != nil {
			return err
		}
	}
	if opts.Levels, opts.MinLevel, err = logview.ParseLevelFilter(cfg.level); err != nil {
		return err
	}
	filter, err := logview.NewFilter(opts)
	if err != nil {
		return err
	}

	format, err := logview.ParseFormat(cfg.format)
	if err != nil {
		return err
	}
	if jsonOutput && cfg.format == "" {
		format = logview.FormatJSON
	}
	out := logview.NewFormatter(os.Stdout, format)

	if cfg.follow {
		return apiClient.Logs.Follow(ctx, cfg.project, cfg.lines, func(e client.LogEntry) error {
			if !filter.Match(&e) {
				return nil
			}
			return out.WriteEntry(&e)
		})
	}

	entries, err := apiClient.Logs.Tail(ctx, cfg.project, cfg.lines)
	if err != nil {
		return err
	}
	return out.WriteEntries(filter.Apply(entries))
}

func cmdStatus(ctx context.Context) error {
	status, _, err := apiClient.System.Status(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(status)
		return nil
	}
	printStatus(os.Stdout, status)
	return nil
}

func printStatus(w io.Writer, s *client.AppStatus) {
	proxy := "down"
	if s.TraefikRunning {
		proxy = "up"
	}
	fmt.Fprintf(w, "Projects: %d  Running: %d  Stopped: %d  Errors: %d  Proxy: %s\n",
		s.TotalProjects, s.Running, s.Stopped, s.Errors, proxy)
}

// cmdWatch prints the summary whenever it changes, polling at the
// interval the server asks for.
func cmdWatch(ctx context.Context) error {
	var last client.AppStatus
	first := true
	for {
		status, interval, err := apiClient.System.Status(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if first || *status != last {
			first = false
			last = *status
			if jsonOutput {
				data, _ := json.Marshal(status)
				fmt.Println(string(data))
			} else {
				fmt.Printf("%s  ", time.Now().Format("15:04:05"))
				printStatus(os.Stdout, status)
			}
		}
		if interval <= 0 {
			interval = 15 * time.Second
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func cmdPort(ctx context.Context, args []string) error {
	if err := requireArg(args, 1, "port <port>"); err != nil {
		return err
	}
	port, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid port: %s", args[0])
	}
	info, err := apiClient.System.Port(ctx, port)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(info)
		return nil
	}
	if !info.InUse {
		fmt.Printf("Port %d is free\n", info.Port)
		return nil
	}
	fmt.Printf("Port %d is held by pid %d (%s)\n", info.Port, info.PID, dash(info.Command))
	return nil
}

func cmdKill(ctx context.Context, args []string) error {
	if err := requireArg(args, 1, "kill <pid>"); err != nil {
		return err
	}
	pid, err := strconv.Atoi(args[0])
	if err != nil || pid <= 0 {
		return fmt.Errorf("invalid pid: %s", args[0])
	}
	if err := apiClient.System.Kill(ctx, pid); err != nil {
		return err
	}
	fmt.Printf("Killed %d\n", pid)
	return nil
}

func cmdGit(ctx context.Context, args []string) error {
	if err := requireArg(args, 2, "git info|sync|checkout <id> [branch]"); err != nil {
		return err
	}
	sub, id := args[0], args[1]

	switch sub {
	case "info", "status":
		info, err := apiClient.Git.Info(ctx, id)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(info)
			return nil
		}
		printGitInfo(os.Stdout, info)
	case "sync", "pull":
		result, err := apiClient.Git.Sync(ctx, id)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(result)
			return nil
		}
		if !result.Updated {
			fmt.Printf("%s is up to date with %s\n", result.Branch, result.Upstream)
			return nil
		}
		fmt.Printf("%s: %s..%s (%d commits from %s)\n", result.Branch, short(result.Before), short(result.After), result.Pulled, result.Upstream)
	case "checkout", "switch":
		if err := requireArg(args, 3, "git checkout <id> <branch>"); err != nil {
			return err
		}
		info, err := apiClient.Git.Checkout(ctx, id, args[2])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(info)
			return nil
		}
		fmt.Printf("Switched to %s\n", info.CurrentBranch)
	default:
		return fmt.Errorf("unknown git subcommand: %s", sub)
	}
	return nil
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func printGitInfo(w io.Writer, info *client.GitInfo) {
	if !info.IsRepository {
		fmt.Fprintln(w, "Not a git repository")
		return
	}
	branch := info.CurrentBranch
	if info.Detached {
		branch += " (detached)"
	}
	fmt.Fprintf(w, "Branch:   %s\n", branch)
	if info.Upstream != "" {
		fmt.Fprintf(w, "Upstream: %s (ahead %d, behind %d)\n", info.Upstream, info.Ahead, info.Behind)
	}
	fmt.Fprintf(w, "Remote:   %s\n", dash(info.RemoteURL))
	fmt.Fprintf(w, "Commit:   %s\n", dash(info.LastCommit))
	fmt.Fprintf(w, "Changes:  %v\n", info.HasChanges)
	if len(info.AvailableBranches) > 0 {
		fmt.Fprintf(w, "Branches: %s\n", strings.Join(info.AvailableBranches, ", "))
	}
}

func cmdServices(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	if sub == "list" || sub == "ls" {
		services, err := apiClient.Services.List(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(services)
			return nil
		}
		fmt.Printf("%-16s %-9s %-8s %-6s %s\n", "SERVICE", "STATE", "PID", "PORT", "ERROR")
		fmt.Println(strings.Repeat("-", 70))
		for _, svc := range services {
			pid := "-"
			if svc.Status.PID > 0 {
				pid = strconv.Itoa(svc.Status.PID)
			}
			port := "-"
			if svc.Port > 0 {
				port = strconv.Itoa(svc.Port)
			}
			errMsg := svc.Status.Error
			if len(errMsg) > 30 {
				errMsg = errMsg[:30] + "..."
			}
			fmt.Printf("%-16s %-9s %-8s %-6s %s\n", svc.Name, svc.Status.State, pid, port, errMsg)
		}
		return nil
	}

	if err := requireArg(args, 1, "services "+sub+" <name>"); err != nil {
		return err
	}
	var (
		svc *client.Service
		err error
	)
	switch sub {
	case "start":
		svc, err = apiClient.Services.Start(ctx, args[0])
	case "stop":
		svc, err = apiClient.Services.Stop(ctx, args[0])
	case "install":
		fmt.Fprintf(os.Stderr, "Installing %s...\n", args[0])
		svc, err = apiClient.Services.Install(ctx, args[0])
	default:
		return fmt.Errorf("unknown services subcommand: %s", sub)
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(svc)
		return nil
	}
	fmt.Printf("%s: %s\n", svc.Name, svc.Status.State)
	return nil
}

func cmdScripts(ctx context.Context, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	switch sub {
	case "list", "ls":
		scripts, err := apiClient.Scripts.List(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(scripts)
			return nil
		}
		fmt.Printf("%-20s %-8s %s\n", "SCRIPT", "TIMEOUT", "DESCRIPTION")
		fmt.Println(strings.Repeat("-", 70))
		for _, s := range scripts {
			desc := s.Description
			if desc == "" {
				desc = s.Command
			}
			fmt.Printf("%-20s %-8s %s\n", s.Name, s.Timeout, desc)
		}
		return nil
	case "run":
		if err := requireArg(args, 1, "scripts run <name>"); err != nil {
			return err
		}
		result, err := apiClient.Scripts.Run(ctx, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(result)
		} else {
			fmt.Print(result.Output)
			if result.Truncated {
				fmt.Fprintln(os.Stderr, "(output truncated)")
			}
			fmt.Fprintf(os.Stderr, "%s finished in %s with exit code %d\n", result.Name, result.Duration.Round(time.Millisecond), result.ExitCode)
		}
		if !result.Success {
			return fmt.Errorf("script %s failed: %s", result.Name, dash(result.Error))
		}
		return nil
	default:
		return fmt.Errorf("unknown scripts subcommand: %s", sub)
	}
}

func cmdProxy(ctx context.Context, args []string) error {
	var (
		routes []client.Route
		err    error
	)
	switch {
	case len(args) == 0 || args[0] == "routes":
		routes, err = apiClient.System.Routes(ctx)
	case args[0] == "restart":
		routes, err = apiClient.System.RestartProxy(ctx)
	default:
		return fmt.Errorf("unknown proxy subcommand: %s", args[0])
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(routes)
		return nil
	}
	fmt.Printf("%-28s %-24s %s\n", "DOMAIN", "UPSTREAM", "PROJECT")
	fmt.Println(strings.Repeat("-", 70))
	for _, r := range routes {
		fmt.Printf("%-28s %-24s %s\n", r.Domain, r.Upstream, r.Project)
	}
	return nil
}

func cmdConfig(ctx context.Context, args []string) error {
	sub := "get"
	if len(args) > 0 {
		sub, args = args[0], args[1:]
	}

	var (
		applied *client.ConfigApplied
		err     error
	)
	switch sub {
	case "get", "show":
		text, err := apiClient.Config.Get(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			printJSON(text)
			return nil
		}
		fmt.Print(text.Text)
		return nil
	case "save":
		var data []byte
		if len(args) > 0 && args[0] != "-" {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		applied, err = apiClient.Config.Save(ctx, string(data))
	case "reload":
		applied, err = apiClient.Config.Reload(ctx)
	default:
		return fmt.Errorf("unknown config subcommand: %s", sub)
	}
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(applied)
		return nil
	}
	fmt.Printf("Applied %s\n", applied.Path)
	return nil
}

func cmdEvents(ctx context.Context, args []string) error {
	opts := &client.ListOptions{Limit: 50}
	follow := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-n" && i+1 < len(args):
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid value for -n: %s", args[i])
			}
			opts.Limit = n
		case arg == "-type" && i+1 < len(args):
			i++
			opts.Types = append(opts.Types, args[i])
		case arg == "-project" && i+1 < len(args):
			i++
			opts.Project = args[i]
		case arg == "-f":
			follow = true
		default:
			return fmt.Errorf("unknown option: %s", arg)
		}
	}

	if follow {
		pattern := "*"
		if len(opts.Types) > 0 {
			pattern = opts.Types[0]
		}
		return apiClient.Events.Stream(ctx, pattern, func(e client.Event) error {
			if opts.Project != "" && e.Project != opts.Project {
				return nil
			}
			printEvent(os.Stdout, e)
			return nil
		})
	}

	events, err := apiClient.Events.List(ctx, opts)
	if err != nil {
		return err
	}
	if jsonOutput {
		printJSON(events)
		return nil
	}
	// Oldest first reads naturally in a terminal
	for i := len(events) - 1; i >= 0; i-- {
		printEvent(os.Stdout, events[i])
	}
	return nil
}

func printEvent(w io.Writer, e client.Event) {
	if jsonOutput {
		data, _ := json.Marshal(e)
		fmt.Fprintln(w, string(data))
		return
	}
	payload := ""
	if len(e.Payload) > 0 {
		data, _ := json.Marshal(e.Payload)
		payload = string(data)
	}
	fmt.Fprintf(w, "%s %-22s %-14s %s\n", e.Timestamp.Local().Format("15:04:05"), e.Type, dash(e.Project), payload)
}

func cmdVersion(ctx context.Context) error {
	fmt.Printf("relief-ctl %s (API %s)\n", version, apiClient.Version())
	sv, err := apiClient.System.ServerVersion(ctx)
	if err != nil {
		fmt.Printf("server: unreachable at %s\n", apiClient.BaseURL())
		return nil
	}
	fmt.Printf("relief %s (API %s)\n", sv.Version, sv.APIVersion)
	return nil
}
