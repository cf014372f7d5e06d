// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"errors"
	"regexp"
	"strings"

	"github.com/wingedpig/relief/internal/process"
)

// CrashReason categorizes why a project process died.
type CrashReason string

const (
	CrashReasonNone      CrashReason = "none"
	CrashReasonPanic     CrashReason = "panic"
	CrashReasonFatal     CrashReason = "fatal"
	CrashReasonLogFatal  CrashReason = "log.fatal"
	CrashReasonTraceback CrashReason = "traceback"
	CrashReasonNode      CrashReason = "node"
	CrashReasonError     CrashReason = "error"
	CrashReasonOOM       CrashReason = "oom"
	CrashReasonSignal    CrashReason = "signal"
	CrashReasonUnknown   CrashReason = "unknown"
)

// CrashResult is the analysis of a process exit.
type CrashResult struct {
	Reason   CrashReason
	Exit     string // "exit status 2", "terminated by killed"
	Details  string
	Location string
}

// Summary returns a one-line description suitable for last_error.
func (r *CrashResult) Summary() string {
	var b strings.Builder
	b.WriteString(r.Exit)
	if r.Details != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		if r.Reason == CrashReasonPanic && !strings.HasPrefix(r.Details, "panic") {
			b.WriteString("panic: ")
		}
		b.WriteString(r.Details)
	}
	if r.Location != "" {
		b.WriteString(" at ")
		b.WriteString(r.Location)
	}
	if b.Len() == 0 {
		return "process exited unexpectedly"
	}
	return b.String()
}

// CrashAnalyzer scans the last output lines of a process for the reason it died.
type CrashAnalyzer struct {
	panicRe       *regexp.Regexp
	fatalRe       *regexp.Regexp
	logFatalRe    *regexp.Regexp
	oomRe         *regexp.Regexp
	tracebackRe   *regexp.Regexp
	pyExceptionRe *regexp.Regexp
	pyLocRe       *regexp.Regexp
	nodeErrorRe   *regexp.Regexp
	nodeLocRe     *regexp.Regexp
	goLocRe       *regexp.Regexp
	compilerLocRe *regexp.Regexp
	errorRe       *regexp.Regexp
}

// NewCrashAnalyzer creates a new crash analyzer.
func NewCrashAnalyzer() *CrashAnalyzer {
	return &CrashAnalyzer{
		panicRe:       regexp.MustCompile(`^panic:`),
		fatalRe:       regexp.MustCompile(`^fatal error:`),
		logFatalRe:    regexp.MustCompile(`FATAL[:\s]`),
		oomRe:         regexp.MustCompile(`(?i)(out of memory|cannot allocate memory|heap limit allocation failed)`),
		tracebackRe:   regexp.MustCompile(`^Traceback \(most recent call last\):`),
		pyExceptionRe: regexp.MustCompile(`^([A-Za-z_][\w.]*(Error|Exception|Interrupt|Exit)):?\s*(.*)$`),
		pyLocRe:       regexp.MustCompile(`^\s*File "([^"]+)", line (\d+)`),
		nodeErrorRe:   regexp.MustCompile(`^(?:Uncaught )?((?:[A-Z]\w*)?Error)(?: \[[A-Z_]+\])?: (.+)$`),
		nodeLocRe:     regexp.MustCompile(`^\s*at .*?\(?((?:/|file://)[^():\s]+):(\d+):\d+\)?$`),
		goLocRe:       regexp.MustCompile(`^\s*(/[^\s]+\.go):(\d+)`),
		compilerLocRe: regexp.MustCompile(`([^\s:]+\.go):(\d+):`),
		errorRe:       regexp.MustCompile(`(?i)^error:|: error:`),
	}
}

// Analyze examines the last output lines and the exit error of a process.
func (a *CrashAnalyzer) Analyze(lines []string, exitErr error) *CrashResult {
	result := &CrashResult{Reason: CrashReasonNone}
	if exitErr != nil {
		result.Exit = exitErr.Error()
		result.Reason = CrashReasonUnknown
	}

	lines = trimRelief(lines)

	switch {
	case a.detectPanic(lines, result):
	case a.detectOOM(lines, result):
	case a.detectFatal(lines, result):
	case a.detectTraceback(lines, result):
	case a.detectNode(lines, result):
	case a.detectLogFatal(lines, result):
	case a.detectError(lines, result):
	default:
		a.analyzeExit(exitErr, result)
		if result.Details == "" && exitErr != nil {
			result.Details = lastLines(lines, 3)
		}
	}
	return result
}

// trimRelief drops the lines the supervisor injected itself.
func trimRelief(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.HasPrefix(line, "[relief]") {
			out = append(out, line)
		}
	}
	return out
}

func (a *CrashAnalyzer) detectPanic(lines []string, result *CrashResult) bool {
	for i, line := range lines {
		if !a.panicRe.MatchString(line) {
			continue
		}
		result.Reason = CrashReasonPanic
		result.Details = strings.TrimPrefix(line, "panic: ")
		for _, next := range lines[i+1:] {
			if m := a.goLocRe.FindStringSubmatch(next); m != nil {
				result.Location = baseLocation(m[1], m[2])
				break
			}
		}
		return true
	}
	return false
}

func (a *CrashAnalyzer) detectOOM(lines []string, result *CrashResult) bool {
	for _, line := range lines {
		if a.oomRe.MatchString(line) {
			result.Reason = CrashReasonOOM
			result.Details = "out of memory"
			return true
		}
	}
	return false
}

func (a *CrashAnalyzer) detectFatal(lines []string, result *CrashResult) bool {
	for _, line := range lines {
		if a.fatalRe.MatchString(line) {
			result.Reason = CrashReasonFatal
			result.Details = strings.TrimPrefix(line, "fatal error: ")
			return true
		}
	}
	return false
}

// detectTraceback reports the exception line that closes a Python traceback,
// along with the innermost frame.
func (a *CrashAnalyzer) detectTraceback(lines []string, result *CrashResult) bool {
	start := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if a.tracebackRe.MatchString(lines[i]) {
			start = i
			break
		}
	}
	if start < 0 {
		return false
	}

	result.Reason = CrashReasonTraceback
	for _, line := range lines[start+1:] {
		if m := a.pyLocRe.FindStringSubmatch(line); m != nil {
			result.Location = baseLocation(m[1], m[2])
			continue
		}
		if m := a.pyExceptionRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			result.Details = strings.TrimSpace(line)
		}
	}
	if result.Details == "" {
		result.Details = "Python traceback"
	}
	return true
}

func (a *CrashAnalyzer) detectNode(lines []string, result *CrashResult) bool {
	for i, line := range lines {
		m := a.nodeErrorRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		result.Reason = CrashReasonNode
		result.Details = m[1] + ": " + m[2]
		for _, next := range lines[i+1:] {
			if loc := a.nodeLocRe.FindStringSubmatch(next); loc != nil {
				result.Location = baseLocation(strings.TrimPrefix(loc[1], "file://"), loc[2])
				break
			}
		}
		return true
	}
	return false
}

func (a *CrashAnalyzer) detectLogFatal(lines []string, result *CrashResult) bool {
	for _, line := range lines {
		loc := a.logFatalRe.FindStringIndex(line)
		if loc == nil {
			continue
		}
		result.Reason = CrashReasonLogFatal
		msg := strings.TrimPrefix(line[loc[0]+len("FATAL"):], ":")
		result.Details = strings.TrimSpace(msg)
		return true
	}
	return false
}

func (a *CrashAnalyzer) detectError(lines []string, result *CrashResult) bool {
	commonErrors := []string{
		"address already in use",
		"connection refused",
		"permission denied",
		"no such file or directory",
		"command not found",
	}

	for _, line := range lines {
		if a.errorRe.MatchString(line) {
			result.Reason = CrashReasonError
			result.Details = strings.TrimSpace(line)
			a.extractLocation(lines, result)
			return true
		}
		lower := strings.ToLower(line)
		for _, pattern := range commonErrors {
			if strings.Contains(lower, pattern) {
				result.Reason = CrashReasonError
				result.Details = strings.TrimSpace(line)
				return true
			}
		}
	}
	return false
}

func (a *CrashAnalyzer) extractLocation(lines []string, result *CrashResult) {
	for _, line := range lines {
		if m := a.compilerLocRe.FindStringSubmatch(line); m != nil {
			result.Location = m[1] + ":" + m[2]
			return
		}
	}
}

func (a *CrashAnalyzer) analyzeExit(exitErr error, result *CrashResult) {
	var ee *process.ExitError
	switch {
	case exitErr == nil:
		result.Reason = CrashReasonNone
	case errors.As(exitErr, &ee) && ee.Signal != "":
		result.Reason = CrashReasonSignal
	case errors.As(exitErr, &ee) && ee.Code >= 128:
		// Shells report a signaled child as 128+n.
		result.Reason = CrashReasonSignal
		result.Details = signalName(ee.Code - 128)
	case errors.As(exitErr, &ee):
		result.Reason = CrashReasonError
	}
}

func baseLocation(path, line string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1] + ":" + line
}

func lastLines(lines []string, n int) string {
	var last []string
	for i := len(lines) - 1; i >= 0 && len(last) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			last = append([]string{line}, last...)
		}
	}
	return strings.Join(last, " | ")
}

func signalName(num int) string {
	switch num {
	case 1:
		return "SIGHUP"
	case 2:
		return "SIGINT"
	case 3:
		return "SIGQUIT"
	case 6:
		return "SIGABRT"
	case 9:
		return "SIGKILL"
	case 11:
		return "SIGSEGV"
	case 15:
		return "SIGTERM"
	default:
		return "signal"
	}
}
