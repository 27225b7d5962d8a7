package procman

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// DefaultAllowedCommands is the spawn allow-list when none is configured.
func DefaultAllowedCommands() []string {
	return []string{
		"ps", "df", "du", "free", "uptime", "ls", "cat", "head", "tail",
		"grep", "wc", "date", "hostname", "uname", "echo", "sleep", "true",
	}
}

// Injection signatures checked against every argument. Matches are reported
// verbatim in the violation list.
var (
	shellMetaPattern = regexp.MustCompile("[;&|`$<>(){}\\\\]|\\n")
	traversalPattern = regexp.MustCompile(`\.\.[/\\]`)
	scriptPattern    = regexp.MustCompile(`(?i)<\s*script|javascript:|on\w+\s*=`)
	sqlPattern       = regexp.MustCompile(`(?i)('|--|\b(union|select|insert|update|delete|drop)\b.*\b(from|into|table|where)\b)`)
)

// safeBaseEnv is the minimal environment rebuilt for every child. Anything
// else must arrive as a sanitized override.
var safeBaseEnv = []string{"PATH", "HOME", "LANG", "TZ"}

// gate validates a spawn request and, when clean, returns the rebuilt
// environment. It never partially validates: all violations are collected
// and returned together.
func (m *Manager) gate(command string, args []string, overrides map[string]string) ([]string, *SecurityError) {
	var violations []string

	if !m.allowed(command) {
		violations = append(violations, fmt.Sprintf("command %q is not in the allow-list", command))
	}
	for i, arg := range args {
		violations = append(violations, checkArg(i, arg)...)
	}
	env, envViolations := rebuildEnv(overrides)
	violations = append(violations, envViolations...)

	if len(violations) > 0 {
		return nil, &SecurityError{Violations: violations}
	}
	return env, nil
}

func (m *Manager) allowed(command string) bool {
	// Only bare command names pass; paths would sidestep the list.
	if strings.ContainsAny(command, "/\\") {
		return false
	}
	for _, c := range m.cfg.AllowedCommands {
		if c == command {
			return true
		}
	}
	return false
}

func checkArg(i int, arg string) []string {
	var out []string
	if shellMetaPattern.MatchString(arg) {
		out = append(out, fmt.Sprintf("arg[%d] contains shell metacharacters: %q", i, arg))
	}
	if traversalPattern.MatchString(arg) {
		out = append(out, fmt.Sprintf("arg[%d] contains path traversal: %q", i, arg))
	}
	if scriptPattern.MatchString(arg) {
		out = append(out, fmt.Sprintf("arg[%d] matches a script injection signature: %q", i, arg))
	}
	if sqlPattern.MatchString(arg) {
		out = append(out, fmt.Sprintf("arg[%d] matches a SQL injection signature: %q", i, arg))
	}
	return out
}

// rebuildEnv starts from the minimal safe base (values taken from the
// current process) and layers sanitized overrides on top.
func rebuildEnv(overrides map[string]string) ([]string, []string) {
	var violations []string
	env := make([]string, 0, len(safeBaseEnv)+len(overrides))
	for _, key := range safeBaseEnv {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, key+"="+v)
		}
	}
	for k, v := range overrides {
		if !validEnvKey(k) {
			violations = append(violations, fmt.Sprintf("env key %q is not a valid identifier", k))
			continue
		}
		if shellMetaPattern.MatchString(v) {
			violations = append(violations, fmt.Sprintf("env %s value contains shell metacharacters", k))
			continue
		}
		env = append(env, k+"="+v)
	}
	return env, violations
}

func validEnvKey(k string) bool {
	if k == "" {
		return false
	}
	for i, r := range k {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
