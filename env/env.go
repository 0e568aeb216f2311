// Package env resolves command configuration from flags, the process
// environment and optional dotenv files.
package env

import (
	"log"
	"os"
	"strings"

	"github.com/agentuity/go-cachekit/logger"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// EnvLine is a single KEY=value pair from a dotenv file.
type EnvLine struct {
	Key string `json:"key" yaml:"key"`
	Val string `json:"val" yaml:"val"`
}

// ParseEnvFile parses a dotenv file. A missing file yields no lines.
func ParseEnvFile(filename string) ([]EnvLine, error) {
	buf, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return []EnvLine{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read env file %s", filename)
	}
	return ParseEnvBuffer(buf), nil
}

func dequote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// ProcessEnvLine splits a KEY=value line. An optional leading "export" is
// ignored and the value is dequoted.
func ProcessEnvLine(line string) EnvLine {
	line = strings.TrimPrefix(strings.TrimSpace(line), "export ")
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return EnvLine{Key: strings.TrimSpace(line)}
	}
	return EnvLine{Key: strings.TrimSpace(key), Val: dequote(strings.TrimSpace(val))}
}

// interpolate expands ${NAME} and ${NAME:-default} against the lines seen so
// far. ${env:NAME} reads the process environment. Unresolved references
// without a default are kept verbatim.
func interpolate(val string, seen map[string]string) string {
	if !strings.Contains(val, "${") {
		return val
	}
	return os.Expand(val, func(ref string) string {
		name, def, hasDefault := strings.Cut(ref, ":-")
		var (
			v  string
			ok bool
		)
		if osName, isEnv := strings.CutPrefix(name, "env:"); isEnv {
			v, ok = os.LookupEnv(osName)
		} else {
			v, ok = seen[name]
		}
		switch {
		case ok && v != "":
			return v
		case hasDefault:
			return def
		default:
			return "${" + ref + "}"
		}
	})
}

// ParseEnvBuffer parses dotenv content. Blank lines and # comments are
// skipped; values may reference earlier keys.
func ParseEnvBuffer(buf []byte) []EnvLine {
	envs := make([]EnvLine, 0)
	seen := make(map[string]string)
	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		el := ProcessEnvLine(line)
		if el.Key == "" {
			continue
		}
		el.Val = interpolate(el.Val, seen)
		seen[el.Key] = el.Val
		envs = append(envs, el)
	}
	return envs
}

// LoadEnvFile sets every variable from filename that is not already present
// in the process environment, so real environment values win over the file.
func LoadEnvFile(filename string) error {
	envs, err := ParseEnvFile(filename)
	if err != nil {
		return err
	}
	for _, el := range envs {
		if _, ok := os.LookupEnv(el.Key); ok {
			continue
		}
		if err := os.Setenv(el.Key, el.Val); err != nil {
			return errors.Wrapf(err, "set %s", el.Key)
		}
	}
	return nil
}

// FlagOrEnv will try and get a flag from the cobra.Command and if not found, look it up in the environment
// and fallback to defaultValue if non found
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok && val != "" {
		return val
	}
	return defaultValue
}

// LogLevel resolves --log-level, then CACHEKIT_LOG_LEVEL, defaulting to warn.
func LogLevel(cmd *cobra.Command) logger.LogLevel {
	level, ok := logger.ParseLevel(FlagOrEnv(cmd, "log-level", logger.EnvLogLevel, "warn"))
	if !ok {
		return logger.LevelWarn
	}
	return level
}

// NewLogger returns a logger writing to stderr at the level from LogLevel.
// --log-format=json (or CACHEKIT_LOG_FORMAT) selects the JSON logger.
func NewLogger(cmd *cobra.Command) logger.Logger {
	log.SetFlags(0)
	level := LogLevel(cmd)
	if strings.EqualFold(FlagOrEnv(cmd, "log-format", "CACHEKIT_LOG_FORMAT", "console"), "json") {
		return logger.NewJSONLogger(level)
	}
	return logger.NewConsoleLogger(level)
}
