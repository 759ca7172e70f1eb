package logging

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// LogLevel is the severity of a message.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel converts a case-insensitive level name.
func ParseLevel(levelStr string) (LogLevel, error) {
	upper := strings.ToUpper(strings.TrimSpace(levelStr))
	for level, name := range levelNames {
		if name == upper {
			return level, nil
		}
	}
	return -1, fmt.Errorf("invalid level: %s (must be DEBUG, INFO, WARN, ERROR, or FATAL)", levelStr)
}

// LogField is a structured key/value pair.
type LogField struct {
	Key   string
	Value interface{}
}

// Field creates a LogField.
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

var (
	packageLogLevels = map[string]LogLevel{}
	packageLogMutex  sync.RWMutex
)

// SetPackageLogLevels replaces all per-package overrides.
// Keys are exact logger names or "prefix.*" patterns.
func SetPackageLogLevels(levels map[string]string) error {
	parsed := make(map[string]LogLevel, len(levels))
	for pkg, levelStr := range levels {
		level, err := ParseLevel(levelStr)
		if err != nil {
			return fmt.Errorf("invalid log level for package %q: %w", pkg, err)
		}
		parsed[pkg] = level
	}

	packageLogMutex.Lock()
	packageLogLevels = parsed
	packageLogMutex.Unlock()
	return nil
}

// GetPackageLogLevel returns the override for name, or -1 when none applies.
// An exact match wins over patterns; among patterns the longest wins.
func GetPackageLogLevel(name string) LogLevel {
	packageLogMutex.RLock()
	defer packageLogMutex.RUnlock()

	if level, ok := packageLogLevels[name]; ok {
		return level
	}

	var matches []string
	for pattern := range packageLogLevels {
		if matchesPattern(name, pattern) {
			matches = append(matches, pattern)
		}
	}
	if len(matches) == 0 {
		return -1
	}
	sort.Slice(matches, func(i, j int) bool { return len(matches[i]) > len(matches[j]) })
	return packageLogLevels[matches[0]]
}

func matchesPattern(name, pattern string) bool {
	if name == pattern {
		return true
	}
	prefix, ok := strings.CutSuffix(pattern, ".*")
	return ok && strings.HasPrefix(name, prefix+".")
}

// EnvPrefix marks per-package level variables, e.g. LOG_LEVEL_TESTS_E2E=debug.
const EnvPrefix = "LOG_LEVEL_"

// PackageLevelsFromEnv collects per-package levels from LOG_LEVEL_* variables.
// Values are not validated.
func PackageLevelsFromEnv() map[string]string {
	levels := make(map[string]string)
	for _, pair := range os.Environ() {
		key, level, ok := strings.Cut(pair, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		levels[EnvKeyToPackageName(key)] = level
	}
	return levels
}

// EnvKeyToPackageName converts LOG_LEVEL_TESTS_E2E -> tests.e2e
func EnvKeyToPackageName(envKey string) string {
	name := strings.TrimPrefix(envKey, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(name, "_", "."))
}
