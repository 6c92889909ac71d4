package envutil

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

func lookup(name string, log *logger.Logger) (string, bool) {
	v, ok := os.LookupEnv(name)
	v = strings.TrimSpace(v)
	if !ok || v == "" {
		if log != nil {
			log.Debug("Environment variable not found, using default", "env_var", name)
		}
		return "", false
	}
	return v, true
}

func String(name, def string, log *logger.Logger) string {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	return v
}

func Int(name string, def int, log *logger.Logger) int {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("Environment variable could not be parsed as int, using default", "env_var", name, "provided", v, "default", def)
		}
		return def
	}
	return i
}

// Millis reads an integer number of milliseconds.
func Millis(name string, def time.Duration, log *logger.Logger) time.Duration {
	ms := Int(name, int(def/time.Millisecond), log)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func Bool(name string, def bool, log *logger.Logger) bool {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	if log != nil {
		log.Warn("Environment variable could not be parsed as bool, using default", "env_var", name, "provided", v, "default", def)
	}
	return def
}

// List splits a comma separated value and drops empty items.
func List(name string, def []string, log *logger.Logger) []string {
	v, ok := lookup(name, log)
	if !ok {
		return def
	}
	out := make([]string, 0, 4)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
