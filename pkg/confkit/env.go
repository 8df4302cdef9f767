package confkit

import (
	"os"
	"strconv"
	"strings"
)

// EnvBool reads a boolean switch from the environment. set is false when the
// variable is unset, empty or not a recognised boolean.
func EnvBool(key string) (value, set bool) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "":
		return false, false
	case "on", "yes", "y":
		return true, true
	case "off", "no", "n":
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// EnvInt reads an integer override; ok is false when unset or malformed.
func EnvInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
