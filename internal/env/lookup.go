package env

import "time"

// GetOrDefault retrieves an environment variable with a default value
func GetOrDefault(key, defaultValue string) string {
	if value, ok := Get(key); ok {
		return value
	}
	return defaultValue
}

// GetDuration parses key as a time.Duration. The bool result reports whether
// the variable was set; err is non-nil when it was set but unparsable.
func GetDuration(key string, defaultValue time.Duration) (time.Duration, bool, error) {
	value, ok := Get(key)
	if !ok {
		return defaultValue, false, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, true, err
	}
	return d, true, nil
}
