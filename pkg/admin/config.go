package admin

import "time"

// Config controls the optional observability HTTP surface. The core
// storage/index packages never read this; nothing here participates in
// on-disk format or page layout.
type Config struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string

	// StatsInterval is how often /_ws/stats pushes a fresh snapshot.
	StatsInterval time.Duration
}

// DefaultConfig returns sane defaults for local/demo use.
func DefaultConfig() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           8090,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		AllowedOrigins: []string{"*"},
		StatsInterval:  5 * time.Second,
	}
}
