package client

import "time"

// Config is the plain options struct every Client built from a
// ClientContext is configured with, the same way the teacher's own
// client facade takes a Config rather than a loader pointed at a file or
// environment.
type Config struct {
	UserAgent          string
	ClientID           string
	ConnectTimeout     time.Duration
	InsecureSkipVerify bool
}

// DefaultConfig returns the Config NewClientContext uses when none is
// supplied explicitly.
func DefaultConfig() Config {
	return Config{
		UserAgent:      "hioload-ws-client/1.0",
		ConnectTimeout: 10 * time.Second,
	}
}
