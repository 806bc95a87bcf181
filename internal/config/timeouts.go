package config

import "time"

// HTTP server timeouts. The write timeout must cover the longest turn plus
// response serialization.
const (
	HTTPRead       = 10 * time.Second
	HTTPReadHeader = 5 * time.Second
	HTTPIdle       = 120 * time.Second
	httpWriteSlack = 5 * time.Second
)

// HTTPWrite returns the server write timeout for the configured turn timeout.
func (c *Config) HTTPWrite() time.Duration {
	return c.TurnTimeout + httpWriteSlack
}
