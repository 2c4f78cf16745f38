package common

import "testing"

// A process may construct several servers (the test suites do), and each
// Serve() runs InitLoggers. Installing the dragonboat logger factory twice
// panics, so repeated initialization must be safe.
func TestInitLoggersRepeatable(t *testing.T) {
	config := ServerConfig{LogLevel: "info"}

	InitLoggers(config)
	InitLoggers(config)

	config.LogLevel = "debug"
	InitLoggers(config)
}
