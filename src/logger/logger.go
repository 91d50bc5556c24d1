// Package logger defines the logging interface used throughout the pipeline.
// Implementations exist for console output and silent operation (TUI and MCP
// modes).
package logger

import (
	"fmt"
	"os"
)

// Logger is passed explicitly through constructors; there is no package-level
// default so every component's output can be redirected independently.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// ConsoleLogger writes human-readable logs to stdout/stderr.
type ConsoleLogger struct {
	// Verbose enables Debug output.
	Verbose bool
}

func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{}
}

func (c *ConsoleLogger) Info(msg string, args ...interface{}) {
	fmt.Printf("[INFO] "+msg+"\n", args...)
}

func (c *ConsoleLogger) Warn(msg string, args ...interface{}) {
	fmt.Printf("[WARN] "+msg+"\n", args...)
}

func (c *ConsoleLogger) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "[ERROR] "+msg+"\n", args...)
}

func (c *ConsoleLogger) Debug(msg string, args ...interface{}) {
	if c.Verbose {
		fmt.Printf("[DEBUG] "+msg+"\n", args...)
	}
}

// SilentLogger discards all log messages. Used when running under the TUI or
// as an MCP server, where stray output corrupts the protocol stream.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...interface{})  {}
func (s *SilentLogger) Warn(msg string, args ...interface{})  {}
func (s *SilentLogger) Error(msg string, args ...interface{}) {}
func (s *SilentLogger) Debug(msg string, args ...interface{}) {}
