/*
Copyright © 2025 cargo-appraiser contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package logging

import (
	"fmt"
	"os"
	"sync"

	"github.com/pterm/pterm"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// init routes all pterm printers to stderr. Stdout carries the LSP stream
// and must never receive log output.
func init() {
	pterm.SetDefaultOutput(os.Stderr)
}

// LogLevel represents the severity level of a log message
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
)

// LoggerMode determines how logs are output
type LoggerMode int

const (
	// ModeCLI uses pterm for colorized stderr output
	ModeCLI LoggerMode = iota
	// ModeLSP uses LSP protocol messages (window/logMessage, window/showMessage)
	ModeLSP
)

// Logger provides centralized logging that adapts to CLI vs LSP contexts.
// Before the client has sent initialize, messages go to stderr via pterm;
// once an LSP context is attached they flow through window/logMessage so the
// editor's output channel shows them.
type Logger struct {
	mu           sync.RWMutex
	mode         LoggerMode
	lspContext   *glsp.Context
	debugEnabled bool
}

var globalLogger = &Logger{mode: ModeCLI}

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	return globalLogger
}

// SetLSPContext attaches the LSP context and switches to LSP mode
func (l *Logger) SetLSPContext(context *glsp.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lspContext = context
	l.mode = ModeLSP
}

// SetDebugEnabled controls whether debug messages are shown
func (l *Logger) SetDebugEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugEnabled = enabled
}

// IsDebugEnabled returns whether debug logging is enabled
func (l *Logger) IsDebugEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.debugEnabled
}

// Debug logs a debug message (only shown if debug is enabled)
func (l *Logger) Debug(format string, args ...any) {
	l.log(LogLevelDebug, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...any) {
	l.log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...any) {
	l.log(LogLevelWarning, format, args...)
}

// Error logs an error message (goes to log output, not popup)
func (l *Logger) Error(format string, args ...any) {
	l.log(LogLevelError, format, args...)
}

// Notify sends a user-facing message as a popup (window/showMessage).
// Used sparingly, e.g. when cargo-audit is missing from PATH.
func (l *Logger) Notify(format string, args ...any) {
	l.mu.RLock()
	mode := l.mode
	lspContext := l.lspContext
	l.mu.RUnlock()

	message := fmt.Sprintf(format, args...)

	switch mode {
	case ModeCLI:
		pterm.Info.Println(message)
	case ModeLSP:
		if lspContext != nil {
			go lspContext.Notify(protocol.ServerWindowShowMessage, &protocol.ShowMessageParams{
				Type:    protocol.MessageTypeInfo,
				Message: message,
			})
		} else {
			fmt.Fprintf(os.Stderr, "[NOTIFY] %s\n", message)
		}
	}
}

func (l *Logger) log(level LogLevel, format string, args ...any) {
	l.mu.RLock()
	mode := l.mode
	lspContext := l.lspContext
	debugEnabled := l.debugEnabled
	l.mu.RUnlock()

	if level == LogLevelDebug && !debugEnabled {
		return
	}

	message := fmt.Sprintf(format, args...)

	switch mode {
	case ModeCLI:
		switch level {
		case LogLevelDebug:
			pterm.Debug.Println(message)
		case LogLevelInfo:
			pterm.Info.Println(message)
		case LogLevelWarning:
			pterm.Warning.Println(message)
		case LogLevelError:
			pterm.Error.Println(message)
		}
	case ModeLSP:
		if lspContext == nil {
			fmt.Fprintf(os.Stderr, "[%d] %s\n", level, message)
			return
		}
		var messageType protocol.MessageType
		switch level {
		case LogLevelDebug:
			messageType = protocol.MessageTypeLog
		case LogLevelInfo:
			messageType = protocol.MessageTypeInfo
		case LogLevelWarning:
			messageType = protocol.MessageTypeWarning
		case LogLevelError:
			messageType = protocol.MessageTypeError
		}
		// Notify from a goroutine so logging never blocks a handler on the
		// client connection.
		go lspContext.Notify(protocol.ServerWindowLogMessage, &protocol.LogMessageParams{
			Type:    messageType,
			Message: message,
		})
	}
}

// Package-level convenience functions operating on the global logger

// SetLSPContext sets the LSP context on the global logger
func SetLSPContext(context *glsp.Context) {
	globalLogger.SetLSPContext(context)
}

// SetDebugEnabled controls debug logging on the global logger
func SetDebugEnabled(enabled bool) {
	globalLogger.SetDebugEnabled(enabled)
}

// IsDebugEnabled reports whether the global logger shows debug messages
func IsDebugEnabled() bool {
	return globalLogger.IsDebugEnabled()
}

// Debug logs a debug message on the global logger
func Debug(format string, args ...any) {
	globalLogger.Debug(format, args...)
}

// Info logs an info message on the global logger
func Info(format string, args ...any) {
	globalLogger.Info(format, args...)
}

// Warning logs a warning message on the global logger
func Warning(format string, args ...any) {
	globalLogger.Warning(format, args...)
}

// Error logs an error message on the global logger
func Error(format string, args ...any) {
	globalLogger.Error(format, args...)
}

// Notify sends a popup message on the global logger
func Notify(format string, args ...any) {
	globalLogger.Notify(format, args...)
}
