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
package platform

import (
	"fmt"
	"sync"
	"time"
)

// MockTimeProvider provides controllable time for testing.
// After fires immediately, so debounce timers in tests expire without delay.
type MockTimeProvider struct {
	mu          sync.Mutex
	currentTime time.Time
	afterCalls  []time.Duration
}

// NewMockTimeProvider creates a new mock time provider starting at the given time.
func NewMockTimeProvider(startTime time.Time) *MockTimeProvider {
	return &MockTimeProvider{currentTime: startTime}
}

func (m *MockTimeProvider) Sleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

func (m *MockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

func (m *MockTimeProvider) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	m.afterCalls = append(m.afterCalls, d)
	m.currentTime = m.currentTime.Add(d)
	now := m.currentTime
	m.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	close(ch)
	return ch
}

// AdvanceTime manually advances the mock time by the given duration.
func (m *MockTimeProvider) AdvanceTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// AfterCalls returns the durations passed to After so far.
func (m *MockTimeProvider) AfterCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.afterCalls...)
}

// MockFileWatcher provides controllable file watching for testing.
// Events are triggered manually, eliminating real file system dependencies.
type MockFileWatcher struct {
	mu           sync.RWMutex
	watchedPaths map[string]bool
	closed       bool
	events       chan FileWatchEvent
	errors       chan error
}

// NewMockFileWatcher creates a new mock file watcher.
func NewMockFileWatcher() *MockFileWatcher {
	return &MockFileWatcher{
		watchedPaths: make(map[string]bool),
		events:       make(chan FileWatchEvent, 100),
		errors:       make(chan error, 10),
	}
}

func (m *MockFileWatcher) Add(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("file watcher is closed")
	}

	m.watchedPaths[name] = true
	return nil
}

func (m *MockFileWatcher) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("file watcher is closed")
	}

	delete(m.watchedPaths, name)
	return nil
}

func (m *MockFileWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.events)
	close(m.errors)
	return nil
}

func (m *MockFileWatcher) Events() <-chan FileWatchEvent {
	return m.events
}

func (m *MockFileWatcher) Errors() <-chan error {
	return m.errors
}

// TriggerEvent manually triggers a file watch event.
func (m *MockFileWatcher) TriggerEvent(name string, op WatchOp) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return
	}

	m.events <- FileWatchEvent{Name: name, Op: op}
}

// Watching reports whether the named path is currently watched.
func (m *MockFileWatcher) Watching(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.watchedPaths[name]
}
