// Package tray provides the system tray front-end for AirClick: a
// getlantern/systray wrapper with toggle/settings/quit callbacks and a
// mutex-guarded status line, built around gesture-match feedback instead of
// a single last-gesture label.
package tray

import (
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	mu         sync.RWMutex

	menuToggle      *systray.MenuItem
	menuLastGesture *systray.MenuItem
	menuCursorState *systray.MenuItem
}

// New creates a new Tray instance with cursor+gesture recognition enabled
// by default.
func New() *Tray {
	return &Tray{enabled: true}
}

// OnToggle sets the callback invoked when the user toggles recognition on
// or off from the tray menu.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback invoked when the settings menu item is
// clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback invoked when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application. It blocks until systray.Quit is
// called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetTitle("AirClick")
	systray.SetTooltip("AirClick cursor and gesture control")

	t.menuToggle = systray.AddMenuItem("● Enabled", "Toggle cursor and gesture recognition")
	systray.AddSeparator()

	t.menuCursorState = systray.AddMenuItem("Cursor: idle", "Current pipeline state")
	t.menuCursorState.Disable()

	t.menuLastGesture = systray.AddMenuItem("Last gesture: none", "Most recent gesture match")
	t.menuLastGesture.Disable()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit AirClick")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if enabled {
		t.menuToggle.SetTitle("● Enabled")
	} else {
		t.menuToggle.SetTitle("○ Disabled")
	}

	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	systray.Quit()
}

// SetLastGesture updates the last-matched-gesture line. An empty name
// resets it to "none".
func (t *Tray) SetLastGesture(name string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuLastGesture == nil {
		return
	}
	if name == "" {
		t.menuLastGesture.SetTitle("Last gesture: none")
		return
	}
	t.menuLastGesture.SetTitle("Last gesture: " + name)
}

// SetCursorState updates the pipeline-state line, e.g. "cursor", "collecting",
// "matching", "idle".
func (t *Tray) SetCursorState(state string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuCursorState == nil {
		return
	}
	t.menuCursorState.SetTitle("Cursor: " + state)
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
