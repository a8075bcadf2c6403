// Package tray provides a system tray menu for the Mudra finger counter.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle     func(enabled bool)
	onScreenshot func()
	onOpenViewer func()
	onQuit       func()
	enabled      bool
	fingers      int
	mu           sync.RWMutex

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuFingers *systray.MenuItem
}

// New creates a new Tray reflecting the given enabled state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
		fingers: -1,
	}
}

// OnToggle sets the callback function to be called when counting is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnScreenshot sets the callback for the Save Screenshot item.
func (t *Tray) OnScreenshot(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onScreenshot = fn
}

// OnOpenViewer sets the callback for the Open Viewer item.
func (t *Tray) OnOpenViewer(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenViewer = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Mudra")
	systray.SetTooltip("Mudra Finger Counter")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle finger counting")
	systray.AddSeparator()

	t.menuFingers = systray.AddMenuItem(fingersTitle(t.fingers), "Fingers in the last frame")
	t.menuFingers.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuScreenshot := systray.AddMenuItem("Save Screenshot", "Save the current annotated frame")
	menuViewer := systray.AddMenuItem("Open Viewer...", "Open the live view in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Mudra")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuScreenshot.ClickedCh:
				t.call(func() func() { return t.onScreenshot })
			case <-menuViewer.ClickedCh:
				t.call(func() func() { return t.onOpenViewer })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle flips the enabled state and notifies the toggle callback.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// call runs the callback returned by get, read under the lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetEnabled mirrors an enabled state changed elsewhere, without calling OnToggle.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetFingers updates the finger count display. It is called once per frame,
// so the menu is only touched when the count changes.
func (t *Tray) SetFingers(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n == t.fingers {
		return
	}
	t.fingers = n
	if t.menuFingers != nil {
		t.menuFingers.SetTitle(fingersTitle(n))
	}
}

// Fingers returns the last displayed count, -1 before the first frame.
func (t *Tray) Fingers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fingers
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func fingersTitle(n int) string {
	if n < 0 {
		return "Fingers: -"
	}
	return fmt.Sprintf("Fingers: %d", n)
}
