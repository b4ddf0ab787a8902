package indicator

import (
	"fmt"
	"os"
	"sync"

	"fyne.io/systray"
	"github.com/sirupsen/logrus"

	"linuxsony/internal/headset"
)

// maxBatteryLines is Left, Right and Case.
const maxBatteryLines = 3

// Indicator manages the system tray icon and menu
type Indicator struct {
	iconPath     string
	log          logrus.FieldLogger
	onShowWindow func()
	onQuit       func()
	onAncChange  func()

	mu      sync.Mutex
	state   headset.State
	ready   bool
	battery [maxBatteryLines]*systray.MenuItem
	anc     *systray.MenuItem
}

// New creates and initializes a new system tray indicator
func New(iconPath string, log logrus.FieldLogger, onShowWindow, onQuit, onAncChange func()) *Indicator {
	return &Indicator{
		iconPath:     iconPath,
		log:          log,
		onShowWindow: onShowWindow,
		onQuit:       onQuit,
		onAncChange:  onAncChange,
	}
}

// Start initializes the system tray indicator
func (ind *Indicator) Start() {
	go systray.Run(ind.onReady, ind.onExit)
}

// Stop terminates the system tray indicator
func (ind *Indicator) Stop() {
	systray.Quit()
}

// onReady is called when systray is ready
func (ind *Indicator) onReady() {
	iconData, err := loadIcon(ind.iconPath)
	if err != nil {
		ind.log.WithError(err).Warn("failed to load tray icon")
	} else {
		systray.SetIcon(iconData)
	}

	systray.SetTitle(appTitle)
	systray.SetTooltip(searchingLabel)

	// Battery and ANC lines are display only
	systray.AddMenuItem("Battery Levels", "Current battery status").Disable()
	systray.AddSeparator()

	ind.mu.Lock()
	for i := range ind.battery {
		item := systray.AddMenuItem("  --", "Battery level")
		item.Disable()
		ind.battery[i] = item
	}
	systray.AddSeparator()
	ind.anc = systray.AddMenuItem(ancTitle(headset.State{}), "Current noise control mode")
	ind.anc.Disable()
	ind.ready = true
	ind.mu.Unlock()

	mAnc := systray.AddMenuItem("Change noise control", "Cycle to the next noise control mode")
	systray.AddSeparator()

	mOpen := systray.AddMenuItem("Open LinuxSony", "Show the main window")
	mQuit := systray.AddMenuItem("Quit", "Exit LinuxSony")

	ind.render()

	go func() {
		for {
			select {
			case <-mAnc.ClickedCh:
				if ind.onAncChange != nil {
					ind.onAncChange()
				}
			case <-mOpen.ClickedCh:
				if ind.onShowWindow != nil {
					ind.onShowWindow()
				}
			case <-mQuit.ClickedCh:
				if ind.onQuit != nil {
					ind.onQuit()
				}
				return
			}
		}
	}()
}

// onExit is called when systray is exiting
func (ind *Indicator) onExit() {
	ind.log.Debug("system tray indicator exited")
}

// Update shows a new device state. It may be called before the tray is ready.
func (ind *Indicator) Update(st headset.State) {
	ind.mu.Lock()
	ind.state = st.Clone()
	ind.mu.Unlock()
	ind.render()
}

func (ind *Indicator) render() {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	if !ind.ready {
		return
	}

	systray.SetTooltip(tooltip(ind.state))

	lines := ind.state.BatteryLines()
	for i, item := range ind.battery {
		if i < len(lines) {
			item.SetTitle(batteryTitle(lines[i]))
			item.Show()
			continue
		}
		if i == 0 {
			item.SetTitle("  --")
			item.Show()
			continue
		}
		item.Hide()
	}
	ind.anc.SetTitle(ancTitle(ind.state))
}

// loadIcon loads icon data from a file
func loadIcon(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read icon file: %w", err)
	}
	return data, nil
}
