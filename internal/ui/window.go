package ui

import (
	"fmt"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/diamondburned/gotk4/pkg/gtk/v4"

	"linuxsony/internal/headset"
	"linuxsony/internal/util"
)

// Version is shown in the About section.
const Version = "0.1.0"

// maxBatteryColumns is Left, Right and Case.
const maxBatteryColumns = 3

type batteryColumn struct {
	box     *gtk.Box
	name    *gtk.Label
	level   *gtk.LevelBar
	percent *gtk.Label
}

// Window is the main application window. Every method except Update must run
// on the GTK main loop.
type Window struct {
	win     *adw.ApplicationWindow
	columns [maxBatteryColumns]batteryColumn
	status  *gtk.Label
	ancRow  *adw.ActionRow
	ancBtn  *gtk.Button

	onAncChange func()
}

// Activate builds and presents the window. deviceName is shown in the
// Settings tab; onAncChange runs when the user asks for the next ANC mode.
func Activate(app *adw.Application, deviceName string, onAncChange func()) *Window {
	w := &Window{onAncChange: onAncChange}
	w.win = adw.NewApplicationWindow(&app.Application)
	w.win.SetTitle("LinuxSony")
	w.win.SetDefaultSize(400, 420)

	w.setupUI(deviceName)
	w.render(headset.State{})
	w.win.Present()

	return w
}

// Present raises the window.
func (w *Window) Present() {
	w.win.Present()
}

// Update schedules a redraw with st on the GTK main loop. Safe to call from any
// goroutine.
func (w *Window) Update(st headset.State) {
	st = st.Clone()
	glib.IdleAdd(func() {
		w.render(st)
	})
}

func (w *Window) setupUI(deviceName string) {
	headerBar := adw.NewHeaderBar()

	viewStack := adw.NewViewStack()

	viewSwitcher := adw.NewViewSwitcher()
	viewSwitcher.SetStack(viewStack)
	viewSwitcher.SetPolicy(adw.ViewSwitcherPolicyWide)
	headerBar.SetTitleWidget(viewSwitcher)

	viewStack.AddTitledWithIcon(w.createControlView(), "control", "Control", "audio-headphones-symbolic")
	viewStack.AddTitledWithIcon(createSettingsView(deviceName), "settings", "Settings", "preferences-system-symbolic")

	// ToolbarView keeps the header flush with the content
	toolbarView := adw.NewToolbarView()
	toolbarView.AddTopBar(headerBar)
	toolbarView.SetContent(viewStack)

	w.win.SetContent(toolbarView)
}

func (w *Window) createControlView() *gtk.Box {
	controlBox := gtk.NewBox(gtk.OrientationVertical, 20)
	controlBox.SetMarginTop(20)
	controlBox.SetMarginBottom(20)
	controlBox.SetMarginStart(20)
	controlBox.SetMarginEnd(20)

	w.status = gtk.NewLabel("Searching for headphones...")
	w.status.AddCSSClass("dim-label")
	controlBox.Append(w.status)

	batteryBox := gtk.NewBox(gtk.OrientationHorizontal, 20)
	batteryBox.SetHAlign(gtk.AlignCenter)
	batteryBox.SetVAlign(gtk.AlignStart)

	for i := range w.columns {
		col := batteryColumn{
			box:     gtk.NewBox(gtk.OrientationVertical, 10),
			name:    gtk.NewLabel(""),
			level:   gtk.NewLevelBar(),
			percent: gtk.NewLabel(""),
		}
		col.box.SetHAlign(gtk.AlignCenter)

		image := gtk.NewImageFromIconName("audio-headphones-symbolic")
		image.SetPixelSize(48)
		col.box.Append(image)
		col.box.Append(col.name)

		col.level.SetMode(gtk.LevelBarModeContinuous)
		col.level.SetSizeRequest(100, 20)
		col.box.Append(col.level)

		col.percent.AddCSSClass("dim-label")
		col.box.Append(col.percent)

		batteryBox.Append(col.box)
		w.columns[i] = col
	}
	controlBox.Append(batteryBox)

	noiseControlGroup := adw.NewPreferencesGroup()
	noiseControlGroup.SetTitle("Noise Control")

	w.ancRow = adw.NewActionRow()
	w.ancRow.SetTitle("Mode")

	w.ancBtn = gtk.NewButtonWithLabel("Change")
	w.ancBtn.SetVAlign(gtk.AlignCenter)
	w.ancBtn.ConnectClicked(func() {
		if w.onAncChange != nil {
			w.onAncChange()
		}
	})
	w.ancRow.AddSuffix(w.ancBtn)

	noiseControlGroup.Add(w.ancRow)
	controlBox.Append(noiseControlGroup)

	return controlBox
}

func (w *Window) render(st headset.State) {
	lines := st.BatteryLines()
	for i, col := range w.columns {
		if i >= len(lines) {
			col.box.SetVisible(false)
			continue
		}
		line := lines[i]
		col.name.SetText(line.Name)
		col.level.SetValue(util.Percent(line.Level))
		text := fmt.Sprintf("%d%%", line.Level)
		if line.Charging {
			text += " (charging)"
		}
		col.percent.SetText(text)
		col.box.SetVisible(true)
	}

	w.status.SetVisible(!st.HasBatteryData())

	if st.Anc == nil {
		w.ancRow.SetSubtitle("Unknown")
		w.ancBtn.SetSensitive(false)
		return
	}
	w.ancRow.SetSubtitle(ancSubtitle(*st.Anc))
	w.ancBtn.SetSensitive(true)
}

func createSettingsView(deviceName string) *gtk.Box {
	settingsBox := gtk.NewBox(gtk.OrientationVertical, 20)
	settingsBox.SetMarginTop(20)
	settingsBox.SetMarginBottom(20)
	settingsBox.SetMarginStart(20)
	settingsBox.SetMarginEnd(20)

	deviceGroup := adw.NewPreferencesGroup()
	deviceGroup.SetTitle("Device")
	deviceGroup.SetDescription("Edit ~/.config/linuxsony/config.yaml to change")

	deviceRow := adw.NewActionRow()
	deviceRow.SetTitle("Headphones")
	deviceRow.SetSubtitle(deviceName)
	deviceGroup.Add(deviceRow)

	settingsBox.Append(deviceGroup)

	aboutGroup := adw.NewPreferencesGroup()
	aboutGroup.SetTitle("About")

	aboutRow := adw.NewActionRow()
	aboutRow.SetTitle("LinuxSony")
	aboutRow.SetSubtitle("Version " + Version)
	aboutGroup.Add(aboutRow)

	settingsBox.Append(aboutGroup)

	return settingsBox
}
