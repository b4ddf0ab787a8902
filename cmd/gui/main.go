package main

import (
	"context"
	"os"

	"github.com/diamondburned/gotk4-adwaita/pkg/adw"
	"github.com/diamondburned/gotk4/pkg/glib/v2"
	"github.com/sirupsen/logrus"

	"linuxsony/internal/config"
	"linuxsony/internal/daemon"
	"linuxsony/internal/indicator"
	"linuxsony/internal/ipc"
	"linuxsony/internal/logging"
	"linuxsony/internal/ui"
)

const appID = "com.linuxsony.app"

var (
	app    *adw.Application
	window *ui.Window
)

func main() {
	os.Exit(run())
}

func run() int {
	log := logging.Component("gui")

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		log.WithError(err).Error("failed to load configuration")
		return 1
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		log.WithError(err).Error("invalid log level")
		return 1
	}

	// The daemon owns the connection and notifies all components via callbacks
	d, cleanup, err := daemon.Start(cfg, logging.Component("daemon"))
	if err != nil {
		log.WithError(err).Error("failed to start")
		return 1
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := d.Run(ctx); err != nil {
			log.WithError(err).Error("connection loop stopped")
		}
	}()

	// The CLI can talk to the GUI process the same way it talks to `sonyctl daemon`
	startIPC(ctx, cfg, d, log)

	// === Create System Tray ===
	tray := createTrayIndicator(cfg, d, log)
	defer tray.Stop()

	// === Create GUI App ===
	app = adw.NewApplication(appID, 0)
	app.ConnectActivate(func() {
		if window != nil {
			window.Present()
			return
		}
		window = ui.Activate(app, deviceLabel(cfg), func() { requestNextAnc(d, log) })
		window.Update(d.Snapshot().State)
		d.RegisterCallback(func(u daemon.Update) {
			window.Update(u.State)
		})
	})

	return app.Run(os.Args)
}

func startIPC(ctx context.Context, cfg *config.Config, d *daemon.Daemon, log logrus.FieldLogger) {
	srv, err := ipc.Listen(cfg.IPC.Socket, d.Handle, logging.Component("ipc"))
	if err != nil {
		log.WithError(err).Warn("IPC disabled")
		return
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			log.WithError(err).Warn("IPC server stopped")
		}
	}()
}

// createTrayIndicator creates and configures the system tray indicator
func createTrayIndicator(cfg *config.Config, d *daemon.Daemon, log logrus.FieldLogger) *indicator.Indicator {
	tray := indicator.New(
		cfg.Tray.Icon,
		logging.Component("tray"),
		showWindow,
		quitApp,
		func() { requestNextAnc(d, log) },
	)
	tray.Start()

	d.RegisterCallback(func(u daemon.Update) {
		tray.Update(u.State)
	})

	return tray
}

func requestNextAnc(d *daemon.Daemon, log logrus.FieldLogger) {
	if err := d.RequestNextAncMode(); err != nil {
		log.WithError(err).Info("cannot change noise control")
	}
}

func deviceLabel(cfg *config.Config) string {
	if cfg.Device.Address != "" {
		return cfg.Device.Address
	}
	return "First paired device matching \"" + cfg.Device.AliasMatch + "\""
}

// showWindow displays the main application window
func showWindow() {
	glib.IdleAdd(func() {
		if window != nil {
			window.Present()
		} else if app != nil {
			app.Activate()
		}
	})
}

// quitApp quits the entire application
func quitApp() {
	if app != nil {
		glib.IdleAdd(func() {
			app.Quit()
		})
	}
}
