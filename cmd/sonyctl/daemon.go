package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"linuxsony/internal/daemon"
	"linuxsony/internal/headset"
	"linuxsony/internal/ipc"
	"linuxsony/internal/logging"
)

func runDaemon(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logging.Component("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, cleanup, err := daemon.Start(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := ipc.Listen(cfg.IPC.Socket, d.Handle, logging.Component("ipc"))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Serve(gctx) })
	g.Go(func() error { return d.Run(gctx) })
	return g.Wait()
}

func runMonitor(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, cleanup, err := daemon.Start(cfg, logging.Component("monitor"))
	if err != nil {
		return err
	}
	defer cleanup()

	d.RegisterCallback(func(u daemon.Update) {
		if !u.Connected {
			fmt.Printf("%s: disconnected\n", u.Name)
			return
		}
		printState(u.Name, u.State)
	})
	return d.Run(ctx)
}

func printState(name string, st headset.State) {
	fmt.Printf("%s:", name)
	for _, line := range st.BatteryLines() {
		charging := ""
		if line.Charging {
			charging = "+"
		}
		fmt.Printf(" %s %d%%%s", line.Name, line.Level, charging)
	}
	if st.Anc != nil {
		fmt.Printf(" | %s", st.Anc.Mode)
	}
	fmt.Println()
}
