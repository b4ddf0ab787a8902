// sonyctl controls Sony headphones over Bluetooth.
//
// Usage:
//
//	sonyctl daemon          keep the connection open and serve the other commands
//	sonyctl status          print battery levels and noise control mode
//	sonyctl anc             switch to the next noise control mode
//	sonyctl monitor         connect in the foreground and print every update
//	sonyctl discover        list paired devices known to BlueZ
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"linuxsony/internal/config"
	"linuxsony/internal/logging"
)

func main() {
	app := cli.NewApp()
	app.Name = "sonyctl"
	app.Usage = "control Sony headphones from the command line"
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: config.DefaultPath(),
			Usage: "path to the YAML configuration file",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "override log.level from the configuration",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:   "daemon",
			Usage:  "connect to the headphones and serve requests on the IPC socket",
			Action: runDaemon,
		},
		{
			Name:  "status",
			Usage: "print battery levels and the noise control mode",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "json", Usage: "print the raw JSON response"},
			},
			Action: runStatus,
		},
		{
			Name:  "anc",
			Usage: "switch to the next noise control mode",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "json", Usage: "print the raw JSON response"},
			},
			Action: runAnc,
		},
		{
			Name:   "monitor",
			Usage:  "connect in the foreground and print every state update",
			Action: runMonitor,
		},
		{
			Name:  "discover",
			Usage: "list paired Bluetooth devices",
			Flags: []cli.Flag{
				cli.BoolFlag{Name: "verbose, v", Usage: "show service UUIDs"},
			},
			Action: runDiscover,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies the logging flags.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.GlobalString("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.GlobalString("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := logging.SetLevel(cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return cfg, nil
}
