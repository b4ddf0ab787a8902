package main

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/urfave/cli"

	"linuxsony/internal/bluez"
)

func runDiscover(c *cli.Context) error {
	if _, err := loadConfig(c); err != nil {
		return err
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer conn.Close()

	devices, err := bluez.ListDevices(conn)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No paired devices found")
		return nil
	}

	for _, d := range devices {
		marker := " "
		if d.HasSonyService() {
			marker = "*"
		}
		state := "disconnected"
		if d.Connected {
			state = "connected"
		}
		fmt.Printf("%s %s  %-24s %s", marker, d.Address, d.Alias, state)
		if d.Battery >= 0 {
			fmt.Printf("  battery %d%%", d.Battery)
		}
		fmt.Println()

		if c.Bool("verbose") {
			fmt.Printf("    path: %s\n", d.Path)
			for _, uuid := range d.UUIDs {
				fmt.Printf("    - %s: %s\n", uuid, bluez.ServiceName(uuid))
			}
		}
	}
	fmt.Println("\n* supports the headphones control service")
	return nil
}
