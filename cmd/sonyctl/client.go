package main

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/urfave/cli"

	"linuxsony/internal/ipc"
)

func runStatus(c *cli.Context) error {
	return call(c, ipc.CommandStatus)
}

func runAnc(c *cli.Context) error {
	return call(c, ipc.CommandAncNext)
}

func call(c *cli.Context, command string) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	resp, err := ipc.Call(cfg.IPC.Socket, ipc.Request{Command: command})
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%s", resp.Error)
	}

	if c.Bool("json") {
		return jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout).Encode(resp)
	}
	printResponse(resp)
	return nil
}

func printResponse(resp ipc.Response) {
	if !resp.Connected {
		fmt.Println("not connected")
		return
	}
	fmt.Println(resp.Device)
	for _, b := range resp.Batteries {
		charging := ""
		if b.Charging {
			charging = " (charging)"
		}
		fmt.Printf("  %-6s %3d%%%s\n", b.Name+":", b.Level, charging)
	}
	if resp.Anc != nil {
		fmt.Printf("  Noise control: %s\n", resp.Anc.Mode)
	}
}
