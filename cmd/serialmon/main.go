//go:build linux
// +build linux

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	serialmon "github.com/luhtfiimanal/go-serial-monitor"
)

// Adjust to match the connected device.
const (
	port = "/dev/ttyACM0"
	baud = 115200
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	conn, err := serialmon.Open(serialmon.Config{Device: port, BaudRate: baud})
	if err != nil {
		if ports, perr := serialmon.ListPorts(); perr == nil && len(ports) > 0 {
			fmt.Fprintf(os.Stderr, "Available ports: %s\n", strings.Join(ports, ", "))
		}
		return err
	}
	defer conn.Close()

	fmt.Fprintf(os.Stderr, "Connected to %s at %d baud.\n--- Serial Monitor ---\n", port, baud)

	// Received lines go to stdout untouched; everything else is stderr.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := serialmon.NewMonitor(conn, os.Stdout).Run(ctx); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, "\nExiting serial monitor.")
	return nil
}
