// Stationd is a Wi-Fi station agent for small Linux devices.
//
// It manages the wireless connection through wpa_supplicant, exposes the
// command console both interactively and over a BLE UART-style GATT
// service, drives relay outputs and announces its presence over mDNS
// once connected.
//
// Usage:
//
//	stationd run [flags]
//
// See 'stationd run --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fieldlink/stationd/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stationd",
	Short: "Wi-Fi station agent with BLE console and relay control",
	Long: `Stationd manages the wireless connection of a small Linux device.

It scans and joins Wi-Fi networks through wpa_supplicant, retries lost
links automatically, and exposes a single command grammar on two
channels: the interactive console and a BLE UART-style GATT service.
Relay outputs and mDNS presence announcement ride along.`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("stationd %s (commit: %s)\n", version.Version, version.Commit)
	},
}
