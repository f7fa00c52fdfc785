// Package config loads and persists the stationd agent configuration.
//
// Configuration is stored as a single YAML file, by default at
// /etc/stationd/config.yaml. Every field has a working default so the agent
// runs without any file present; the file only needs to exist to override
// defaults (wireless interface name, relay pin mapping, transport name,
// mDNS announcement).
//
// # File Format
//
//	version: 1
//	device_name: stationd
//	wireless:
//	  interface: wlan0
//	transport:
//	  enabled: true
//	  fragment_size: 512
//	relays:
//	  - id: 1
//	    pin: 17
//	  - id: 2
//	    pin: 27
//	announce:
//	  enabled: false
//	  port: 8417
//
// # Thread Safety
//
// Load and Save are safe for concurrent use; Save performs an atomic
// write-temp-then-rename to prevent corruption on crash.
package config
