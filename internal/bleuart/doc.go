// Package bleuart exposes the command console over Bluetooth LE.
//
// The Server registers a UART-style GATT service with BlueZ over the
// system D-Bus: one write characteristic carrying inbound command lines
// and one notify characteristic carrying outbound responses. Responses
// larger than the fragment size are split into ordered notifications;
// the receiver reassembles by simple concatenation, no framing and no
// acks.
//
// A single client is attached at a time. When it disconnects the server
// re-advertises automatically so the console stays reachable.
package bleuart
