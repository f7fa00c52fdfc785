// Package announce publishes the agent's presence over mDNS once the
// station has a working network connection.
package announce
