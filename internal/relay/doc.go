// Package relay drives the binary output channels.
//
// A Manager owns a fixed set of channels mapped to GPIO pins at
// construction time. Operations address a single channel or All, which
// fans out to every channel; a failing channel aborts only its own
// mutation and the siblings still proceed. Switch counts increment only
// on an actual state change.
//
// The hardware access goes through the Backend interface so tests can
// substitute a mock. The real backend is periph.io.
package relay
