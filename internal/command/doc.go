// Package command implements the shared command grammar behind both the
// interactive console and the BLE transport.
//
// A Router parses one line into tokens, resolves the verb through the
// alias table and dispatches to a handler. The same handler backs both
// origins; only delivery differs (printed vs sent back over BLE), so a
// command always produces the same state changes no matter where it
// came from. Every dispatch yields exactly one response string.
package command
