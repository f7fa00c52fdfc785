package wifi

import "errors"

// ErrNotInitialized indicates an operation was attempted before Initialize.
var ErrNotInitialized = errors.New("wireless manager not initialized")

// ErrInvalidArgument indicates a malformed argument (e.g. empty SSID).
var ErrInvalidArgument = errors.New("invalid argument")

// ErrBusy indicates a scan or connect is already outstanding. Operations
// are rejected immediately, never queued.
var ErrBusy = errors.New("operation already in progress")

// ErrTimeout indicates a blocking operation exceeded its bound without a
// completion event from the driver.
var ErrTimeout = errors.New("operation timed out")

// ErrConnectFailed indicates the connection attempt failed permanently
// (retry budget exhausted).
var ErrConnectFailed = errors.New("connection failed")
