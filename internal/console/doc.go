// Package console runs the interactive command loop on standard input.
package console
