package bleuart

// DefaultFragmentSize bounds a single outbound notification payload.
const DefaultFragmentSize = 512

// Fragment splits b into ordered pieces of at most max bytes. The
// concatenation of the pieces reproduces b exactly. An empty payload
// yields a single empty fragment so the receiver still sees a
// notification.
func Fragment(b []byte, max int) [][]byte {
	if max <= 0 {
		max = DefaultFragmentSize
	}
	if len(b) == 0 {
		return [][]byte{{}}
	}

	out := make([][]byte, 0, (len(b)+max-1)/max)
	for len(b) > max {
		out = append(out, b[:max])
		b = b[max:]
	}
	return append(out, b)
}
