package console

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldlink/stationd/internal/command"
	"github.com/fieldlink/stationd/internal/logging"
)

type fakeDispatcher struct {
	calls   [][]string
	origins []command.Origin
}

func (f *fakeDispatcher) Dispatch(tokens []string, origin command.Origin) string {
	f.calls = append(f.calls, tokens)
	f.origins = append(f.origins, origin)
	return "ok: " + strings.Join(tokens, " ")
}

func newTestConsole(input string, d dispatcher) (*Console, *strings.Builder) {
	out := &strings.Builder{}
	return &Console{
		log:    logging.GetLogger(),
		router: d,
		in:     strings.NewReader(input),
		out:    out,
	}, out
}

func TestRunDispatchesLines(t *testing.T) {
	d := &fakeDispatcher{}
	c, out := newTestConsole("status\nrelay_on 1\n", d)

	require.NoError(t, c.Run())

	require.Len(t, d.calls, 2)
	assert.Equal(t, []string{"status"}, d.calls[0])
	assert.Equal(t, []string{"relay_on", "1"}, d.calls[1])
	for _, o := range d.origins {
		assert.Equal(t, command.Interactive, o)
	}

	assert.Contains(t, out.String(), "ok: status")
	assert.Contains(t, out.String(), "ok: relay_on 1")
}

func TestRunSkipsBlankLines(t *testing.T) {
	d := &fakeDispatcher{}
	c, _ := newTestConsole("\n   \nhelp\n", d)

	require.NoError(t, c.Run())
	require.Len(t, d.calls, 1)
	assert.Equal(t, []string{"help"}, d.calls[0])
}

func TestRunPrintsBannerAndPrompt(t *testing.T) {
	d := &fakeDispatcher{}
	c, out := newTestConsole("", d)

	require.NoError(t, c.Run())
	assert.Contains(t, out.String(), "stationd")
	assert.Contains(t, out.String(), "> ")
}
