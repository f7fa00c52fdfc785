package console

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/fieldlink/stationd/internal/command"
	"github.com/fieldlink/stationd/internal/logging"
)

const banner = `
=====================================
  stationd - Wi-Fi station agent
=====================================
Type 'help' for available commands
`

// dispatcher is the router surface the console needs.
type dispatcher interface {
	Dispatch(tokens []string, origin command.Origin) string
}

// Console reads command lines, dispatches them and prints the response.
type Console struct {
	log    *zap.Logger
	router dispatcher
	in     io.Reader
	out    io.Writer
}

// New creates a console bound to standard input and output.
func New(router *command.Router) *Console {
	return &Console{
		log:    logging.GetLogger(),
		router: router,
		in:     os.Stdin,
		out:    os.Stdout,
	}
}

// Run blocks reading lines until EOF or a read error. Dispatch may block
// inside a scan or connect; the prompt returns once the response is
// printed.
func (c *Console) Run() error {
	fmt.Fprint(c.out, banner)

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			break
		}

		tokens := command.ParseLine(scanner.Text())
		if len(tokens) == 0 {
			continue
		}

		response := c.router.Dispatch(tokens, command.Interactive)
		fmt.Fprintln(c.out, response)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("console input: %w", err)
	}
	c.log.Info("console closed")
	return nil
}
