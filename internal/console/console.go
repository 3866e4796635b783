// Package console accepts operator commands on a line-oriented stream while
// the keyer runs.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ColonelBlimp/cwkeyer/internal/keyer"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/cancelreader"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrInvalidSpeed    = errors.New("invalid speed")
	ErrMissingArgument = errors.New("missing argument")
)

// Stats reports keyer activity for the status command.
type Stats interface {
	Completed() uint64
}

const helpText = `commands:
  wpm <n>, w <n>   set speed (5-60)
  status, s        show speed and activity
  help, ?          show this help
`

// Console executes commands against a running keyer.
type Console struct {
	speed  *keyer.Speed
	stats  Stats
	out    io.Writer
	logger *log.Logger
}

// New creates a Console writing replies to out. stats may be nil.
func New(speed *keyer.Speed, stats Stats, out io.Writer, logger *log.Logger) *Console {
	if logger == nil {
		logger = log.Default()
	}
	return &Console{speed: speed, stats: stats, out: out, logger: logger}
}

// Execute runs a single command line. Blank lines are ignored.
func (c *Console) Execute(line string) error {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "wpm", "w":
		if len(fields) < 2 {
			return fmt.Errorf("%s: %w: words per minute", fields[0], ErrMissingArgument)
		}
		wpm, err := ParseWPM(fields[1])
		if err != nil {
			return err
		}
		t := c.speed.SetSpeed(wpm)
		c.logger.Info("speed changed", "wpm", t.WPM, "dit", t.Dit, "dah", t.Dah)
		fmt.Fprintf(c.out, "speed %d wpm (dit %v, dah %v)\n", t.WPM, t.Dit, t.Dah)
	case "status", "s":
		c.status()
	case "help", "?":
		fmt.Fprint(c.out, helpText)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, fields[0])
	}
	return nil
}

func (c *Console) status() {
	t := c.speed.Timing()
	fmt.Fprintf(c.out, "speed %d wpm (dit %v, dah %v)", t.WPM, t.Dit, t.Dah)
	if c.stats != nil {
		fmt.Fprintf(c.out, ", %s sent", humanize.Comma(int64(c.stats.Completed())))
	}
	fmt.Fprintln(c.out)
}

// Run executes commands read from in until EOF or ctx is done. Command errors
// are reported to the operator and do not stop the loop. A read blocked on a
// terminal is cancelled when ctx is done.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	r, err := cancelreader.NewReader(in)
	if err != nil {
		return fmt.Errorf("console reader: %w", err)
	}
	defer r.Close()
	stop := context.AfterFunc(ctx, func() { r.Cancel() })
	defer stop()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		if err := c.Execute(scanner.Text()); err != nil {
			c.logger.Debug("console command failed", "line", scanner.Text(), "err", err)
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, cancelreader.ErrCanceled) {
		return fmt.Errorf("read console: %w", err)
	}
	return nil
}

// ParseWPM parses and range checks a speed argument.
func ParseWPM(s string) (int, error) {
	wpm, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidSpeed, s)
	}
	if err := ValidateWPM(wpm); err != nil {
		return 0, err
	}
	return wpm, nil
}

// ValidateWPM checks wpm is within the keyer's operating range.
func ValidateWPM(wpm int) error {
	if wpm < keyer.MinWPM || wpm > keyer.MaxWPM {
		return fmt.Errorf("%w: %d outside %d-%d", ErrInvalidSpeed, wpm, keyer.MinWPM, keyer.MaxWPM)
	}
	return nil
}
