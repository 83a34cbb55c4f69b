package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/google/shlex"

	"fablock/host/lock"
	"fablock/protocol"
)

// Lock is the part of lock.Client the console uses.
type Lock interface {
	Version() (uint32, error)
	Lock() error
	Unlock() error
	RequestState() (protocol.DoorReport, error)
	Time() (uint32, error)
	Channel(ch uint8) (uint32, error)
	Beep(freq uint32) error
	Feedback(tone uint32) error
	Blink(n uint32) error
	StopBlink(mode uint32) error
	PinpadDebug() error
	DumpTiming() error
	Raw(line string) error
}

var errQuit = errors.New("quit")

// Console runs interactive commands against a lock.
type Console struct {
	lock Lock
	out  io.Writer

	mu       sync.Mutex
	watching bool
}

func NewConsole(l Lock, out io.Writer) *Console {
	return &Console{lock: l, out: out, watching: true}
}

// Watching reports whether unsolicited messages should be printed.
func (c *Console) Watching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watching
}

// Show prints an unsolicited message when watching.
func (c *Console) Show(msg protocol.Message) {
	if !c.Watching() {
		return
	}
	switch msg.Kind {
	case protocol.KindDoor:
		fmt.Fprintf(c.out, "< %s (%s)\n", msg.Raw, msg.Door)
	default:
		fmt.Fprintf(c.out, "< %s\n", msg.Raw)
	}
}

// Execute runs one console line. It returns errQuit when the user asks to
// leave.
func (c *Console) Execute(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		c.printHelp()

	case "version":
		v, err := c.lock.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "protocol version %d\n", v)

	case "lock":
		if err := c.lock.Lock(); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "locking")

	case "unlock":
		if err := c.lock.Unlock(); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "unlocking")

	case "state":
		r, err := c.lock.RequestState()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%s\n", r)

	case "time":
		ticks, err := c.lock.Time()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%d ticks\n", ticks)

	case "sense":
		ch, err := optionalNumber(args, 0)
		if err != nil {
			return err
		}
		if ch > 7 {
			return fmt.Errorf("channel %d out of range 0-7", ch)
		}
		v, err := c.lock.Channel(uint8(ch))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "channel %d = %d\n", ch, v)

	case "beep":
		freq, err := requiredNumber(cmd, args)
		if err != nil {
			return err
		}
		return c.lock.Beep(freq)

	case "tone":
		n, err := requiredNumber(cmd, args)
		if err != nil {
			return err
		}
		return c.lock.Feedback(n)

	case "blink":
		n, err := requiredNumber(cmd, args)
		if err != nil {
			return err
		}
		return c.lock.Blink(n)

	case "led":
		if len(args) != 1 {
			return fmt.Errorf("usage: led off|on|leave")
		}
		modes := map[string]uint32{"off": lock.LEDOff, "on": lock.LEDOn, "leave": lock.LEDLeave}
		mode, ok := modes[strings.ToLower(args[0])]
		if !ok {
			return fmt.Errorf("usage: led off|on|leave")
		}
		return c.lock.StopBlink(mode)

	case "pinpad":
		return c.lock.PinpadDebug()

	case "timing":
		return c.lock.DumpTiming()

	case "raw":
		if len(args) == 0 {
			return fmt.Errorf("usage: raw <line>")
		}
		return c.lock.Raw(strings.Join(args, " "))

	case "watch":
		c.mu.Lock()
		switch {
		case len(args) == 0:
			c.watching = !c.watching
		case args[0] == "on":
			c.watching = true
		case args[0] == "off":
			c.watching = false
		default:
			c.mu.Unlock()
			return fmt.Errorf("usage: watch [on|off]")
		}
		watching := c.watching
		c.mu.Unlock()
		fmt.Fprintf(c.out, "watch %v\n", watching)

	default:
		return fmt.Errorf("unknown command %q (type 'help' for available commands)", cmd)
	}
	return nil
}

func requiredNumber(cmd string, args []string) (uint32, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: %s <n>", cmd)
	}
	return parseNumber(args[0])
}

func optionalNumber(args []string, def uint32) (uint32, error) {
	if len(args) == 0 {
		return def, nil
	}
	return parseNumber(args[0])
}

// parseNumber accepts decimal or 0x-prefixed hex.
func parseNumber(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", s)
	}
	return uint32(v), nil
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, "\nAvailable commands:")
	fmt.Fprintln(c.out, "  help             - Show this help message")
	fmt.Fprintln(c.out, "  version          - Get the protocol version")
	fmt.Fprintln(c.out, "  lock / unlock    - Drive the bolt")
	fmt.Fprintln(c.out, "  state            - Get the door state")
	fmt.Fprintln(c.out, "  time             - Get the lock's tick counter")
	fmt.Fprintln(c.out, "  sense [ch]       - Read an ADC channel (default 0)")
	fmt.Fprintln(c.out, "  beep <hz>        - Play a tone for half a second")
	fmt.Fprintln(c.out, "  tone <n>         - Play feedback tone n")
	fmt.Fprintln(c.out, "  blink <n>        - Blink the LED n times")
	fmt.Fprintln(c.out, "  led off|on|leave - Stop blinking")
	fmt.Fprintln(c.out, "  pinpad           - Start raw pinpad readings")
	fmt.Fprintln(c.out, "  timing           - Dump the timing ring")
	fmt.Fprintln(c.out, "  raw <line>       - Send a raw command line")
	fmt.Fprintln(c.out, "  watch [on|off]   - Toggle printing of lock messages")
	fmt.Fprintln(c.out, "  quit/exit/q      - Exit the program")
	fmt.Fprintln(c.out)
}
