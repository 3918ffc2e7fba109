package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"sgpwm/core"
)

// runShell reads commands from in until EOF or quit
func runShell(in io.Reader, out io.Writer, b backend, pins core.PinMap) error {
	fmt.Fprintln(out, "Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		switch parts[0] {
		case "quit", "exit", "q":
			return nil

		case "help", "?":
			printHelp(out)

		case "pins":
			printPins(out, pins)

		case "set":
			if len(parts) != 4 {
				fmt.Fprintln(out, "usage: set <pin> <pulse_us> <period_us>")
				continue
			}
			vals, err := parseUints(parts[1:], []int{8, 32, 32})
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			if err := b.SetPWM(uint8(vals[0]), uint32(vals[1]), uint32(vals[2])); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "ok")

		case "release":
			if len(parts) != 2 {
				fmt.Fprintln(out, "usage: release <pin>")
				continue
			}
			vals, err := parseUints(parts[1:], []int{8})
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			if err := b.Release(uint8(vals[0])); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "ok")

		default:
			fmt.Fprintf(out, "Unknown command: %s (type 'help' for available commands)\n", parts[0])
		}
	}
	return scanner.Err()
}

func parseUints(args []string, bits []int) ([]uint64, error) {
	vals := make([]uint64, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 10, bits[i])
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, "\nAvailable commands:")
	fmt.Fprintln(out, "  help                          - Show this help message")
	fmt.Fprintln(out, "  pins                          - List PWM capable pins")
	fmt.Fprintln(out, "  set <pin> <pulse> <period>    - Drive pin, times in microseconds")
	fmt.Fprintln(out, "  release <pin>                 - Stop pin and free its channel")
	fmt.Fprintln(out, "  quit/exit/q                   - Exit the program")
	fmt.Fprintln(out)
}

func printPins(out io.Writer, pins core.PinMap) {
	fmt.Fprintf(out, "%-6s %-12s %-5s %s\n", "GPIO", "PAD", "FUNC", "PWM")
	for _, pin := range pins.PWMPins() {
		p, _ := pins.Resolve(pin)
		index, channel := core.Decode(p.Idx)
		fmt.Fprintf(out, "%-6d %-12s %-5d PWM%d/%d\n", p.Pin, p.Name, p.Func, index, channel)
	}
}
