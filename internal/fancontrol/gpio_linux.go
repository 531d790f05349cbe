//go:build linux

package fancontrol

import (
	"fmt"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// openGPIO drives a 2-wire fan switched by a transistor on one GPIO line,
// using the Linux GPIO character device. Any duty above zero maps to ON.
func openGPIO(chip string, line int) (Device, error) {
	if chip == "" {
		chip = "gpiochip0"
	}
	if line < 0 {
		return nil, fmt.Errorf("fancontrol: invalid gpio line %d", line)
	}
	path := chip
	if !strings.HasPrefix(path, "/") {
		path = "/dev/" + path
	}

	c, err := gpiocdev.NewChip(path)
	if err != nil {
		return nil, fmt.Errorf("fancontrol: open gpio chip %s: %w", path, err)
	}
	l, err := c.RequestLine(line, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("nvfand"))
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("fancontrol: request gpio %s:%d: %w", path, line, err)
	}
	return &gpioFan{chip: c, line: l}, nil
}

type gpioFan struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// SetMode is accepted for interface parity; an on/off fan has no firmware
// fallback to hand control back to.
func (g *gpioFan) SetMode(Mode) error { return nil }

func (g *gpioFan) SetSpeed(duty uint8) error {
	if g == nil || g.line == nil {
		return fmt.Errorf("fancontrol: gpio line not initialized")
	}
	v := 0
	if duty > 0 {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *gpioFan) Close() error {
	if g == nil || g.line == nil {
		return nil
	}
	// Releasing keeps the last driven value latched, so a fan left at the
	// idle floor stays on.
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
