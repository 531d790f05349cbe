package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Hwmon reads temperatures from the kernel hwmon tree. Chips are located
// by the contents of their name attribute; an explicit Input path skips
// discovery entirely.
type Hwmon struct {
	// Root is /sys/class/hwmon outside of tests.
	Root string
	// Chip matches the chip's name attribute (amdgpu, nvme, k10temp).
	Chip string
	// Input, when set, is the exact tempN_input file to read.
	Input string
}

func NewHwmon(chip, input string) *Hwmon {
	return &Hwmon{Root: "/sys/class/hwmon", Chip: chip, Input: input}
}

// ReadTemperature returns whole degrees C from temp{index+1}_input on the
// configured chip, or from the explicit Input file when one is set.
func (h *Hwmon) ReadTemperature(index int) (int, error) {
	if h.Input != "" {
		return readTempC(h.Input)
	}
	dir, err := h.findChip()
	if err != nil {
		return 0, err
	}
	return readTempC(filepath.Join(dir, fmt.Sprintf("temp%d_input", index+1)))
}

func (h *Hwmon) findChip() (string, error) {
	entries, err := os.ReadDir(h.Root)
	if err != nil {
		return "", fmt.Errorf("sensor: hwmon: %w", err)
	}
	for _, e := range entries {
		dir := filepath.Join(h.Root, e.Name())
		b, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(b)) == h.Chip {
			return dir, nil
		}
	}
	return "", fmt.Errorf("sensor: hwmon chip %q not found under %s", h.Chip, h.Root)
}

// readTempC parses one sysfs temperature attribute. hwmon reports
// millidegrees; a handful of drivers report plain degrees, which the
// magnitude check handles.
func readTempC(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("sensor: %w", err)
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, fmt.Errorf("sensor: %s is empty", path)
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("sensor: bad temperature %q in %s: %w", s, path, err)
	}
	if v > 1000 || v < -1000 {
		v /= 1000
	}
	return v, nil
}

// Chip is one hwmon device and its temperature channels, for inventory
// output.
type Chip struct {
	Name   string
	Dir    string
	Inputs []ChipInput
}

// ChipInput is one tempN_input attribute with its current reading.
type ChipInput struct {
	File  string
	Label string
	TempC int
}

// Chips lists every hwmon device that exposes at least one temperature
// channel.
func (h *Hwmon) Chips() ([]Chip, error) {
	entries, err := os.ReadDir(h.Root)
	if err != nil {
		return nil, fmt.Errorf("sensor: hwmon: %w", err)
	}
	var chips []Chip
	for _, e := range entries {
		dir := filepath.Join(h.Root, e.Name())
		b, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		c := Chip{Name: strings.TrimSpace(string(b)), Dir: dir}
		inputs, _ := filepath.Glob(filepath.Join(dir, "temp*_input"))
		for _, in := range inputs {
			tempC, err := readTempC(in)
			if err != nil {
				continue
			}
			ci := ChipInput{File: filepath.Base(in), TempC: tempC}
			label := strings.TrimSuffix(in, "_input") + "_label"
			if lb, err := os.ReadFile(label); err == nil {
				ci.Label = strings.TrimSpace(string(lb))
			}
			c.Inputs = append(c.Inputs, ci)
		}
		if len(c.Inputs) > 0 {
			chips = append(chips, c)
		}
	}
	return chips, nil
}
