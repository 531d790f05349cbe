//go:build !linux

package fancontrol

import "fmt"

// Stub for non-Linux platforms; the gpio backend needs the Linux GPIO
// character device.
func openGPIO(chip string, line int) (Device, error) {
	return nil, fmt.Errorf("fancontrol: gpio fan unsupported on this platform")
}
