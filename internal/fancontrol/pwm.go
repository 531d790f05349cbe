package fancontrol

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// enableSuffix derives the mode file from the duty file, per the hwmon
// convention of pwmN plus pwmN_enable.
const enableSuffix = "_enable"

// Mode is the hwmon pwm_enable encoding. Drivers can report raw values
// beyond the two constants; those round-trip through Mode and compare
// unequal to both.
type Mode uint8

const (
	// Manual means the driver applies whatever duty is written to the
	// pwm file.
	Manual Mode = 1
	// Automatic hands speed management back to the firmware thermal
	// curve.
	Automatic Mode = 2
)

func (m Mode) String() string {
	switch m {
	case Manual:
		return "manual"
	case Automatic:
		return "automatic"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// PwmDevice drives one hwmon fan through its duty file and the companion
// enable file. Handles are opened lazily on first use and cached for the
// life of the device; a failed open is remembered, and every later
// operation on that file fails immediately instead of retrying the open
// each tick.
//
// Not safe for concurrent use. The control loop is the only caller.
type PwmDevice struct {
	dutyPath   string
	enablePath string

	duty   handleSlot
	enable handleSlot
}

// handleSlot caches one control-file handle across calls. opened is set on
// the first attempt regardless of outcome, so the open never repeats.
type handleSlot struct {
	path   string
	flag   int
	f      *os.File
	err    error
	opened bool
}

func (s *handleSlot) get() (*os.File, error) {
	if !s.opened {
		s.opened = true
		// sysfs attributes reject O_TRUNC/O_CREATE; open them plain.
		s.f, s.err = os.OpenFile(s.path, s.flag, 0)
		if s.err != nil {
			s.f = nil
		}
	}
	return s.f, s.err
}

func (s *handleSlot) close() error {
	var err error
	if s.f != nil {
		err = s.f.Close()
		s.f = nil
	}
	s.opened = true
	s.err = os.ErrClosed
	return err
}

// OpenPWM checks that dutyPath and its companion enable file both exist
// and returns a device for the pair. No file handle is opened yet; a file
// that disappears after this check surfaces as a sticky failure on first
// use.
func OpenPWM(dutyPath string) (*PwmDevice, error) {
	if _, err := os.Stat(dutyPath); err != nil {
		return nil, fmt.Errorf("fancontrol: duty file %s: %w", dutyPath, err)
	}
	enablePath := dutyPath + enableSuffix
	if _, err := os.Stat(enablePath); err != nil {
		return nil, fmt.Errorf("fancontrol: enable file %s: %w", enablePath, err)
	}
	return &PwmDevice{
		dutyPath:   dutyPath,
		enablePath: enablePath,
		duty:       handleSlot{path: dutyPath, flag: os.O_WRONLY},
		enable:     handleSlot{path: enablePath, flag: os.O_RDWR},
	}, nil
}

// ReadMode reads the current control mode from the start of the enable
// file. Any open, seek, read, or parse failure comes back as an error.
func (d *PwmDevice) ReadMode() (Mode, error) {
	f, err := d.enable.get()
	if err != nil {
		return 0, fmt.Errorf("fancontrol: open %s: %w", d.enablePath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("fancontrol: seek %s: %w", d.enablePath, err)
	}
	b, err := io.ReadAll(f)
	if err != nil {
		return 0, fmt.Errorf("fancontrol: read %s: %w", d.enablePath, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("fancontrol: parse %s: %w", d.enablePath, err)
	}
	return Mode(v), nil
}

// SetMode writes the enable encoding, skipping the write when the device
// already reports the target. Some drivers reset fan state on every
// enable write, so equal-mode calls must not touch the file.
func (d *PwmDevice) SetMode(target Mode) error {
	cur, err := d.ReadMode()
	if err != nil {
		return err
	}
	if cur == target {
		return nil
	}
	f, err := d.enable.get()
	if err != nil {
		return fmt.Errorf("fancontrol: open %s: %w", d.enablePath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("fancontrol: seek %s: %w", d.enablePath, err)
	}
	if _, err := f.WriteString(strconv.Itoa(int(target))); err != nil {
		return fmt.Errorf("fancontrol: write %s: %w", d.enablePath, err)
	}
	return nil
}

// SetSpeed writes the duty code unconditionally. Change suppression is the
// controller's job; the device has no notion of a last value.
func (d *PwmDevice) SetSpeed(duty uint8) error {
	f, err := d.duty.get()
	if err != nil {
		return fmt.Errorf("fancontrol: open %s: %w", d.dutyPath, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("fancontrol: seek %s: %w", d.dutyPath, err)
	}
	if _, err := f.WriteString(strconv.Itoa(int(duty))); err != nil {
		return fmt.Errorf("fancontrol: write %s: %w", d.dutyPath, err)
	}
	return nil
}

// Close releases the cached handles. Operations after Close fail.
func (d *PwmDevice) Close() error {
	if d == nil {
		return nil
	}
	err1 := d.duty.close()
	err2 := d.enable.close()
	if err1 != nil {
		return err1
	}
	return err2
}
