package fancontrol

import (
	"os"
	"path/filepath"
	"testing"
)

// newTestPWM lays out a fake hwmon pwm pair in a temp dir and opens it.
func newTestPWM(t *testing.T, duty, enable string) (*PwmDevice, string, string) {
	t.Helper()
	dir := t.TempDir()
	dutyPath := filepath.Join(dir, "pwm1")
	enablePath := dutyPath + "_enable"
	if err := os.WriteFile(dutyPath, []byte(duty), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(enablePath, []byte(enable), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d, err := OpenPWM(dutyPath)
	if err != nil {
		t.Fatalf("OpenPWM: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d, dutyPath, enablePath
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(b)
}

func TestOpenPWM_RequiresBothFiles(t *testing.T) {
	dir := t.TempDir()
	dutyPath := filepath.Join(dir, "pwm1")

	if _, err := OpenPWM(dutyPath); err == nil {
		t.Fatalf("OpenPWM succeeded without %s", dutyPath)
	}

	if err := os.WriteFile(dutyPath, []byte("0"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := OpenPWM(dutyPath); err == nil {
		t.Fatalf("OpenPWM succeeded without %s_enable", dutyPath)
	}

	if err := os.WriteFile(dutyPath+"_enable", []byte("2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	d, err := OpenPWM(dutyPath)
	if err != nil {
		t.Fatalf("OpenPWM: %v", err)
	}
	_ = d.Close()
}

func TestReadMode(t *testing.T) {
	d, _, _ := newTestPWM(t, "0", "2\n")
	m, err := d.ReadMode()
	if err != nil {
		t.Fatalf("ReadMode: %v", err)
	}
	if m != Automatic {
		t.Fatalf("mode=%v want automatic", m)
	}
}

func TestReadMode_RawValue(t *testing.T) {
	d, _, _ := newTestPWM(t, "0", "0\n")
	m, err := d.ReadMode()
	if err != nil {
		t.Fatalf("ReadMode: %v", err)
	}
	if m == Manual || m == Automatic {
		t.Fatalf("mode=%v matched a named mode", m)
	}
}

func TestReadMode_ParseFailure(t *testing.T) {
	d, _, _ := newTestPWM(t, "0", "auto\n")
	if _, err := d.ReadMode(); err == nil {
		t.Fatalf("ReadMode succeeded on junk")
	}
}

func TestSetMode_WritesWhenDifferent(t *testing.T) {
	d, _, enablePath := newTestPWM(t, "0", "2\n")
	if err := d.SetMode(Manual); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if got := readFile(t, enablePath); got != "1\n" {
		t.Fatalf("enable=%q want %q", got, "1\n")
	}
	m, err := d.ReadMode()
	if err != nil {
		t.Fatalf("ReadMode: %v", err)
	}
	if m != Manual {
		t.Fatalf("mode=%v want manual", m)
	}
}

// An equal-mode call must not touch the file at all. The fixture value
// "01" parses as manual but any write through the cached handle would
// clobber the first byte, so unchanged content proves the skip.
func TestSetMode_SkipsEqualMode(t *testing.T) {
	d, _, enablePath := newTestPWM(t, "0", "01\n")
	if err := d.SetMode(Manual); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if got := readFile(t, enablePath); got != "01\n" {
		t.Fatalf("enable=%q, equal-mode SetMode wrote", got)
	}
}

func TestSetMode_WritesAgainAfterExternalChange(t *testing.T) {
	d, _, enablePath := newTestPWM(t, "0", "2\n")
	if err := d.SetMode(Manual); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := d.SetMode(Manual); err != nil {
		t.Fatalf("SetMode repeat: %v", err)
	}
	if got := readFile(t, enablePath); got != "1\n" {
		t.Fatalf("enable=%q want %q", got, "1\n")
	}

	// Out-of-band flip back to automatic; the next call must write.
	if err := os.WriteFile(enablePath, []byte("2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := d.SetMode(Manual); err != nil {
		t.Fatalf("SetMode after flip: %v", err)
	}
	if got := readFile(t, enablePath); got != "1\n" {
		t.Fatalf("enable=%q want %q", got, "1\n")
	}
}

func TestSetSpeed_AlwaysWrites(t *testing.T) {
	d, dutyPath, _ := newTestPWM(t, "0\n", "1\n")
	if err := d.SetSpeed(102); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	if got := readFile(t, dutyPath); got != "102" {
		t.Fatalf("duty=%q want %q", got, "102")
	}

	// Same value again still writes; restore after an out-of-band change
	// proves it.
	if err := os.WriteFile(dutyPath, []byte("000"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := d.SetSpeed(102); err != nil {
		t.Fatalf("SetSpeed repeat: %v", err)
	}
	if got := readFile(t, dutyPath); got != "102" {
		t.Fatalf("duty=%q want %q", got, "102")
	}
}

// A failed first open leaves the slot failed for good; later calls must
// not retry even after the file comes back.
func TestFailedOpenIsSticky(t *testing.T) {
	d, dutyPath, _ := newTestPWM(t, "0", "1\n")

	// The duty file vanishes between the existence check and first use.
	if err := os.Remove(dutyPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := d.SetSpeed(77); err == nil {
		t.Fatalf("SetSpeed succeeded with no duty file")
	}
	if err := os.WriteFile(dutyPath, []byte("0"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := d.SetSpeed(77); err == nil {
		t.Fatalf("SetSpeed retried the open")
	}
}

func TestClose_FailsLaterOperations(t *testing.T) {
	d, _, _ := newTestPWM(t, "0", "1\n")
	if _, err := d.ReadMode(); err != nil {
		t.Fatalf("ReadMode: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := d.ReadMode(); err == nil {
		t.Fatalf("ReadMode succeeded after Close")
	}
	if err := d.SetSpeed(77); err == nil {
		t.Fatalf("SetSpeed succeeded after Close")
	}
}
