package fancontrol

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// TemperatureSource supplies whole-degree Celsius readings for a device
// index. Implementations live in internal/sensor; any error means "no
// reading this tick".
type TemperatureSource interface {
	ReadTemperature(index int) (int, error)
}

type Config struct {
	// Backend selects the fan device: "pwm" (hwmon duty + enable files)
	// or "gpio" (on/off line for 2-wire fans).
	Backend string
	// PWMPath is the hwmon duty file, e.g. /sys/class/hwmon/hwmon3/pwm1.
	PWMPath string
	// GPIOChip and GPIOLine locate the fan switch for the gpio backend.
	GPIOChip string
	GPIOLine int
	// Interval is the poll period. Values <= 0 fall back to 2s.
	Interval time.Duration
	// SensorIndex is the device asked of the temperature source.
	SensorIndex int
}

type Snapshot struct {
	State string `json:"state"`

	SensorOK bool `json:"sensor_ok"`
	TempC    int  `json:"temp_c"`

	Duty        uint8 `json:"duty"`
	DutyPercent int   `json:"duty_percent"`

	WritesTotal     uint64 `json:"writes_total"`
	SuppressedTotal uint64 `json:"suppressed_total"`

	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

// Controller owns one fan device for its whole lifetime: construction
// switches the device to manual control, Run drives the poll loop, and
// cleanup hands the fan back to the firmware exactly once no matter how
// the loop ends.
type Controller struct {
	cfg Config
	src TemperatureSource
	dev Device

	// Last pair actually written. Ticks producing the same pair write
	// nothing; a failed write leaves it unchanged so the next tick
	// retries the same target.
	lastTemp int
	lastDuty uint8

	mu   sync.RWMutex
	snap Snapshot

	closeOnce sync.Once
}

// New opens the configured fan device and switches it to manual control.
// No controller comes back unless manual mode is confirmed; on failure
// the device is closed and the firmware keeps control.
func New(cfg Config, src TemperatureSource) (*Controller, error) {
	if src == nil {
		return nil, fmt.Errorf("fancontrol: temperature source is required")
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendPWM
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}

	var dev Device
	var err error
	switch cfg.Backend {
	case BackendPWM:
		dev, err = openPWMFn(cfg.PWMPath)
	case BackendGPIO:
		dev, err = openGPIOFn(cfg.GPIOChip, cfg.GPIOLine)
	default:
		err = fmt.Errorf("fancontrol: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if err := dev.SetMode(Manual); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("fancontrol: enter manual mode: %w", err)
	}

	c := &Controller{cfg: cfg, src: src, dev: dev}
	c.snap.State = "running"
	return c, nil
}

// Run polls until ctx is canceled, then restores the device. One goroutine
// owns the loop and the device handles; cleanup runs on that same
// goroutine after the loop exits, so an in-flight write always completes
// before shutdown is observed.
func (c *Controller) Run(ctx context.Context) {
	defer c.Close()

	t := time.NewTicker(c.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.tick()
		}
	}
}

func (c *Controller) tick() {
	tempC, err := c.src.ReadTemperature(c.cfg.SensorIndex)
	if err != nil {
		c.fallbackToIdle(err)
		return
	}

	duty := DutyFor(tempC)
	if tempC == c.lastTemp && duty == c.lastDuty {
		c.setState(func(sn *Snapshot) {
			sn.SensorOK = true
			sn.TempC = tempC
			sn.SuppressedTotal++
		})
		return
	}

	if err := c.dev.SetSpeed(duty); err != nil {
		log.Printf("fancontrol: set speed failed: %v", err)
		c.setErr(err)
		return
	}
	c.lastTemp = tempC
	c.lastDuty = duty
	log.Printf("fancontrol: temp=%d°C duty=%d/255 (%d%%)", tempC, duty, dutyPercent(duty))
	c.setState(func(sn *Snapshot) {
		sn.SensorOK = true
		sn.TempC = tempC
		sn.Duty = duty
		sn.DutyPercent = dutyPercent(duty)
		sn.WritesTotal++
		sn.LastError = ""
	})
}

// fallbackToIdle eases the fan to the idle floor when no reading is
// available, writing at most once per outage. Only the duty half of the
// last pair moves; the stale temperature stays.
func (c *Controller) fallbackToIdle(cause error) {
	if c.lastDuty == DutyIdle {
		c.setState(func(sn *Snapshot) {
			sn.SensorOK = false
			sn.LastError = cause.Error()
		})
		return
	}
	if err := c.dev.SetSpeed(DutyIdle); err != nil {
		log.Printf("fancontrol: idle fallback failed: %v", err)
		c.setState(func(sn *Snapshot) {
			sn.SensorOK = false
			sn.LastError = err.Error()
		})
		return
	}
	c.lastDuty = DutyIdle
	log.Printf("fancontrol: no reading (%v), easing to idle duty %d", cause, DutyIdle)
	c.setState(func(sn *Snapshot) {
		sn.SensorOK = false
		sn.Duty = DutyIdle
		sn.DutyPercent = dutyPercent(DutyIdle)
		sn.WritesTotal++
		sn.LastError = cause.Error()
	})
}

// Close restores the fan to the firmware: idle duty first so the fan is
// never abandoned at a stale speed, then automatic mode, then the cached
// handles. Idempotent and best-effort; failures are logged because the
// process is exiting anyway.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		if err := c.dev.SetSpeed(DutyIdle); err != nil {
			log.Printf("fancontrol: restore idle duty failed: %v", err)
		}
		if err := c.dev.SetMode(Automatic); err != nil {
			log.Printf("fancontrol: restore automatic mode failed: %v", err)
		}
		if err := c.dev.Close(); err != nil {
			log.Printf("fancontrol: close device failed: %v", err)
		}
		c.setState(func(sn *Snapshot) {
			sn.State = "stopped"
			sn.Duty = DutyIdle
			sn.DutyPercent = dutyPercent(DutyIdle)
		})
		log.Printf("fancontrol: fan restored to automatic control")
	})
}

func (c *Controller) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Controller) setErr(err error) {
	c.setState(func(sn *Snapshot) { sn.LastError = err.Error() })
}

func (c *Controller) setState(update func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update(&c.snap)
	c.snap.LastUpdateAt = time.Now().UTC()
}

func dutyPercent(d uint8) int {
	return int(d) * 100 / 255
}
