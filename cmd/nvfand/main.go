package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"nvfand/internal/config"
	"nvfand/internal/fancontrol"
	"nvfand/internal/flock"
	"nvfand/internal/sensor"
	"nvfand/internal/web"
)

func main() {
	var (
		configPath  string
		intervalSec float64
		showInfo    bool
	)
	flag.StringVar(&configPath, "config", "", "path to YAML config")
	flag.Float64Var(&intervalSec, "interval", 0, "seconds between temperature polls (default 2)")
	flag.BoolVar(&showInfo, "info", false, "print GPU and sensor details, then exit")
	flag.Parse()

	cfg, err := buildConfig(configPath, flag.Arg(0), intervalSec)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if showInfo {
		src, err := newSource(cfg)
		if err != nil {
			log.Fatalf("sensor init failed: %v", err)
		}
		if err := printSensorInfo(src); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	if cfg.Daemon.LockFile != "" {
		lock, err := flock.Acquire(cfg.Daemon.LockFile)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer lock.Release()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st := web.NewStatus()
	var holder atomic.Pointer[fancontrol.Controller]
	fanSnap := func() fancontrol.Snapshot { return holder.Load().Snapshot() }

	if cfg.Web.Listen != "" {
		logs := web.NewLogBuffer(2000)
		log.SetOutput(io.MultiWriter(os.Stderr, logs))
		go func() {
			err := web.Serve(ctx, cfg.Web.Listen, st, fanSnap, logs)
			if err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
		log.Printf("web listening on %s", cfg.Web.Listen)
	}
	setStaticStatus(st, cfg, configPath)

	var cfgCh chan config.Config
	if cfg.Daemon.WatchConfig && configPath != "" {
		events, err := config.Watch(ctx, configPath, config.DefaultWatchDebounce)
		if err != nil {
			log.Printf("config watch failed: %v", err)
		} else {
			cfgCh = make(chan config.Config, 1)
			go watchReloads(ctx, events, configPath, flag.Arg(0), intervalSec, cfgCh)
			log.Printf("watching %s for changes", configPath)
		}
	}

	log.Printf("nvfand starting")
	logConfig(cfg)

	if err := runControl(ctx, cfg, &holder, st, configPath, cfgCh); err != nil {
		log.Fatalf("%v", err)
	}
	log.Printf("nvfand stopping")
}

// buildConfig merges the config file, the positional PWM path, and the
// interval flag. Flags win over the file; the file wins over defaults.
func buildConfig(path, pwmArg string, intervalSec float64) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	} else {
		cfg = config.Default()
	}

	if pwmArg != "" {
		cfg.Fan.PWMPath = pwmArg
	}
	if intervalSec != 0 {
		cfg.Fan.Interval = time.Duration(intervalSec * float64(time.Second))
	}
	if cfg.Fan.Interval < config.MinInterval {
		log.Printf("interval %s below minimum, using %s", cfg.Fan.Interval, config.MinInterval)
		cfg.Fan.Interval = config.MinInterval
	}
	return cfg, nil
}

func newSource(cfg config.Config) (fancontrol.TemperatureSource, error) {
	switch cfg.Sensor.Backend {
	case "hwmon":
		return sensor.NewHwmon(cfg.Sensor.HwmonChip, cfg.Sensor.HwmonInput), nil
	default:
		return sensor.NewNVSMI()
	}
}

func controllerConfig(cfg config.Config) fancontrol.Config {
	return fancontrol.Config{
		Backend:     cfg.Fan.Backend,
		PWMPath:     cfg.Fan.PWMPath,
		GPIOChip:    cfg.Fan.GPIOChip,
		GPIOLine:    cfg.Fan.GPIOLine,
		Interval:    cfg.Fan.Interval,
		SensorIndex: cfg.Sensor.Index,
	}
}

func setStaticStatus(st *web.Status, cfg config.Config, configPath string) {
	fanPath := cfg.Fan.PWMPath
	if cfg.Fan.Backend == "gpio" {
		fanPath = fmt.Sprintf("%s:%d", cfg.Fan.GPIOChip, cfg.Fan.GPIOLine)
	}
	st.SetStatic(cfg.Fan.Backend, fanPath, cfg.Sensor.Backend, cfg.Fan.Interval.String(), configPath)
}

func logConfig(cfg config.Config) {
	switch cfg.Fan.Backend {
	case "gpio":
		log.Printf("fan backend=gpio chip=%s line=%d interval=%s", cfg.Fan.GPIOChip, cfg.Fan.GPIOLine, cfg.Fan.Interval)
	default:
		log.Printf("fan backend=pwm path=%s interval=%s", cfg.Fan.PWMPath, cfg.Fan.Interval)
	}
	log.Printf("sensor backend=%s index=%d", cfg.Sensor.Backend, cfg.Sensor.Index)
}

// watchReloads turns file-change events into validated configs. A newer
// config replaces one still waiting in the channel.
func watchReloads(ctx context.Context, events <-chan struct{}, path, pwmArg string, intervalSec float64, out chan config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
		}

		cfg, err := buildConfig(path, pwmArg, intervalSec)
		if err != nil {
			log.Printf("config reload failed: %v", err)
			continue
		}
		if err := cfg.Validate(); err != nil {
			log.Printf("config reload invalid: %v", err)
			continue
		}

		select {
		case out <- cfg:
		default:
			select {
			case <-out:
			default:
			}
			out <- cfg
		}
	}
}

// runControl runs one controller per config generation. Tearing a
// generation down restores the fan to automatic before the next one
// takes over, so every manual-mode episode ends cleanly.
func runControl(ctx context.Context, cfg config.Config, holder *atomic.Pointer[fancontrol.Controller], st *web.Status, configPath string, cfgCh chan config.Config) error {
	first := true
	for {
		src, err := newSource(cfg)
		var ctl *fancontrol.Controller
		if err == nil {
			ctl, err = fancontrol.New(controllerConfig(cfg), src)
		}
		if err != nil {
			if first {
				return err
			}
			log.Printf("fan control restart failed: %v", err)
			log.Printf("fan is in automatic control until the next valid config")
		} else {
			first = false
			holder.Store(ctl)
		}

		if ctl != nil {
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				ctl.Run(runCtx)
			}()

			select {
			case <-ctx.Done():
				cancel()
				<-done
				return nil
			case next := <-cfgCh:
				cancel()
				<-done
				// Shutdown wins over a reload that arrived in the same
				// instant; never start a generation just to tear it down.
				if ctx.Err() != nil {
					return nil
				}
				log.Printf("config changed, restarting fan control")
				cfg = next
				setStaticStatus(st, cfg, configPath)
				logConfig(cfg)
				continue
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case next := <-cfgCh:
			if ctx.Err() != nil {
				return nil
			}
			cfg = next
			setStaticStatus(st, cfg, configPath)
			logConfig(cfg)
		}
	}
}
