package web

import (
	"sync/atomic"
	"time"

	"nvfand/internal/fancontrol"
)

// Status carries the slow-changing daemon facts shown by /api/status.
// Live control-loop data comes from the controller snapshot instead.
type Status struct {
	startUnixNano int64
	fanBackend    atomic.Value // string
	fanPath       atomic.Value // string
	sensor        atomic.Value // string
	interval      atomic.Value // string
	configPath    atomic.Value // string
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.fanBackend.Store("")
	s.fanPath.Store("")
	s.sensor.Store("")
	s.interval.Store("")
	s.configPath.Store("")
	return s
}

// SetStatic records the configuration summary. Empty strings leave the
// previous value in place so reloads only overwrite what they change.
func (s *Status) SetStatic(fanBackend, fanPath, sensor, interval, configPath string) {
	if fanBackend != "" {
		s.fanBackend.Store(fanBackend)
	}
	if fanPath != "" {
		s.fanPath.Store(fanPath)
	}
	if sensor != "" {
		s.sensor.Store(sensor)
	}
	if interval != "" {
		s.interval.Store(interval)
	}
	if configPath != "" {
		s.configPath.Store(configPath)
	}
}

type StatusResponse struct {
	Service    string              `json:"service"`
	NowUTC     string              `json:"now_utc"`
	UptimeSec  int64               `json:"uptime_sec"`
	FanBackend string              `json:"fan_backend"`
	FanPath    string              `json:"fan_path,omitempty"`
	Sensor     string              `json:"sensor"`
	Interval   string              `json:"interval"`
	ConfigPath string              `json:"config_path,omitempty"`
	Control    fancontrol.Snapshot `json:"control"`
}

func (s *Status) Snapshot(nowUTC time.Time, control fancontrol.Snapshot) StatusResponse {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()

	return StatusResponse{
		Service:    "nvfand",
		NowUTC:     nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec:  int64(nowUTC.Sub(start).Seconds()),
		FanBackend: s.fanBackend.Load().(string),
		FanPath:    s.fanPath.Load().(string),
		Sensor:     s.sensor.Load().(string),
		Interval:   s.interval.Load().(string),
		ConfigPath: s.configPath.Load().(string),
		Control:    control,
	}
}
