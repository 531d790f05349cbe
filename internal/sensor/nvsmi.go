// Package sensor provides the temperature sources the fan controller
// polls: NVIDIA GPUs via nvidia-smi and generic chips via /sys/class/hwmon.
package sensor

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// runNVSMI is swapped in tests.
var runNVSMI = func(path string, args ...string) ([]byte, error) {
	return exec.Command(path, args...).Output()
}

// NVSMI reads NVIDIA GPU temperatures and inventory by invoking
// nvidia-smi with CSV output.
type NVSMI struct {
	// Path is the nvidia-smi binary.
	Path string
}

// NewNVSMI resolves nvidia-smi from PATH. Missing driver tooling is a
// startup-time failure, not a per-tick one.
func NewNVSMI() (*NVSMI, error) {
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		return nil, fmt.Errorf("sensor: nvidia-smi not found: %w", err)
	}
	return &NVSMI{Path: path}, nil
}

// ReadTemperature returns one GPU's temperature in whole degrees C. The
// driver reports 0 when the sensor is unavailable, so zero is treated as
// no reading.
func (n *NVSMI) ReadTemperature(index int) (int, error) {
	out, err := runNVSMI(n.Path,
		"--query-gpu=temperature.gpu",
		"--format=csv,noheader,nounits",
		fmt.Sprintf("--id=%d", index))
	if err != nil {
		return 0, fmt.Errorf("sensor: nvidia-smi: %w", err)
	}
	s := strings.TrimSpace(string(out))
	tempC, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("sensor: bad temperature %q: %w", s, err)
	}
	if tempC <= 0 {
		return 0, fmt.Errorf("sensor: gpu %d reported no temperature", index)
	}
	return tempC, nil
}

// GPU is one device as reported by nvidia-smi, for inventory output.
type GPU struct {
	Index       int
	Name        string
	Driver      string
	TempC       int
	MemUsedMiB  uint64
	MemTotalMiB uint64
	MemFreeMiB  uint64
	PowerW      float64
	FanPercent  int
}

// Devices queries every GPU. Fields nvidia-smi reports as "[N/A]" come
// back zero; only the line structure and the index are required.
func (n *NVSMI) Devices() ([]GPU, error) {
	out, err := runNVSMI(n.Path,
		"--query-gpu=index,name,driver_version,temperature.gpu,memory.used,memory.total,memory.free,power.draw,fan.speed",
		"--format=csv,noheader,nounits")
	if err != nil {
		return nil, fmt.Errorf("sensor: nvidia-smi: %w", err)
	}
	return parseGPUList(string(out))
}

func parseGPUList(out string) ([]GPU, error) {
	var gpus []GPU
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 9 {
			return nil, fmt.Errorf("sensor: unexpected nvidia-smi line %q", line)
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("sensor: bad gpu index in %q", line)
		}
		g := GPU{Index: idx, Name: fields[1], Driver: fields[2]}
		g.TempC, _ = strconv.Atoi(fields[3])
		g.MemUsedMiB, _ = strconv.ParseUint(fields[4], 10, 64)
		g.MemTotalMiB, _ = strconv.ParseUint(fields[5], 10, 64)
		g.MemFreeMiB, _ = strconv.ParseUint(fields[6], 10, 64)
		g.PowerW, _ = strconv.ParseFloat(fields[7], 64)
		g.FanPercent, _ = strconv.Atoi(fields[8])
		gpus = append(gpus, g)
	}
	if len(gpus) == 0 {
		return nil, fmt.Errorf("sensor: nvidia-smi reported no devices")
	}
	return gpus, nil
}
