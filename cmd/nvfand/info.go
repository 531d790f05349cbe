package main

import (
	"fmt"
	"path/filepath"

	"nvfand/internal/fancontrol"
	"nvfand/internal/sensor"
)

// printSensorInfo writes an inventory of what the configured sensor
// backend can see, for picking an index or chip before writing a config.
func printSensorInfo(src fancontrol.TemperatureSource) error {
	switch s := src.(type) {
	case *sensor.NVSMI:
		gpus, err := s.Devices()
		if err != nil {
			return err
		}
		for _, g := range gpus {
			fmt.Printf("GPU %d: %s\n", g.Index, g.Name)
			fmt.Printf("  driver:      %s\n", g.Driver)
			fmt.Printf("  temperature: %d°C\n", g.TempC)
			fmt.Printf("  memory:      %d MiB used, %d MiB free, %d MiB total\n",
				g.MemUsedMiB, g.MemFreeMiB, g.MemTotalMiB)
			if g.PowerW > 0 {
				fmt.Printf("  power:       %.1f W\n", g.PowerW)
			}
			if g.FanPercent > 0 {
				fmt.Printf("  fan:         %d%%\n", g.FanPercent)
			}
		}
	case *sensor.Hwmon:
		chips, err := s.Chips()
		if err != nil {
			return err
		}
		if len(chips) == 0 {
			return fmt.Errorf("no hwmon chips with temperature inputs found")
		}
		for _, c := range chips {
			fmt.Printf("%s (%s)\n", c.Name, c.Dir)
			for _, in := range c.Inputs {
				label := in.Label
				if label == "" {
					label = "-"
				}
				fmt.Printf("  %s  %-12s %d°C\n", filepath.Join(c.Dir, in.File), label, in.TempC)
			}
		}
	default:
		return fmt.Errorf("sensor backend does not support inventory")
	}
	return nil
}
