package ffmpeg

import (
	"fmt"
	"time"

	"fftransform/config"
	"fftransform/logging"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceChecker refuses new ffmpeg runs while the host is below the
// configured idle CPU, free memory or free disk thresholds. A zero threshold
// disables that check.
type ResourceChecker struct {
	minIdleCPU  float64
	minFreeMem  uint64
	minFreeDisk uint64
	dir         string
	logger      zerolog.Logger
}

// NewResourceChecker returns a checker measuring free disk space in dir.
func NewResourceChecker(cfg *config.Config, dir string) *ResourceChecker {
	return &ResourceChecker{
		minIdleCPU:  cfg.ThrottleCPU,
		minFreeMem:  uint64(cfg.ThrottleFreeMem),
		minFreeDisk: uint64(cfg.ThrottleFreeDisk),
		dir:         dir,
		logger:      logging.WithComponent("resources"),
	}
}

// Check returns an overloaded error when any enabled threshold is not met.
// Measurement failures are logged and do not block the run.
func (c *ResourceChecker) Check() error {
	if c.minIdleCPU > 0 {
		p, err := cpu.Percent(time.Second, false)
		if err != nil {
			c.logger.Warn().Err(err).Msg("could not get CPU usage")
		} else if len(p) > 0 && p[0] > 100.0-c.minIdleCPU {
			return overloaded(fmt.Sprintf("not enough idle CPU: usage %.2f%%, idle threshold %.2f%%", p[0], c.minIdleCPU))
		}
	}

	if c.minFreeMem > 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			c.logger.Warn().Err(err).Msg("could not get memory usage")
		} else if vm.Available < c.minFreeMem {
			return overloaded(fmt.Sprintf("not enough free memory: available %d, required %d", vm.Available, c.minFreeMem))
		}
	}

	if c.minFreeDisk > 0 {
		d, err := disk.Usage(c.dir)
		if err != nil {
			c.logger.Warn().Err(err).Str(logging.FieldPath, c.dir).Msg("could not get disk usage")
		} else if d.Free < c.minFreeDisk {
			return overloaded(fmt.Sprintf("not enough free disk space: available %d, required %d", d.Free, c.minFreeDisk))
		}
	}
	return nil
}

func overloaded(detail string) error {
	return &Error{Kind: KindOverloaded, Detail: detail}
}
