package pipeline

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// checkResources verifies free disk in the working directory and
// available memory before a task starts downloading. Probe errors are
// ignored; only a confirmed shortage blocks the task.
func checkResources(tempDir string, minDisk, minMem int64) error {
	if minDisk > 0 {
		if usage, err := disk.Usage(tempDir); err == nil && int64(usage.Free) < minDisk {
			return fmt.Errorf("low disk space in %s: %s free, %s required",
				tempDir,
				datasize.ByteSize(usage.Free).HumanReadable(),
				datasize.ByteSize(minDisk).HumanReadable())
		}
	}
	if minMem > 0 {
		if vm, err := mem.VirtualMemory(); err == nil && int64(vm.Available) < minMem {
			return fmt.Errorf("low memory: %s available, %s required",
				datasize.ByteSize(vm.Available).HumanReadable(),
				datasize.ByteSize(minMem).HumanReadable())
		}
	}
	return nil
}
