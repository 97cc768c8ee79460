package osutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/pbnjay/memory"
)

// cgroup v1 reports this (page aligned MaxInt64) when no limit is set.
const unlimitedCgroupV1 = 9223372036854771712

var cgroupLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",
	"/sys/fs/cgroup/memory/memory.limit_in_bytes",
}

// GetTotalMemory returns the memory available to the process: the container
// limit when one is set, and the physical memory of the host otherwise.
func GetTotalMemory() uint64 {
	for _, path := range cgroupLimitFiles {
		if limit, ok := readCgroupLimit(path); ok {
			return limit
		}
	}
	return memory.TotalMemory()
}

func readCgroupLimit(path string) (uint64, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	return parseCgroupLimit(string(raw))
}

func parseCgroupLimit(raw string) (uint64, bool) {
	value := strings.TrimSpace(raw)
	if value == "max" {
		return 0, false
	}

	limit, err := strconv.ParseUint(value, 10, 64)
	if err != nil || limit == 0 || limit >= unlimitedCgroupV1 {
		return 0, false
	}
	return limit, true
}
