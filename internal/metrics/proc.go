package metrics

import (
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Linux exposes jiffies at 100 Hz on every platform we deploy to.
const clockTicksPerSecond = 100

// procCPUReading captures the cumulative user+system jiffies of this
// process from /proc/self/stat, paired with the wall clock at read time
// so two readings yield a utilization percentage.
type procCPUReading struct {
	jiffies uint64
	readAt  time.Time
}

// readSelfCPU parses /proc/self/stat. Returns nil on any parse failure;
// callers treat nil as "no reading, report 0%".
func readSelfCPU(now time.Time) *procCPUReading {
	return readSelfCPUFrom("/proc/self/stat", now)
}

// readSelfCPUFrom is the path-parameterized version for tests.
// The comm field (2) is parenthesized and may contain spaces, so fields
// are counted from the last ')'. utime and stime are stat fields 14 and
// 15, which land at offsets 11 and 12 of the remainder.
func readSelfCPUFrom(path string, now time.Time) *procCPUReading {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	line := string(data)
	end := strings.LastIndexByte(line, ')')
	if end < 0 {
		return nil
	}
	fields := strings.Fields(line[end+1:])
	if len(fields) < 13 {
		return nil
	}
	utime, err := strconv.ParseUint(fields[11], 10, 64)
	if err != nil {
		return nil
	}
	stime, err := strconv.ParseUint(fields[12], 10, 64)
	if err != nil {
		return nil
	}
	return &procCPUReading{jiffies: utime + stime, readAt: now}
}

// cpuPercent computes process CPU utilization between two readings,
// clamped to [0,100]. Returns 0 if either reading is missing or no wall
// time has passed.
func cpuPercent(previous, current *procCPUReading) float64 {
	if previous == nil || current == nil {
		return 0
	}
	wall := current.readAt.Sub(previous.readAt).Seconds()
	if wall <= 0 || current.jiffies < previous.jiffies {
		return 0
	}
	busy := float64(current.jiffies-previous.jiffies) / clockTicksPerSecond
	pct := busy / wall * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// systemMemoryMB returns (used, total, free) system memory in megabytes
// via syscall.Sysinfo. All zeros if the syscall fails.
func systemMemoryMB() (used, total, free int) {
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return 0, 0, 0
	}
	totalBytes := uint64(info.Totalram) * uint64(info.Unit)
	freeBytes := uint64(info.Freeram) * uint64(info.Unit)
	if totalBytes < freeBytes {
		return 0, 0, 0
	}
	const mb = 1024 * 1024
	return int((totalBytes - freeBytes) / mb), int(totalBytes / mb), int(freeBytes / mb)
}
