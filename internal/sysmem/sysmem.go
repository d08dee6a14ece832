// Package sysmem probes available system memory for pre-flight checks.
package sysmem

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const meminfoPath = "/proc/meminfo"

// Available reports the bytes of memory the kernel considers available for
// new allocations (MemAvailable from /proc/meminfo).
func Available() (int64, error) {
	f, err := os.Open(meminfoPath)
	if err != nil {
		return 0, fmt.Errorf("sysmem: opening %s: %w", meminfoPath, err)
	}
	defer f.Close()
	return parseMeminfo(f)
}

// parseMeminfo scans meminfo-format lines for MemAvailable. Values are in
// kibibytes per procfs convention.
func parseMeminfo(r io.Reader) (int64, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, fmt.Errorf("sysmem: malformed MemAvailable line %q", line)
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("sysmem: parsing MemAvailable: %w", err)
		}
		return kb * 1024, nil
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("sysmem: reading meminfo: %w", err)
	}
	return 0, fmt.Errorf("sysmem: MemAvailable not present")
}
