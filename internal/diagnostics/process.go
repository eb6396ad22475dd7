package diagnostics

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

type ScanResult struct {
	Supported bool
	Found     bool
	Matches   []string
}

// ProcessScanner looks for running processes whose name contains indicator.
// Implementations report Supported=false instead of failing on platforms
// they cannot inspect.
type ProcessScanner interface {
	Scan(ctx context.Context, indicator string) (ScanResult, error)
}

type GopsutilScanner struct {
	goos string
}

func NewGopsutilScanner() *GopsutilScanner {
	return &GopsutilScanner{goos: runtime.GOOS}
}

var scannablePlatforms = map[string]bool{
	"linux": true, "darwin": true, "windows": true,
	"freebsd": true, "openbsd": true, "solaris": true, "aix": true,
}

func (s *GopsutilScanner) Scan(ctx context.Context, indicator string) (ScanResult, error) {
	if !scannablePlatforms[s.goos] {
		return ScanResult{Supported: false}, nil
	}

	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return ScanResult{}, fmt.Errorf("list processes: %w", err)
	}

	indicator = strings.ToLower(indicator)
	res := ScanResult{Supported: true}
	for _, p := range procs {
		// Processes can exit or be unreadable between listing and inspection.
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(name), indicator) {
			res.Matches = append(res.Matches, fmt.Sprintf("%s (pid %d)", name, p.Pid))
		}
	}
	res.Found = len(res.Matches) > 0
	return res, nil
}
