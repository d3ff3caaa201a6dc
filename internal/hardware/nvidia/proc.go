package nvidia

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

// procDriverVersionPath is written by the NVIDIA kernel module while
// it is loaded.
const procDriverVersionPath = "/proc/driver/nvidia/version"

var versionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)+$`)

// probeProc derives driver state from the procfs version file. A
// missing file means the driver is not loaded, which is a valid
// result, not an error.
func probeProc(path string) (*DriverInfo, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &DriverInfo{Loaded: false}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	version, err := parseProcDriverVersion(f)
	if err != nil {
		return nil, err
	}
	return &DriverInfo{
		Loaded:        true,
		DriverVersion: version,
		Source:        "proc",
	}, nil
}

// parseProcDriverVersion extracts the driver version from the NVRM
// line, e.g.
//
//	NVRM version: NVIDIA UNIX x86_64 Kernel Module  550.54.14  Thu Feb 22 01:44:30 UTC 2024
func parseProcDriverVersion(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "NVRM version:") {
			continue
		}
		for _, field := range strings.Fields(line) {
			if versionPattern.MatchString(field) {
				return field, nil
			}
		}
		return "", fmt.Errorf("no driver version in %q", line)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no NVRM version line found")
}
