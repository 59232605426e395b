package preflight

import (
	"fmt"
	"net"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"resonance/internal/baseline"
	"resonance/internal/mapping"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckMappingDocument loads the default indicator mapping, embedded when
// path is empty.
func CheckMappingDocument(path string) Result {
	const name = "Indicator mapping"
	doc, err := mapping.LoadDefaultDocument(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", sourceLabel(path), err)}
	}
	if len(doc) == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: no indicators defined)", sourceLabel(path))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d indicators)", sourceLabel(path), len(doc))}
}

// CheckPopulationBaseline loads the population baseline, embedded when path
// is empty.
func CheckPopulationBaseline(path string) Result {
	const name = "Population baseline"
	metrics, err := baseline.LoadPopulation(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", sourceLabel(path), err)}
	}
	for metric, stat := range metrics {
		if stat.Std <= 0 {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s has non-positive std)", sourceLabel(path), metric)}
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d metrics)", sourceLabel(path), len(metrics))}
}

// CheckAPIExposure fails when the API listens beyond loopback without a
// bearer token.
func CheckAPIExposure(bind, token string) Result {
	const name = "API exposure"
	host, _, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", bind, err)}
	}
	if isLoopback(host) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (loopback only)", bind)}
	}
	if strings.TrimSpace(token) == "" {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: non-loopback bind requires paths.api_token)", bind)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (token required)", bind)}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func sourceLabel(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
