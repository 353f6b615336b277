package session

import (
	"os"
	"runtime"
	"strings"
)

// DeviceSignature fingerprints the local machine for CLI sessions.
func DeviceSignature() string {
	host, _ := os.Hostname()
	return strings.Join([]string{host, runtime.GOOS, runtime.GOARCH}, "|")
}
