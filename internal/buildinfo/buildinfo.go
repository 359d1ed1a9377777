// Package buildinfo exposes version information stamped at build time.
package buildinfo

import "fmt"

// Version is overridden at build time via
// -ldflags "-X github.com/Dizzy12138/bio-agent/internal/buildinfo.Version=...".
var Version = "dev"

// Name is the product name used in logs and the User-Agent header.
const Name = "bioagent"

// UserAgent returns the User-Agent string for outbound HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("%s/%s", Name, Version)
}
