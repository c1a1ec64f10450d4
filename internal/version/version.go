// Package version exposes build metadata for Stellar Online.
package version

import "fmt"

// Set at build time with -ldflags "-X github.com/edumarques81/stellar-online/internal/version.Version=...".
var (
	Name      = "Stellar Online"
	Version   = "0.1.0"
	BuildTime = ""
	GitCommit = ""
)

// Info is the JSON shape served by /api/v1/version.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildTime string `json:"buildTime,omitempty"`
	GitCommit string `json:"gitCommit,omitempty"`
}

// GetInfo returns the current version information.
func GetInfo() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}
}

// String returns a banner line such as "Stellar Online v0.1.0 (abc1234)".
func (i Info) String() string {
	s := fmt.Sprintf("%s v%s", i.Name, i.Version)
	if i.GitCommit != "" {
		s += fmt.Sprintf(" (%s)", i.GitCommit[:min(7, len(i.GitCommit))])
	}
	if i.BuildTime != "" {
		s += fmt.Sprintf(" built %s", i.BuildTime)
	}
	return s
}

// UserAgent is sent on outbound HTTP requests such as cover downloads.
func UserAgent() string {
	return fmt.Sprintf("stellar-online/%s", Version)
}
