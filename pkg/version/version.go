// Package version holds build information stamped in at link time.
package version

// Info describes the build.
type Info struct {
	GitCommit string `json:"gitCommit" yaml:"gitCommit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
}

// Stamped via -ldflags at build time.
var (
	commit    = "unknown"
	buildDate = "unknown"
)

func Get() Info {
	return Info{
		GitCommit: commit,
		BuildDate: buildDate,
	}
}
