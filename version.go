package lingoflow

// Build metadata. Override at link time:
//
//	go build -ldflags "-X github.com/ZaguanLabs/lingoflow.GitCommit=$(git rev-parse HEAD)"
const (
	Name        = "lingoflow"
	Description = "Rate-limited, resumable translation of JSON documents and articles"
	Version     = "0.3.0"
)

var (
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// FullVersion returns the version string with the short commit, if known.
func FullVersion() string {
	v := Version
	if GitCommit != "unknown" && GitCommit != "" {
		short := GitCommit
		if len(short) > 7 {
			short = short[:7]
		}
		v += "+" + short
	}
	return v
}

// UserAgent returns a user agent string for outbound HTTP requests.
func UserAgent() string {
	return Name + "/" + Version
}
