// Package version reports the plugsmith build.
package version

import "runtime/debug"

// Version, GitCommit and BuildTime are injected with
// -ldflags "-X git.home.luguber.info/inful/plugsmith/internal/version.Version=v0.3.0".
// Unset values fall back to the module build info embedded by the go tool.
var (
	Version   = ""
	GitCommit = ""
	BuildTime = ""
)

const unknown = "unknown"

// Info is the resolved build identity.
type Info struct {
	Version   string
	GitCommit string
	BuildTime string
}

// Get resolves the build identity.
func Get() Info {
	info := Info{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		if info.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if info.GitCommit == "" {
					info.GitCommit = s.Value
				}
			case "vcs.time":
				if info.BuildTime == "" {
					info.BuildTime = s.Value
				}
			}
		}
	}
	if info.Version == "" {
		info.Version = unknown
	}
	if info.GitCommit == "" {
		info.GitCommit = unknown
	}
	if len(info.GitCommit) > 12 {
		info.GitCommit = info.GitCommit[:12]
	}
	if info.BuildTime == "" {
		info.BuildTime = unknown
	}
	return info
}

// String renders the line printed by --version.
func String() string {
	i := Get()
	return "plugsmith " + i.Version + " (commit " + i.GitCommit + ", built " + i.BuildTime + ")"
}
