package main

import (
	"fmt"
	"runtime/debug"
)

// Overridden via -ldflags on release builds. Anything else (go install,
// a plain go build) falls back to the module's embedded build info.
var version = "dev"

func buildVersionString() string {
	ver := version
	rev := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		if ver == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			ver = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if len(s.Value) >= 7 {
					rev = s.Value[:7]
				}
			case "vcs.modified":
				if s.Value == "true" && rev != "" {
					rev += "-dirty"
				}
			}
		}
	}
	if rev == "" {
		return fmt.Sprintf("td %s", ver)
	}
	return fmt.Sprintf("td %s (%s)", ver, rev)
}
