// Package version holds build metadata set with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func String() string {
	return fmt.Sprintf("promptchain %s (commit=%s build_date=%s %s)", Version, Commit, BuildDate, runtime.Version())
}
