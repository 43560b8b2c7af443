package repo

import (
	"fmt"
	"runtime"
)

// overwritten at build time by -ldflags
var (
	BuildVersion = "dev"
	BuildBranch  = "dev"
	BuildCommit  = "dev"
	BuildDate    = "unknown"
)

var (
	GoVersion = runtime.Version()
	Platform  = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)
