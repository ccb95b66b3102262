package version

import (
	"fmt"
	"runtime"
)

// Version is set at build time with
// -ldflags "-X github.com/mumoshu/runjob/version.Version=v1.0.0".
var Version = "dev"

type Info struct {
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Get() Info {
	return Info{
		Version:   Version,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
