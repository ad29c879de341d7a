package version

import (
	"errors"
	"runtime/debug"
)

// Info describes the running build. It is embedded in ledger rows and served
// by the version endpoint.
type Info struct {
	Arch         string `json:"arch"`
	Revision     string `json:"revision"`
	RevisionTime string `json:"revision_time"`
	Version      string `json:"version"`
}

// GetInfo reads version details from the binary's build metadata. It fails
// only when the binary was built without module support.
func GetInfo() (*Info, error) {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return nil, errors.New("could not read build info")
	}

	info := &Info{
		Version: buildInfo.Main.Version,
	}
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.Revision = setting.Value + info.Revision
		case "vcs.time":
			info.RevisionTime = setting.Value
		case "vcs.modified":
			if setting.Value == "true" {
				info.Revision += "+dirty"
			}
		case "GOARCH":
			info.Arch = setting.Value
		}
	}

	return info, nil
}
