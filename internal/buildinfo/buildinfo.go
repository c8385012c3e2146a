// Package buildinfo reports the version baked into the binary.
package buildinfo

import "runtime/debug"

// Version returns the module version, falling back to the VCS revision
// for untagged builds and "dev" when neither is recorded.
func Version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return "dev"
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 12 {
			return setting.Value[:12]
		}
	}
	return "dev"
}
