package main

import (
	"runtime/debug"

	"tokenwarden/cmd"
)

// version is stamped by the release build with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cmd.SetVersion(resolveVersion())
	cmd.Execute()
}

// resolveVersion falls back to the module version recorded by
// "go install tokenwarden@vX" when no ldflags value was supplied.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}
