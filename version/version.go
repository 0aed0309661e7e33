package version

// will be replaced with the release version when using goreleaser
var version = "development"

// UpdaterVersion returns the version of the running updater build
func UpdaterVersion() string {
	return version
}
