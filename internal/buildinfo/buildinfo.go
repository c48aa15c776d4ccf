// Package buildinfo carries version identifiers injected at build time via
// -ldflags, surfaced by the health and debug endpoints.
package buildinfo

var (
	Version = "dev"
	Commit  = ""
	BuiltAt = ""
)

func Info() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"builtAt": BuiltAt,
	}
}
