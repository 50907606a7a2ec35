// Package platform locates tool executables using per-OS install conventions.
//
// The generator ships as a pub global package, so its launcher lives in the pub
// cache: a .bat wrapper under %LOCALAPPDATA% on Windows, a plain script under
// ~/.pub-cache elsewhere. Resolvers are plain values injected into the
// generator invoker; nothing here reads the environment after Detect returns.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

// PathResolver maps a tool name to the absolute path of its launcher.
type PathResolver interface {
	Resolve(tool string) string
}

// Windows resolves tools installed under %LOCALAPPDATA%\Pub\Cache\bin.
type Windows struct {
	LocalAppData string
}

func (w Windows) Resolve(tool string) string {
	return filepath.Join(w.LocalAppData, "Pub", "Cache", "bin", tool+".bat")
}

// Unix resolves tools installed under ~/.pub-cache/bin.
type Unix struct {
	Home string
}

func (u Unix) Resolve(tool string) string {
	return filepath.Join(u.Home, ".pub-cache", "bin", tool)
}

// Fixed always resolves to Path, ignoring the tool name. Used when the
// executable location is configured explicitly.
type Fixed struct {
	Path string
}

func (f Fixed) Resolve(string) string {
	return f.Path
}

// Detect returns the resolver for the running OS, reading the environment once.
func Detect() PathResolver {
	return ForOS(runtime.GOOS, os.Getenv, os.UserHomeDir)
}

// ForOS picks a resolver for goos using the given environment lookups.
func ForOS(goos string, getenv func(string) string, home func() (string, error)) PathResolver {
	if goos == "windows" {
		return Windows{LocalAppData: getenv("LOCALAPPDATA")}
	}
	dir, err := home()
	if err != nil || dir == "" {
		dir = getenv("HOME")
	}
	return Unix{Home: dir}
}
