package version

import (
	"runtime/debug"
	"strings"
)

// Info holds the build identity of a binary, usually injected via -ldflags.
type Info struct {
	Version string
	Commit  string
	Date    string
}

// String resolves placeholders against Go build info and formats a single
// human-readable line, e.g. "v1.2.3 (abc1234) 2026-01-02T15:04:05Z".
func (in Info) String() string {
	v := strings.TrimSpace(in.Version)
	c := strings.TrimSpace(in.Commit)
	d := strings.TrimSpace(in.Date)

	if bi, ok := debug.ReadBuildInfo(); ok {
		if unset(v) {
			if mv := strings.TrimSpace(bi.Main.Version); mv != "" && mv != "(devel)" {
				v = mv
			}
		}
		if unset(c) {
			c = vcsSetting(bi, "vcs.revision")
		}
		if unset(d) {
			d = vcsSetting(bi, "vcs.time")
		}
	}

	var b strings.Builder
	if unset(v) {
		b.WriteString("dev")
	} else {
		b.WriteString(v)
	}
	if !unset(c) {
		b.WriteString(" (")
		b.WriteString(c)
		b.WriteString(")")
	}
	if !unset(d) {
		b.WriteString(" ")
		b.WriteString(d)
	}
	return b.String()
}

func unset(s string) bool {
	switch s {
	case "", "dev", "unknown", "(devel)":
		return true
	}
	return false
}

func vcsSetting(bi *debug.BuildInfo, key string) string {
	for _, s := range bi.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
