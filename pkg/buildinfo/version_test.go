package buildinfo

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	defer func(v, c, d string) { Version, Commit, Date = v, c, d }(Version, Commit, Date)
	Version, Commit, Date = "v1.2.3", "abc123", "2026-01-02T03:04:05Z"

	want := "version: v1.2.3\ncommit: abc123\nbuilt: 2026-01-02T03:04:05Z"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if tmpl := Template(); !strings.HasPrefix(tmpl, "{{.Name}} version v1.2.3\n") {
		t.Errorf("Template() = %q", tmpl)
	}
}
