package buildinfo

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	defaults := Info{Version: "dev", Commit: "none", Date: "unknown"}
	stamped := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2025-01-01T00:00:00Z"},
		},
	}

	tests := []struct {
		name string
		in   Info
		bi   *debug.BuildInfo
		want Info
	}{
		{"no build info", defaults, nil, defaults},
		{"go install", defaults, stamped, Info{Version: "v0.4.0", Commit: "abc123", Date: "2025-01-01T00:00:00Z"}},
		{"ldflags win", Info{Version: "v1.0.0", Commit: "fff", Date: "today"}, stamped, Info{Version: "v1.0.0", Commit: "fff", Date: "today"}},
		{"devel module", defaults, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, defaults},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolve(tt.in, tt.bi); got != tt.want {
				t.Errorf("resolve() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTemplate(t *testing.T) {
	v := Get().Version
	if !strings.Contains(Template(), "version "+v) {
		t.Errorf("Template() = %q", Template())
	}
	if got := UserAgent(); got != "pdaviz/"+v {
		t.Errorf("UserAgent() = %q", got)
	}
	if !strings.HasPrefix(String(), "version: "+v+"\n") {
		t.Errorf("String() = %q", String())
	}
}
