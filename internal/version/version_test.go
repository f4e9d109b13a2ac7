package version

import (
	"runtime"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != "dev" || info.Date != "unknown" {
		t.Errorf("Get() = %+v", info)
	}
	if info.Commit == "" {
		t.Error("empty commit")
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q", info.GoVersion)
	}
}

func TestGetKeepsLinkedCommit(t *testing.T) {
	old := Commit
	Commit = "abc1234"
	defer func() { Commit = old }()
	if got := Get().Commit; got != "abc1234" {
		t.Errorf("Commit = %q", got)
	}
}

func TestInfoString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"defaults", Info{Version: "dev", Commit: "none", Date: "unknown"}, "leadgate dev (commit: none, built: unknown)"},
		{"release", Info{Version: "v0.3.0", Commit: "abc1234", Date: "2026-01-01T00:00:00Z"}, "leadgate v0.3.0 (commit: abc1234, built: 2026-01-01T00:00:00Z)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
