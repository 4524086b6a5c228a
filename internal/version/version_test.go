package version

import (
	"runtime/debug"
	"testing"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	bi := &debug.BuildInfo{
		GoVersion: "go1.26.0",
		Main:      debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2025-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	tests := []struct {
		name                   string
		version, commit, built string
		bi                     *debug.BuildInfo
		want                   Info
		wantString             string
	}{
		{
			name:       "no information",
			want:       Info{Version: devel},
			wantString: devel,
		},
		{
			name:       "build info only",
			bi:         bi,
			want:       Info{Version: "v0.3.1", Commit: "0123456789abcdef0123", BuildTime: "2025-01-02T03:04:05Z", Modified: true, GoVersion: "go1.26.0"},
			wantString: "v0.3.1 (0123456789ab-dirty)",
		},
		{
			name:       "ldflags win",
			version:    "1.0.0",
			commit:     "abc",
			built:      "today",
			bi:         bi,
			want:       Info{Version: "1.0.0", Commit: "abc", BuildTime: "today", Modified: true, GoVersion: "go1.26.0"},
			wantString: "1.0.0 (abc-dirty)",
		},
		{
			name:       "devel main module",
			bi:         &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}},
			want:       Info{Version: devel},
			wantString: devel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := resolve(tt.version, tt.commit, tt.built, tt.bi)
			if got != tt.want {
				t.Fatalf("resolve() = %+v, want %+v", got, tt.want)
			}
			if s := got.String(); s != tt.wantString {
				t.Fatalf("String() = %q, want %q", s, tt.wantString)
			}
		})
	}
}
