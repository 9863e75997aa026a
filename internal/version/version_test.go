package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.Version != Version {
		t.Errorf("Version = %q, want %q", info.Version, Version)
	}
	if info.Platform != runtime.GOOS+"/"+runtime.GOARCH {
		t.Errorf("Platform = %q", info.Platform)
	}
	if info.GitCommit == "" || info.BuildDate == "" {
		t.Errorf("empty build metadata: %+v", info)
	}
}

func TestFull(t *testing.T) {
	orig := GitCommit
	GitCommit = "0123456789abcdef0123"
	defer func() { GitCommit = orig }()

	got := Full()
	if !strings.HasPrefix(got, Name+" "+Version+" (0123456789ab, ") {
		t.Errorf("Full() = %q", got)
	}
}
