package version

import (
	"strings"
	"testing"
)

func TestStringUsesLdflagCommit(t *testing.T) {
	oldC, oldV := GitCommit, Version
	defer func() { GitCommit, Version = oldC, oldV }()

	Version = "1.2.3"
	GitCommit = "abcdef0123456789"
	if got := String(); got != "1.2.3+abcdef0" {
		t.Errorf("String() = %q, want 1.2.3+abcdef0", got)
	}
}

func TestGetReportsPlatform(t *testing.T) {
	info := Get()
	if info.Version == "" {
		t.Error("empty version")
	}
	if !strings.Contains(info.Platform, "/") {
		t.Errorf("platform = %q, want os/arch", info.Platform)
	}
	if info.GoVersion == "" {
		t.Error("empty go version")
	}
}
