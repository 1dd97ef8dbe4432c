package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_SemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	assert.Regexp(t, regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`), Version)
}

func TestGet_ReportsRuntime(t *testing.T) {
	info := Get()

	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS+"/"+runtime.GOARCH, info.Platform)
	assert.NotEmpty(t, info.Commit)
}

func TestGet_LdflagsCommitWins(t *testing.T) {
	// Given: a commit injected at build time
	old := Commit
	Commit = "abc123"
	t.Cleanup(func() { Commit = old })

	// Then: it is reported as-is
	assert.Equal(t, "abc123", Get().Commit)
}

func TestBuildInfo_JSON(t *testing.T) {
	data, err := json.Marshal(Get())
	require.NoError(t, err)

	for _, key := range []string{"version", "commit", "date", "go_version", "platform"} {
		assert.Contains(t, string(data), `"`+key+`"`)
	}
}

func TestString(t *testing.T) {
	assert.True(t, strings.HasPrefix(String(), "docfind "+Version))
}

func TestShortRevision(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortRevision("0123456789abcdef"))
	assert.Equal(t, "abc", shortRevision("abc"))
}
