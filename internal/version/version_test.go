package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// setBuildInfo подменяет значения, которые в сборке приходят через -ldflags.
func setBuildInfo(t *testing.T, v, c, d string) {
	t.Helper()

	prevVersion, prevCommit, prevDate := version, commit, date
	version, commit, date = v, c, d
	t.Cleanup(func() {
		version, commit, date = prevVersion, prevCommit, prevDate
	})
}

func TestDefaults(t *testing.T) {
	v, c, d := Info()
	assert.Equal(t, "dev", v)
	assert.Equal(t, "unknown", c)
	assert.Equal(t, "unknown", d)
}

func TestAccessorsFollowLinkerValues(t *testing.T) {
	setBuildInfo(t, "1.4.0", "9f1c2ab", "2026-10-01T08:00:00Z")

	assert.Equal(t, "1.4.0", GetVersion())
	assert.Equal(t, "9f1c2ab", GetCommit())
	assert.Equal(t, "2026-10-01T08:00:00Z", GetDate())

	v, c, d := Info()
	assert.Equal(t, GetVersion(), v)
	assert.Equal(t, GetCommit(), c)
	assert.Equal(t, GetDate(), d)
}

func TestString(t *testing.T) {
	setBuildInfo(t, "1.4.0", "9f1c2ab", "2026-10-01")

	assert.Equal(t, "version=1.4.0 commit=9f1c2ab date=2026-10-01", String())
}
