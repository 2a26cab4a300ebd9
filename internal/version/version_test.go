package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetFillsUnknowns(t *testing.T) {
	i := Get()
	require.NotEmpty(t, i.Version)
	require.NotEmpty(t, i.GitCommit)
	require.NotEmpty(t, i.BuildTime)
	require.LessOrEqual(t, len(i.GitCommit), 12)
}

func TestInjectedValuesWin(t *testing.T) {
	oldV, oldC := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldV, oldC })
	Version, GitCommit = "v1.2.3", "0123456789abcdef"

	s := String()
	require.True(t, strings.HasPrefix(s, "plugsmith v1.2.3 "), s)
	require.Contains(t, s, "commit 0123456789ab,")
}
