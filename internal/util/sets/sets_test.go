package sets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet(t *testing.T) {
	s := New("b", "a")
	require.True(t, s.Has("a"))
	require.False(t, s.Has("c"))

	s.Add("c")
	s.Delete("a")
	require.Equal(t, []string{"b", "c"}, Sorted(s))
}
