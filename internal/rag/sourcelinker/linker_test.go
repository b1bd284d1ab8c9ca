package sourcelinker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLink_ResolvesAndDedups(t *testing.T) {
	sourceMap := map[int]string{1: "chunk-a", 2: "chunk-b"}
	refs, unresolved := Link("Per [Source 1], the sky is blue [Source 2], also [Source 1] again.", sourceMap)

	require.Len(t, refs, 2)
	require.Equal(t, "chunk-a", refs[0].ChunkID)
	require.Equal(t, "chunk-b", refs[1].ChunkID)
	require.Empty(t, unresolved)
}

func TestLink_ReportsUnresolvedWithoutFailing(t *testing.T) {
	sourceMap := map[int]string{1: "chunk-a"}
	refs, unresolved := Link("See [Source 1] and [Source 9].", sourceMap)

	require.Len(t, refs, 1)
	require.Equal(t, []int{9}, unresolved)
}

func TestLink_NoMarkers(t *testing.T) {
	refs, unresolved := Link("plain text with no citations", map[int]string{1: "a"})
	require.Empty(t, refs)
	require.Empty(t, unresolved)
}
