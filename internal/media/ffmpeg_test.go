package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXfadeGraph_OffsetsAndChaining(t *testing.T) {
	graph := XfadeGraph([]float64{4, 6, 5}, []string{"fade"}, 0.5)

	// Join k starts fadeSeconds before the faded head ends: 4-0.5=3.5,
	// then 3.5+6-0.5=9.0.
	assert.Equal(t,
		"[0:v][1:v]xfade=transition=fade:duration=0.500:offset=3.500[v1];"+
			"[v1][2:v]xfade=transition=fade:duration=0.500:offset=9.000[v2]",
		graph)
}

func TestXfadeGraph_RoundRobinTransitions(t *testing.T) {
	graph := XfadeGraph([]float64{3, 3, 3, 3}, []string{"fade", "wipeleft"}, 0.5)

	assert.Contains(t, graph, "transition=fade:duration=0.500:offset=2.500")
	assert.Contains(t, graph, "transition=wipeleft:duration=0.500:offset=5.000")
	assert.Contains(t, graph, "transition=fade:duration=0.500:offset=7.500")
}

func TestClampFade_ShortClips(t *testing.T) {
	// A 0.6s clip cannot host two 0.5s fades.
	assert.Equal(t, 0.3, ClampFade([]float64{4, 0.6, 5}, 0.5))
	assert.Equal(t, 0.5, ClampFade([]float64{4, 6}, 0.5))
}

func TestXfadeGraph_ClampsFadeToShortClip(t *testing.T) {
	graph := XfadeGraph([]float64{1, 1}, []string{"fade"}, 5)
	require.Contains(t, graph, "duration=0.500")
	assert.Contains(t, graph, "offset=0.500")
}

func TestOverlayFilter(t *testing.T) {
	assert.Equal(t, "[1:v]scale=100:-1[logo];[0:v][logo]overlay=20:20", OverlayFilter(20, 20, 100))
	assert.Equal(t, "overlay=20:20", OverlayFilter(20, 20, 0))
}
