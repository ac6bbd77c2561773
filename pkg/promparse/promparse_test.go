package promparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sample = `# HELP livekit_room_total Number of active rooms
# TYPE livekit_room_total gauge
livekit_room_total 3.0

livekit_participant_total{state="active"} 12
livekit_participant_total{state="disconnected"} 4
livekit_packet_bytes{direction="incoming"} 1048576
livekit_packet_bytes{direction="outgoing"} 2097152
livekit_cpu_load 0.42 1700000000000
garbage-line-without-value
`

func TestParsePlainMetric(t *testing.T) {
	m := Parse(sample)

	assert.True(t, m.Has("livekit_room_total"))
	assert.Equal(t, 3, m.Int("livekit_room_total"))
	assert.InDelta(t, 3.0, m.Float64("livekit_room_total"), 0.001)
}

func TestParseLabeledMetric(t *testing.T) {
	m := Parse(sample)

	assert.Equal(t, 12, int(m.Float64WithLabel("livekit_participant_total", "state", "active")))
	assert.Equal(t, uint64(1048576), m.Uint64WithLabel("livekit_packet_bytes", "direction", "incoming"))
	assert.Equal(t, uint64(0), m.Uint64WithLabel("livekit_packet_bytes", "direction", "sideways"))
}

func TestParseSumsAcrossLabels(t *testing.T) {
	m := Parse(sample)

	assert.Equal(t, 16, m.SumInt("livekit_participant_total"))
	assert.Equal(t, uint64(1048576+2097152), m.SumUint64("livekit_packet_bytes"))
}

func TestParseTrailingTimestampIgnored(t *testing.T) {
	m := Parse(sample)

	assert.InDelta(t, 0.42, m.Float64("livekit_cpu_load"), 0.001)
}

func TestParseMissingMetricIsZero(t *testing.T) {
	m := Parse(sample)

	assert.False(t, m.Has("nonexistent"))
	assert.Equal(t, 0, m.Int("nonexistent"))
	assert.Equal(t, uint64(0), m.Uint64("nonexistent"))
}

func TestParseSkipsCommentsAndJunk(t *testing.T) {
	m := Parse(sample)

	assert.False(t, m.Has("# HELP"))
	assert.False(t, m.Has("garbage-line-without-value"))
}
