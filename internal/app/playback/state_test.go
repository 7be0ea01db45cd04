package playback

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		volume   float64
		expected VolumeTier
		icon     string
	}{
		{volume: 0, expected: VolumeMuted, icon: "🔇"},
		{volume: 0.01, expected: VolumeLow, icon: "🔉"},
		{volume: 0.49, expected: VolumeLow, icon: "🔉"},
		{volume: 0.5, expected: VolumeFull, icon: "🔊"},
		{volume: 1, expected: VolumeFull, icon: "🔊"},
	}

	for _, tt := range tests {
		t.Run(tt.expected.String(), func(t *testing.T) {
			tier := TierFor(tt.volume)
			assert.Equal(t, tt.expected, tier)
			assert.Equal(t, tt.icon, tier.Icon())
		})
	}
}

func TestRepeatMode_Presentation(t *testing.T) {
	assert.Equal(t, "🔁", RepeatOff.Icon())
	assert.Equal(t, "🔁", RepeatAll.Icon())
	assert.Equal(t, "🔂", RepeatOne.Icon())

	assert.Equal(t, "Repeat: Off", RepeatOff.Label())
	assert.Equal(t, "Repeat: All", RepeatAll.Label())
	assert.Equal(t, "Repeat: One", RepeatOne.Label())
}

func TestView_JSON(t *testing.T) {
	v := View{State: StatePlaying, Repeat: RepeatOne, VolumeTier: VolumeLow}

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "playing", decoded["state"])
	assert.Equal(t, "one", decoded["repeat"])
	assert.Equal(t, "low", decoded["volume_tier"])
	assert.NotContains(t, decoded, "Track")
}

func TestView_DecodesOwnJSON(t *testing.T) {
	v := View{State: StatePaused, Repeat: RepeatAll, VolumeTier: VolumeMuted, Elapsed: "1:02"}

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded View
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, v, decoded)

	var s State
	assert.Error(t, s.UnmarshalText([]byte("bogus")))
}
