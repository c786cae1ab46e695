package spotify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePlaylistID(t *testing.T) {
	const id = "37i9dQZF1DXcBWIGoYBM5M"

	tests := []struct {
		name string
		ref  string
	}{
		{"share URL", "https://open.spotify.com/playlist/" + id},
		{"share URL with query", "https://open.spotify.com/playlist/" + id + "?si=abc123"},
		{"URI", "spotify:playlist:" + id},
		{"bare id", id},
		{"padded", "  " + id + "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePlaylistID(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, id, got)
		})
	}
}

func TestResolvePlaylistIDRejectsGarbage(t *testing.T) {
	for _, ref := range []string{"", "not a playlist", "https://open.spotify.com/track/abc", "short"} {
		_, err := ResolvePlaylistID(ref)
		assert.ErrorIs(t, err, ErrPlaylistNotFound, "ref %q", ref)
	}
}
