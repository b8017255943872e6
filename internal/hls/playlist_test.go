// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package hls

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_MediaVOD(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-PLAYLIST-TYPE:VOD
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:7
#EXTINF:10.0,
segment1.ts
#EXTINF:4.5,
https://cdn.example.com/segment2.ts
#EXT-X-ENDLIST
`
	decoded, err := Decode(strings.NewReader(playlist), "https://origin.example.com/v/index.m3u8")
	require.NoError(t, err)
	require.NotNil(t, decoded.Media)
	assert.Empty(t, decoded.Variants)

	want := []Segment{
		{URL: "https://origin.example.com/v/segment1.ts", Duration: 10 * time.Second, Seq: 7},
		{URL: "https://cdn.example.com/segment2.ts", Duration: 4500 * time.Millisecond, Seq: 8},
	}
	if diff := cmp.Diff(want, decoded.Media.Segments); diff != "" {
		t.Errorf("segments mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, decoded.Media.IsVOD)
	assert.Equal(t, 14500*time.Millisecond, decoded.Media.TotalDuration)
	assert.Equal(t, 10*time.Second, decoded.Media.TargetDuration)
}

func TestDecode_LiveIsNotVOD(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-TARGETDURATION:6
#EXTINF:6.0,
a.ts
`
	decoded, err := Decode(strings.NewReader(playlist), "http://h/live.m3u8")
	require.NoError(t, err)
	require.NotNil(t, decoded.Media)
	assert.False(t, decoded.Media.IsVOD)
}

func TestDecode_PDTNonMonotonic(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-TARGETDURATION:10
#EXT-X-PROGRAM-DATE-TIME:2024-01-01T12:00:10Z
#EXTINF:10.0,
segment1.ts
#EXT-X-PROGRAM-DATE-TIME:2024-01-01T12:00:00Z
#EXTINF:10.0,
segment2.ts
`
	_, err := Decode(strings.NewReader(playlist), "http://h/live.m3u8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-monotonic")
}

func TestDecode_MasterAndSelectVariant(t *testing.T) {
	playlist := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2400000,RESOLUTION=1280x720
high/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1200000,RESOLUTION=854x480
mid/index.m3u8
`
	decoded, err := Decode(strings.NewReader(playlist), "http://h/master.m3u8")
	require.NoError(t, err)
	require.Nil(t, decoded.Media)
	require.Len(t, decoded.Variants, 3)

	best := SelectVariant(decoded.Variants)
	assert.Equal(t, "http://h/high/index.m3u8", best.URL)
	assert.Equal(t, uint32(2400000), best.Bandwidth)
	assert.Equal(t, "1280x720", best.Resolution)
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode(strings.NewReader("<html>not a playlist</html>"), "http://h/x.m3u8")
	assert.Error(t, err)
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"http://h/a/b.m3u8", "c.ts", "http://h/a/c.ts"},
		{"http://h/a/b.m3u8", "/root.ts", "http://h/root.ts"},
		{"http://h/a/b.m3u8", "https://cdn/x.ts", "https://cdn/x.ts"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveURL(tt.base, tt.ref))
	}
}
