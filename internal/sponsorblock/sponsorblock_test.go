package sponsorblock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/hkbot/internal/media"
)

func newTestServer(t *testing.T, status int, segs []Segment) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "music_offtopic", r.URL.Query().Get("categories"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(segs)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestMergeSegments(t *testing.T) {
	in := []Segment{
		{Segment: [2]float64{50, 60}},
		{Segment: [2]float64{0, 10}},
		{Segment: [2]float64{5, 12}},
	}
	out := MergeSegments(in)
	require.Len(t, out, 2)
	assert.Equal(t, [2]float64{0, 12}, out[0].Segment)
	assert.Equal(t, [2]float64{50, 60}, out[1].Segment)
	assert.Equal(t, [2]float64{50, 60}, in[0].Segment, "input is left untouched")
}

func TestApplier_SkipsIntroAndTrimsOutro(t *testing.T) {
	srv, hits := newTestServer(t, http.StatusOK, []Segment{
		{Category: category, Segment: [2]float64{0, 8.5}},
		{Category: category, Segment: [2]float64{170, 180}},
	})
	a := NewApplier(NewClient(srv.URL), 5)

	tr := media.Track{PartialTrack: media.PartialTrack{ID: "vid"}, Duration: 180}
	out, msg, changed := a.Adjust(context.Background(), tr)

	assert.True(t, changed)
	assert.Equal(t, "trimmed outro, skipped intro", msg)
	assert.Equal(t, 8.5, out.Offset)
	assert.Equal(t, 170.0, out.End)
	assert.Equal(t, 180.0, out.Duration)

	_, _, _ = a.Adjust(context.Background(), tr)
	assert.Equal(t, int32(1), hits.Load(), "segments are cached")
}

func TestApplier_NoSegments(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusNotFound, nil)
	a := NewApplier(NewClient(srv.URL), 5)

	tr := media.Track{PartialTrack: media.PartialTrack{ID: "vid"}, Duration: 180}
	out, _, changed := a.Adjust(context.Background(), tr)
	assert.False(t, changed)
	assert.Equal(t, tr, out)
}

func TestApplier_BacksOffOnGatewayTimeout(t *testing.T) {
	srv, hits := newTestServer(t, http.StatusGatewayTimeout, nil)
	a := NewApplier(NewClient(srv.URL), 5)

	tr := media.Track{PartialTrack: media.PartialTrack{ID: "vid"}, Duration: 180}
	_, _, changed := a.Adjust(context.Background(), tr)
	assert.False(t, changed)

	tr.ID = "other"
	_, _, _ = a.Adjust(context.Background(), tr)
	assert.Equal(t, int32(1), hits.Load(), "disabled after a 504")
}

func TestApplier_IgnoresLiveAndNil(t *testing.T) {
	var a *Applier
	tr := media.Track{PartialTrack: media.PartialTrack{ID: "vid"}, Duration: 10}
	_, _, changed := a.Adjust(context.Background(), tr)
	assert.False(t, changed)

	srv, hits := newTestServer(t, http.StatusOK, nil)
	a = NewApplier(NewClient(srv.URL), 5)
	tr.IsLive = true
	_, _, changed = a.Adjust(context.Background(), tr)
	assert.False(t, changed)
	assert.Zero(t, hits.Load())
}
