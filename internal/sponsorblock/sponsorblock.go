package sponsorblock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"
)

const DefaultBaseURL = "https://sponsor.ajay.app/api/skipSegments"

// ErrUnavailable is returned when the API answers with a gateway timeout.
var ErrUnavailable = errors.New("sponsorblock unavailable")

type Segment struct {
	Category   string     `json:"category"`
	Segment    [2]float64 `json:"segment"` // [start, end] seconds
	UUID       string     `json:"UUID"`
	ActionType string     `json:"actionType"`
}

type Client struct {
	http *http.Client
	base string
}

func NewClient(base string) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		http: &http.Client{Timeout: 8 * time.Second},
		base: base,
	}
}

// GetSegments fetches segments of the given categories for a YouTube video ID.
func (c *Client) GetSegments(ctx context.Context, videoID string, categories []string) ([]Segment, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	q := u.Query()
	q.Set("videoID", videoID)
	for _, cat := range categories {
		q.Add("categories", cat)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// no segments for this video
		return []Segment{}, nil
	case http.StatusGatewayTimeout:
		return nil, ErrUnavailable
	default:
		return nil, fmt.Errorf("sponsorblock http %d", resp.StatusCode)
	}

	var segs []Segment
	if err := json.NewDecoder(resp.Body).Decode(&segs); err != nil {
		return nil, fmt.Errorf("decode segments: %w", err)
	}
	return segs, nil
}

// MergeSegments sorts segments by start and joins overlapping ones.
func MergeSegments(segs []Segment) []Segment {
	if len(segs) == 0 {
		return segs
	}
	segs = append([]Segment(nil), segs...)
	sort.Slice(segs, func(i, j int) bool {
		return segs[i].Segment[0] < segs[j].Segment[0]
	})
	out := []Segment{segs[0]}
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if s.Segment[0] <= last.Segment[1] {
			if s.Segment[1] > last.Segment[1] {
				last.Segment[1] = s.Segment[1]
			}
		} else {
			out = append(out, s)
		}
	}
	return out
}
