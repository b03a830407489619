package sponsorblock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
)

const defaultBase = "https://sponsor.ajay.app/api/skipSegments"

// ErrUnavailable is returned when the service answers 504.
var ErrUnavailable = errors.New("sponsorblock unavailable")

type Segment struct {
	Category   string     `json:"category"`
	Segment    [2]float64 `json:"segment"` // [start, end] seconds
	UUID       string     `json:"UUID"`
	ActionType string     `json:"actionType"`
}

func (s Segment) Start() float64 { return s.Segment[0] }
func (s Segment) End() float64   { return s.Segment[1] }

type Client struct {
	http *http.Client
	base string
}

func NewClient() *Client {
	return &Client{
		http: &http.Client{Timeout: 8 * time.Second},
		base: defaultBase,
	}
}

// GetSegments fetches segments of the given categories for a YouTube video.
// A 404 means the video has none.
func (c *Client) GetSegments(ctx context.Context, videoID string, categories []string) ([]Segment, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return nil, errors.Wrap(err, "sponsorblock base url")
	}
	q := u.Query()
	q.Set("videoID", videoID)
	for _, cat := range categories {
		q.Add("category", cat)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "sponsorblock request")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return []Segment{}, nil
	case http.StatusGatewayTimeout:
		return nil, ErrUnavailable
	default:
		return nil, errors.Newf("sponsorblock: http %d", resp.StatusCode)
	}

	var segs []Segment
	if err := json.NewDecoder(resp.Body).Decode(&segs); err != nil {
		return nil, errors.Wrap(err, "decode segments")
	}
	return segs, nil
}

// MergeSegments sorts segs by start and merges overlapping ranges.
func MergeSegments(segs []Segment) []Segment {
	if len(segs) == 0 {
		return segs
	}
	sort.Slice(segs, func(i, j int) bool {
		return segs[i].Start() < segs[j].Start()
	})
	out := []Segment{segs[0]}
	for _, s := range segs[1:] {
		last := &out[len(out)-1]
		if s.Start() <= last.End() {
			if s.End() > last.End() {
				last.Segment[1] = s.End()
			}
		} else {
			out = append(out, s)
		}
	}
	return out
}
