package autocomplete

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/sonroyaalmerol/kumastream/internal/media"
	"github.com/sonroyaalmerol/kumastream/internal/utils"
)

const suggestURL = "https://suggestqueries.google.com/complete/search"

// discord rejects choice names and values longer than this
const maxChoiceLen = 100

type Suggester struct {
	http     *http.Client
	endpoint string
	lib      *media.Library
}

func NewSuggester(lib *media.Library) *Suggester {
	return &Suggester{
		http:     &http.Client{Timeout: 3 * time.Second},
		endpoint: suggestURL,
		lib:      lib,
	}
}

func (s *Suggester) YouTube(ctx context.Context, query string) ([]string, error) {
	u, _ := url.Parse(s.endpoint)
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", utils.RandomUserAgent())
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "suggest request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("suggest: status %d", resp.StatusCode)
	}

	var parsed []any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, "decode suggestions")
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	arr, ok := parsed[1].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Choices lists matching library files first, then YouTube suggestions.
// A failed suggest request still returns the library matches.
func (s *Suggester) Choices(ctx context.Context, query string, limit int) ([]*discordgo.ApplicationCommandOptionChoice, error) {
	if limit <= 0 {
		limit = 10
	}
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)
	if s.lib != nil {
		for _, name := range s.lib.Suggest(query, limit/2) {
			out = append(out, &discordgo.ApplicationCommandOptionChoice{
				Name:  utils.Truncate("📁 "+name, maxChoiceLen),
				Value: utils.Truncate(name, maxChoiceLen),
			})
		}
	}

	yt, err := s.YouTube(ctx, query)
	for _, v := range yt {
		if len(out) >= limit {
			break
		}
		out = append(out, &discordgo.ApplicationCommandOptionChoice{
			Name:  utils.Truncate("YouTube: "+v, maxChoiceLen),
			Value: utils.Truncate(v, maxChoiceLen),
		})
	}
	return out, err
}
