package novel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"novel-translate-service/internal/entity"
)

const (
	syosetuOrigin   = "https://ncode.syosetu.com"
	syosetuCountAPI = "https://api.syosetu.com/novelapi/api/"

	// far above the longest real series
	maxSyosetuEpisodes = 20000
)

// syosetuMeta is the second element of the novel API response; the first
// one only carries allcount.
type syosetuMeta struct {
	GeneralAllNo *int `json:"general_all_no"`
}

func (d *Decomposer) decomposeSyosetu(ctx context.Context, u *url.URL, raw string) ([]entity.ChapterReference, error) {
	parts := pathSegments(u.Path)

	switch len(parts) {
	case 1:
		code := parts[0]
		count, err := d.syosetuEpisodeCount(ctx, code)
		if err != nil {
			return nil, err
		}
		out := make([]entity.ChapterReference, 0, count)
		for n := 1; n <= count; n++ {
			out = append(out, entity.Chapter(fmt.Sprintf("%s/%s/%d/", syosetuOrigin, code, n)))
		}
		return out, nil
	case 2:
		return []entity.ChapterReference{entity.Chapter(raw)}, nil
	default:
		return nil, &entity.AddressShapeError{
			Address: u.String(),
			Message: "The URL does not point to a valid syosetsu novel series or episode",
		}
	}
}

func (d *Decomposer) syosetuEpisodeCount(ctx context.Context, code string) (int, error) {
	q := url.Values{}
	q.Set("ncode", code)
	q.Set("out", "json")
	endpoint := syosetuCountAPI + "?" + q.Encode()

	var items []json.RawMessage
	if err := d.fetcher.JSON(ctx, endpoint, nil, &items); err != nil {
		return 0, err
	}
	if len(items) < 2 {
		return 0, &entity.FetchError{URL: endpoint, Message: "no novel found for ncode " + code}
	}

	var meta syosetuMeta
	if err := json.Unmarshal(items[1], &meta); err != nil {
		return 0, &entity.FetchError{URL: endpoint, Message: "decode novel metadata", Cause: err}
	}
	if meta.GeneralAllNo == nil || *meta.GeneralAllNo < 0 {
		return 0, &entity.FetchError{URL: endpoint, Message: "missing general_all_no"}
	}
	if *meta.GeneralAllNo > maxSyosetuEpisodes {
		return 0, &entity.FetchError{
			URL:     endpoint,
			Message: fmt.Sprintf("general_all_no %d exceeds %d", *meta.GeneralAllNo, maxSyosetuEpisodes),
		}
	}
	return *meta.GeneralAllNo, nil
}

func pathSegments(p string) []string {
	raw := strings.Split(p, "/")
	out := raw[:0]
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
