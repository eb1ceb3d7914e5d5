package novel

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"novel-translate-service/internal/entity"
)

const pixivOrigin = "https://www.pixiv.net"

var pixivSeriesPath = regexp.MustCompile(`^/novel/series/(\d+)/?$`)

type pixivContentTitles struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Body    []struct {
		ID        pixivID `json:"id"`
		Available bool    `json:"available"`
		Title     string  `json:"title"`
	} `json:"body"`
}

// pixivID accepts both "123" and 123.
type pixivID string

func (id *pixivID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = pixivID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = pixivID(n.String())
	return nil
}

func (d *Decomposer) decomposePixiv(ctx context.Context, u *url.URL, raw string) ([]entity.ChapterReference, error) {
	if m := pixivSeriesPath.FindStringSubmatch(u.Path); m != nil {
		return d.pixivSeries(ctx, m[1])
	}
	if strings.Contains(u.Path, "/novel/show") {
		return []entity.ChapterReference{entity.Chapter(raw)}, nil
	}
	if strings.Contains(u.Path, "/ajax/") {
		return nil, &entity.AddressShapeError{
			Address: u.String(),
			Message: "To reduce confusion, you should not use the ajax URL. Use the normal URL instead",
		}
	}
	return nil, &entity.AddressShapeError{
		Address: u.String(),
		Message: "The URL is not a valid Pixiv novel series or novel page",
	}
}

func (d *Decomposer) pixivSeries(ctx context.Context, seriesID string) ([]entity.ChapterReference, error) {
	endpoint := pixivOrigin + "/ajax/novel/series/" + seriesID + "/content_titles"

	var listing pixivContentTitles
	headers := map[string]string{"User-Agent": browserUserAgent}
	if err := d.fetcher.JSON(ctx, endpoint, headers, &listing); err != nil {
		return nil, err
	}
	if listing.Error {
		return nil, &entity.FetchError{URL: endpoint, Message: "pixiv: " + listing.Message}
	}

	out := make([]entity.ChapterReference, 0, len(listing.Body))
	for _, item := range listing.Body {
		// paywalled or deleted entries
		if !item.Available || item.ID == "" {
			continue
		}
		show := pixivOrigin + "/novel/show.php?id=" + url.QueryEscape(string(item.ID))
		out = append(out, entity.TitledChapter(show, item.Title))
	}
	return out, nil
}
