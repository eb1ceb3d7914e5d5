package novel

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"novel-translate-service/internal/entity"
)

const kakuyomuOrigin = "https://kakuyomu.jp"

var (
	kakuyomuSeriesPath  = regexp.MustCompile(`^/works/[^/]+$`)
	kakuyomuEpisodePath = regexp.MustCompile(`^/works/[^/]+/episodes/[^/]+$`)
	kakuyomuSidebarPath = regexp.MustCompile(`^/works/[^/]+/episodes/[^/]+/episode_sidebar$`)
)

// decomposeKakuyomu never fails on shape: unmatched paths give an empty list.
func (d *Decomposer) decomposeKakuyomu(ctx context.Context, u *url.URL, raw string) ([]entity.ChapterReference, error) {
	switch {
	case kakuyomuSeriesPath.MatchString(u.Path):
		return d.kakuyomuSeries(ctx, u)
	case kakuyomuEpisodePath.MatchString(u.Path):
		return []entity.ChapterReference{entity.Chapter(raw)}, nil
	case kakuyomuSidebarPath.MatchString(u.Path):
		return d.kakuyomuSidebar(ctx, u)
	default:
		return nil, nil
	}
}

// kakuyomuSeries finds the first episode of a work and reads the table of
// contents from that episode's sidebar. It is one hop, never recursive.
func (d *Decomposer) kakuyomuSeries(ctx context.Context, u *url.URL) ([]entity.ChapterReference, error) {
	doc, err := d.fetcher.Document(ctx, u.String())
	if err != nil {
		return nil, err
	}

	href, ok := doc.Find("aside a").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil, nil
	}

	episode, err := resolveKakuyomu(href)
	if err != nil {
		return nil, nil
	}
	episode.Path = strings.TrimSuffix(episode.Path, "/") + "/episode_sidebar"
	episode.RawQuery = ""
	episode.Fragment = ""
	if !kakuyomuSidebarPath.MatchString(episode.Path) {
		return nil, nil
	}
	return d.kakuyomuSidebar(ctx, episode)
}

func (d *Decomposer) kakuyomuSidebar(ctx context.Context, u *url.URL) ([]entity.ChapterReference, error) {
	doc, err := d.fetcher.Document(ctx, u.String())
	if err != nil {
		return nil, err
	}

	var out []entity.ChapterReference
	doc.Find("li a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		abs, err := resolveKakuyomu(href)
		if err != nil {
			return
		}
		title := strings.TrimSpace(a.Text())
		if title == "" {
			out = append(out, entity.Chapter(abs.String()))
			return
		}
		out = append(out, entity.TitledChapter(abs.String(), title))
	})
	return out, nil
}

func resolveKakuyomu(href string) (*url.URL, error) {
	base, _ := url.Parse(kakuyomuOrigin)
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, err
	}
	return base.ResolveReference(ref), nil
}
