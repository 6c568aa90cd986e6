package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const DefaultYouTubeSearchURL = "https://www.googleapis.com/youtube/v3/search"

type YouTubeClient struct {
	apiKey    string
	searchURL string
	http      *http.Client
	log       *slog.Logger
}

func NewYouTubeClient(apiKey, searchURL string) *YouTubeClient {
	if searchURL == "" {
		searchURL = DefaultYouTubeSearchURL
	}
	return &YouTubeClient{
		apiKey:    apiKey,
		searchURL: searchURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: slog.With("component", "youtube"),
	}
}

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Default struct {
					URL string `json:"url"`
				} `json:"default"`
				Medium struct {
					URL string `json:"url"`
				} `json:"medium"`
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *YouTubeClient) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	val := url.Values{}
	val.Set("part", "snippet")
	val.Set("type", "video")
	val.Set("maxResults", strconv.Itoa(ClampLimit(limit)))
	val.Set("q", query)
	val.Set("key", c.apiKey)

	var body ytSearchResponse
	if err := c.get(ctx, c.searchURL+"?"+val.Encode(), &body); err != nil {
		return nil, err
	}

	out := make([]Item, 0, len(body.Items))
	var videoIDs []string
	for _, it := range body.Items {
		thumbs := it.Snippet.Thumbnails
		thumb := thumbs.High.URL
		if thumb == "" {
			thumb = thumbs.Medium.URL
		}
		if thumb == "" {
			thumb = thumbs.Default.URL
		}

		out = append(out, Item{
			Title:           it.Snippet.Title,
			Artist:          it.Snippet.ChannelTitle,
			Provider:        "youtube",
			ProviderTrackID: it.ID.VideoID,
			ThumbnailURL:    thumb,
		})
		videoIDs = append(videoIDs, it.ID.VideoID)
	}

	if len(videoIDs) > 0 {
		durations, err := c.fetchDurations(ctx, videoIDs)
		if err != nil {
			// results are still usable without durations
			c.log.Warn("fetch durations", "error", err)
			return out, nil
		}
		for i := range out {
			if d, ok := durations[out[i].ProviderTrackID]; ok {
				out[i].DurationMs = d
			}
		}
	}
	return out, nil
}

type ytVideosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// videosURL derives the videos endpoint from the configured search URL.
func (c *YouTubeClient) videosURL() string {
	if base, ok := strings.CutSuffix(c.searchURL, "/search"); ok {
		return base + "/videos"
	}
	return "https://www.googleapis.com/youtube/v3/videos"
}

func (c *YouTubeClient) fetchDurations(ctx context.Context, ids []string) (map[string]int, error) {
	val := url.Values{}
	val.Set("part", "contentDetails")
	val.Set("id", strings.Join(ids, ","))
	val.Set("key", c.apiKey)

	var body ytVideosResponse
	if err := c.get(ctx, c.videosURL()+"?"+val.Encode(), &body); err != nil {
		return nil, err
	}

	durations := make(map[string]int, len(body.Items))
	for _, item := range body.Items {
		durations[item.ID] = parseISO8601Duration(item.ContentDetails.Duration)
	}
	return durations, nil
}

func (c *YouTubeClient) get(ctx context.Context, reqURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: youtube status %d", ErrUpstream, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return nil
}

var durationRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISO8601Duration handles the PT#H#M#S subset YouTube returns and
// yields milliseconds, 0 when the value cannot be read.
func parseISO8601Duration(duration string) int {
	m := durationRe.FindStringSubmatch(duration)
	if m == nil {
		return 0
	}
	var total int
	for i, unit := range []int{3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		total += n * unit
	}
	return total * 1000
}
