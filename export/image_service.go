package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
)

// ImageService fetches stock photos from Pexels. One search request covers
// the whole deck; individual downloads run concurrently. Every failure is
// logged and surfaces as a nil entry so rendering continues without photos.
type ImageService struct {
	APIKey    string
	searchURL string
	client    *http.Client
}

const pexelsSearchURL = "https://api.pexels.com/v1/search"

func NewImageService(apiKey string) *ImageService {
	return &ImageService{
		APIKey:    apiKey,
		searchURL: pexelsSearchURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *ImageService) Configured() bool {
	return s.APIKey != ""
}

type pexelsResponse struct {
	Photos []struct {
		Src struct {
			Medium string `json:"medium"`
		} `json:"src"`
	} `json:"photos"`
}

// FetchSlideImages returns one photo per slide, aligned by index. Slides
// without a matching photo get nil.
func (s *ImageService) FetchSlideImages(ctx context.Context, topic string, numSlides int) [][]byte {
	images := make([][]byte, numSlides)
	if !s.Configured() || numSlides == 0 {
		return images
	}

	photoURLs, err := s.search(ctx, topic, numSlides)
	if err != nil {
		log.Printf("[IMAGES] search failed for %q: %v", topic, err)
		return images
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, photoURL := range photoURLs {
		if i >= numSlides || photoURL == "" {
			continue
		}
		g.Go(func() error {
			data, err := s.download(gctx, photoURL)
			if err != nil {
				log.Printf("[IMAGES] download failed: %v", err)
				return nil
			}
			images[i] = data
			return nil
		})
	}
	g.Wait()
	return images
}

func (s *ImageService) search(ctx context.Context, query string, perPage int) ([]string, error) {
	searchURL := fmt.Sprintf("%s?query=%s&per_page=%d", s.searchURL, url.QueryEscape(query), perPage)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", s.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pexels returned status %d", resp.StatusCode)
	}

	var pr pexelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode pexels response: %w", err)
	}

	urls := make([]string, len(pr.Photos))
	for i, p := range pr.Photos {
		urls[i] = p.Src.Medium
	}
	return urls, nil
}

func (s *ImageService) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}
	// cap at 5MB, photos beyond that bloat the deck
	return io.ReadAll(io.LimitReader(resp.Body, 5<<20))
}
