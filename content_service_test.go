package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"slidesmith/config"
)

func newTestContentService(t *testing.T, upstream http.HandlerFunc) *ContentService {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)
	return NewContentService(config.Config{
		OpenRouterAPIKey: "test-key",
		OpenRouterModel:  "test-model",
		LLMBaseURL:       srv.URL,
	})
}

func chatCompletion(content string) string {
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	b, _ := json.Marshal(resp)
	return string(b)
}

func TestGenerateSlidesParsesModelJSON(t *testing.T) {
	payload := `[{"title":"Solar Basics","content":["panels","inverters"],"description":"intro"},
		{"title":"Wind Power","content":["turbines"],"description":"wind"}]`
	svc := newTestContentService(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization header = %q", got)
		}
		fmt.Fprint(w, chatCompletion(payload))
	})

	slides := svc.GenerateSlides(context.Background(), "Renewable Energy", 2)
	if len(slides) != 2 {
		t.Fatalf("expected 2 slides, got %d", len(slides))
	}
	if slides[0].Title != "Solar Basics" {
		t.Errorf("title = %q", slides[0].Title)
	}
	if len(slides[1].Content) != 1 || slides[1].Content[0] != "turbines" {
		t.Errorf("content = %v", slides[1].Content)
	}
}

func TestGenerateSlidesStripsCodeFence(t *testing.T) {
	payload := "```json\n[{\"title\":\"Fenced\",\"content\":[\"a\"],\"description\":\"d\"}]\n```"
	svc := newTestContentService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatCompletion(payload))
	})

	slides := svc.GenerateSlides(context.Background(), "Topic", 1)
	if len(slides) != 1 || slides[0].Title != "Fenced" {
		t.Fatalf("fenced JSON not parsed: %+v", slides)
	}
}

func TestGenerateSlidesFallsBackOnProse(t *testing.T) {
	prose := "Here are some thoughts about renewable energy:\n" +
		"- Solar adoption keeps accelerating worldwide\n" +
		"- Wind farms now power entire regions\n" +
		"- Storage remains the hardest problem today\n"
	svc := newTestContentService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatCompletion(prose))
	})

	slides := svc.GenerateSlides(context.Background(), "Renewable Energy", 3)
	if len(slides) != 3 {
		t.Fatalf("expected 3 fallback slides, got %d", len(slides))
	}
	if slides[0].Title != "Introduction to Renewable Energy" {
		t.Errorf("first title = %q", slides[0].Title)
	}
	if slides[2].Title != "Summary and Conclusion" {
		t.Errorf("last title = %q", slides[2].Title)
	}
	// scraped prose lines should seed the intro slide
	if !strings.Contains(strings.Join(slides[0].Content, " "), "Solar adoption") {
		t.Errorf("scraped lines not used: %v", slides[0].Content)
	}
}

func TestGenerateSlidesFallsBackOnUpstreamError(t *testing.T) {
	svc := newTestContentService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	})

	slides := svc.GenerateSlides(context.Background(), "Renewable Energy", 5)
	if len(slides) != 5 {
		t.Fatalf("expected 5 fallback slides, got %d", len(slides))
	}
	if slides[1].Title != "Key Concepts of Renewable Energy" {
		t.Errorf("second title = %q", slides[1].Title)
	}
	if slides[3].Title != "Key Point 3" {
		t.Errorf("fourth title = %q", slides[3].Title)
	}
}

// For every requested count from 1 to 20, the fallback deck has exactly that
// many slides, each with a title and non-empty content.
func TestFallbackSlidesCountConsistency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "numSlides")
		topic := rapid.StringMatching(`[A-Za-z ]{1,40}`).Draw(t, "topic")

		slides := FallbackSlides(topic, n, "")
		if len(slides) != n {
			t.Fatalf("FallbackSlides(%q, %d) returned %d slides", topic, n, len(slides))
		}
		for i, sl := range slides {
			if sl.Title == "" {
				t.Fatalf("slide %d has empty title", i)
			}
			if len(sl.Content) == 0 {
				t.Fatalf("slide %d has no content", i)
			}
		}
		if n >= 2 && slides[n-1].Title != "Summary and Conclusion" {
			t.Fatalf("last slide title = %q", slides[n-1].Title)
		}
	})
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"[1,2]", "[1,2]"},
		{"```json\n[1,2]\n```", "[1,2]"},
		{"```\n[1,2]\n```", "[1,2]"},
		{"  ```json\n{\"a\":1}\n```  ", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := stripCodeFence(c.in); got != c.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
