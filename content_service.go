package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"slidesmith/config"
	"slidesmith/deck"
)

// ContentService turns a topic into slide records via an OpenAI-compatible
// chat-completion endpoint (OpenRouter by default). It never fails past its
// boundary: any upstream error degrades to a deterministic templated deck.
type ContentService struct {
	APIKey    string
	BaseURL   string
	ModelName string
	client    *http.Client
}

func NewContentService(cfg config.Config) *ContentService {
	return &ContentService{
		APIKey:    cfg.OpenRouterAPIKey,
		BaseURL:   cfg.LLMBaseURL,
		ModelName: cfg.OpenRouterModel,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether an API key is present.
func (s *ContentService) Configured() bool {
	return s.APIKey != ""
}

// GenerateSlides produces exactly one slide record per requested slide.
// Every failure mode (transport error, non-200, non-JSON body, non-array
// payload) falls back to templated content, so the returned list is never
// empty.
func (s *ContentService) GenerateSlides(ctx context.Context, topic string, numSlides int) []deck.SlideRecord {
	raw, err := s.chat(ctx, buildSlidePrompt(topic, numSlides))
	if err != nil {
		log.Printf("[AI] content generation failed, using fallback: %v", err)
		return FallbackSlides(topic, numSlides, "")
	}

	var slides []deck.SlideRecord
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &slides); err != nil || len(slides) == 0 {
		log.Printf("[AI] model response is not a JSON slide array, using fallback")
		return FallbackSlides(topic, numSlides, raw)
	}
	log.Printf("[AI] generated %d slides for topic %q", len(slides), topic)
	return slides
}

func buildSlidePrompt(topic string, numSlides int) string {
	return fmt.Sprintf(`Create a professional presentation about "%s" with %d slides.

For each slide, provide:
1. A clear, engaging title
2. Key points or bullet points (3-5 points per slide)
3. A brief description of what should be included

Format the response as a JSON array only, with each slide containing:
- title: The slide title
- content: Main content points as an array of strings
- description: Brief description of the slide's purpose

Make the content informative, engaging, and well-structured.
Focus on the most important aspects of %s.`, topic, numSlides, topic)
}

func (s *ContentService) chat(ctx context.Context, prompt string) (string, error) {
	body := map[string]interface{}{
		"model": s.ModelName,
		"messages": []map[string]string{
			{"role": "system", "content": "You are an expert presentation creator. Generate clear, engaging, and professional presentation content."},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.7,
		"max_tokens":  2000,
	}

	jsonBody, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, "POST", s.BaseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)
	req.Header.Set("X-Title", "AI Presentation Generator")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("chat completion API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completion response")
	}
	return result.Choices[0].Message.Content, nil
}

// FallbackSlides builds a deterministic deck when the model is unreachable or
// returned something unparseable. The first slide introduces the topic, the
// last one summarizes, and the middle slides carry generic key points,
// optionally seeded with usable lines scraped out of the raw model text.
func FallbackSlides(topic string, numSlides int, aiText string) []deck.SlideRecord {
	if numSlides < 1 {
		numSlides = 1
	}

	scraped := scrapeContentLines(aiText)
	next := func(fallback []string) []string {
		if len(scraped) >= 3 {
			lines := scraped[:3]
			scraped = scraped[3:]
			return lines
		}
		return fallback
	}

	slides := make([]deck.SlideRecord, 0, numSlides)
	slides = append(slides, deck.SlideRecord{
		Title: fmt.Sprintf("Introduction to %s", topic),
		Content: next([]string{
			fmt.Sprintf("Welcome to our presentation on %s", topic),
			"We'll explore key concepts and insights",
			"Let's dive into the details",
		}),
		Description: "Introduction and overview",
	})
	if numSlides == 1 {
		return slides
	}

	for i := 1; i < numSlides-1; i++ {
		title := fmt.Sprintf("Key Point %d", i)
		if i == 1 {
			title = fmt.Sprintf("Key Concepts of %s", topic)
		}
		slides = append(slides, deck.SlideRecord{
			Title: title,
			Content: next([]string{
				fmt.Sprintf("Important aspect %d of %s", i, topic),
				"Supporting information and details",
				"Relevant examples and applications",
			}),
			Description: fmt.Sprintf("Key point %d discussion", i),
		})
	}

	slides = append(slides, deck.SlideRecord{
		Title: "Summary and Conclusion",
		Content: next([]string{
			fmt.Sprintf("Key takeaways about %s", topic),
			"Important conclusions",
			"Recommended next steps",
		}),
		Description: "Summary and conclusion",
	})
	return slides
}

// scrapeContentLines pulls short plain-text lines out of a non-JSON model
// response so a failed generation still reflects what the model said.
func scrapeContentLines(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*#>1234567890. \t")
		if line == "" || strings.HasPrefix(line, "{") || strings.HasPrefix(line, "[") {
			continue
		}
		if utf8Len := len([]rune(line)); utf8Len < 10 || utf8Len > 120 {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// stripCodeFence removes a surrounding markdown code fence, which chat models
// add around JSON payloads even when told not to.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
