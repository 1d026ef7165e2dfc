package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"slidesmith/config"
	"slidesmith/deck"
)

func newTestServer(t *testing.T, apiKey string, upstream http.HandlerFunc) *Server {
	t.Helper()

	cfg := config.Config{
		Port:           0,
		StorageRoot:    t.TempDir(),
		AllowedOrigins: []string{"*"},
	}
	cfg.OpenRouterAPIKey = apiKey
	cfg.OpenRouterModel = "test-model"
	if upstream != nil {
		srv := httptest.NewServer(upstream)
		t.Cleanup(srv.Close)
		cfg.LLMBaseURL = srv.URL
	}

	for _, dir := range []string{cfg.PresentationsDir(), cfg.GeneratedDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	backend, err := NewFileStore(cfg.PresentationsDir())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	store := NewCachedStore(backend)
	t.Cleanup(func() { store.Close() })

	return NewServer(cfg, store, NewS3Service(cfg))
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return out
}

// seedPresentation puts a record with a parsed three-slide model in the store.
func seedPresentation(t *testing.T, s *Server) *deck.Presentation {
	t.Helper()
	model := &deck.DocumentModel{
		Metadata: deck.DocumentMetadata{Title: "Seeded", SlideCount: 3, Theme: "gamma_style"},
	}
	for i := 0; i < 3; i++ {
		model.Slides = append(model.Slides, deck.RichSlide{
			ID:          fmt.Sprintf("slide_%d", i),
			SlideNumber: i + 1,
			LayoutType:  deck.LayoutContent,
			Background:  deck.Background{Type: "color", Color: "#ffffff"},
			Elements: []deck.Element{
				{Type: deck.ElementTitle, Content: fmt.Sprintf("Slide %d Title", i+1), Position: deck.Position{Top: 0.3, Width: 9.2, Height: 0.6}},
				{Type: deck.ElementBulletList, Items: []string{"point one", "point two"}, Position: deck.Position{Top: 1.2, Width: 9.2, Height: 3.9}},
			},
		})
	}
	p := &deck.Presentation{
		ID:        "seeded-id",
		Topic:     "Seeded Topic",
		JSONData:  model,
		CreatedAt: time.Now().Format(time.RFC3339),
	}
	if err := s.store.Put(p); err != nil {
		t.Fatalf("seed Put() error: %v", err)
	}
	return p
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, "", nil)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
	if body["openrouter_configured"] != false {
		t.Errorf("openrouter_configured = %v, want false", body["openrouter_configured"])
	}
	if body["s3_available"] != false {
		t.Errorf("s3_available = %v, want false", body["s3_available"])
	}
}

func TestCreatePresentationWithoutAPIKey(t *testing.T) {
	s := newTestServer(t, "", nil)
	rec := doJSON(t, s, http.MethodPost, "/create_presentation",
		map[string]interface{}{"topic": "Renewable Energy", "slides": 5})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "AI service not configured" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestCreatePresentationValidation(t *testing.T) {
	s := newTestServer(t, "key", nil)

	cases := []struct {
		name    string
		payload map[string]interface{}
		wantErr string
	}{
		{"empty topic", map[string]interface{}{"topic": "  "}, "Topic is required"},
		{"long topic", map[string]interface{}{"topic": strings.Repeat("x", 201)}, "Topic is too long (max 200 characters)"},
		{"zero slides", map[string]interface{}{"topic": "ok", "slides": 0}, "Number of slides must be between 1 and 20"},
		{"too many slides", map[string]interface{}{"topic": "ok", "slides": 21}, "Number of slides must be between 1 and 20"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/create_presentation", c.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decodeBody(t, rec); body["error"] != c.wantErr {
				t.Errorf("error = %v, want %q", body["error"], c.wantErr)
			}
		})
	}
}

func TestCreatePresentationFallsBackWhenUpstreamFails(t *testing.T) {
	s := newTestServer(t, "key", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusBadGateway)
	})

	rec := doJSON(t, s, http.MethodPost, "/create_presentation",
		map[string]interface{}{"topic": "Renewable Energy", "slides": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
	slides, ok := body["slides"].([]interface{})
	if !ok || len(slides) != 5 {
		t.Fatalf("expected 5 slides, got %v", body["slides"])
	}
	first := slides[0].(map[string]interface{})
	if first["title"] != "Introduction to Renewable Energy" {
		t.Errorf("first title = %v", first["title"])
	}

	id, _ := body["presentation_id"].(string)
	if id == "" {
		t.Fatal("missing presentation_id")
	}
	p, err := s.store.Get(id)
	if err != nil {
		t.Fatalf("created presentation not in store: %v", err)
	}
	if p.PPTPath == "" {
		t.Error("presentation has no rendered file path")
	}
}

func TestCreatePresentationRateLimit(t *testing.T) {
	s := newTestServer(t, "key", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "offline", http.StatusBadGateway)
	})
	s.limiter = NewRateLimiter(1, time.Minute)

	payload := map[string]interface{}{"topic": "Topic", "slides": 1}
	if rec := doJSON(t, s, http.MethodPost, "/create_presentation", payload); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := doJSON(t, s, http.MethodPost, "/create_presentation", payload)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Rate limit exceeded. Please try again later." {
		t.Errorf("error = %v", body["error"])
	}
}

func TestGetPresentationJSON(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := seedPresentation(t, s)

	rec := doJSON(t, s, http.MethodGet, "/get_presentation_json/"+p.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["presentation_id"] != p.ID {
		t.Errorf("presentation_id = %v", body["presentation_id"])
	}
	jsonData, ok := body["json_data"].(map[string]interface{})
	if !ok {
		t.Fatalf("json_data missing: %v", body)
	}
	if slides := jsonData["slides"].([]interface{}); len(slides) != 3 {
		t.Errorf("expected 3 slides in model, got %d", len(slides))
	}
}

func TestGetPresentationJSONNotFound(t *testing.T) {
	s := newTestServer(t, "", nil)
	rec := doJSON(t, s, http.MethodGet, "/get_presentation_json/missing-id", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Presentation JSON not found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestUpdateSlide(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := seedPresentation(t, s)

	edited := p.JSONData.Slides[1]
	edited.Elements = []deck.Element{{Type: deck.ElementText, Content: "edited body"}}

	rec := doJSON(t, s, http.MethodPut, "/update_slide", map[string]interface{}{
		"presentation_id": p.ID,
		"slide_id":        edited.ID,
		"slide_data":      edited,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["message"] != "Slide updated successfully" {
		t.Errorf("message = %v", body["message"])
	}

	stored, err := s.store.Get(p.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got := stored.JSONData.Slides[1].Elements[0].Content; got != "edited body" {
		t.Errorf("slide not updated, content = %q", got)
	}
	if stored.UpdatedAt == "" {
		t.Error("updated_at not set")
	}
}

func TestUpdateSlideMissingFields(t *testing.T) {
	s := newTestServer(t, "", nil)
	rec := doJSON(t, s, http.MethodPut, "/update_slide", map[string]interface{}{
		"presentation_id": "x",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSlideOperationsCopy(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := seedPresentation(t, s)

	rec := doJSON(t, s, http.MethodPost, "/slide_operations", map[string]interface{}{
		"operation":       "copy",
		"presentation_id": p.ID,
		"slide_index":     0,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["slide_count"] != float64(4) {
		t.Errorf("slide_count = %v, want 4", body["slide_count"])
	}
	slides := body["updated_slides"].([]interface{})
	copied := slides[1].(map[string]interface{})
	elements := copied["elements"].([]interface{})
	title := elements[0].(map[string]interface{})
	if got, _ := title["content"].(string); !strings.HasSuffix(got, " (Copy)") {
		t.Errorf("copied title = %q, want \" (Copy)\" suffix", got)
	}
}

func TestSlideOperationsDeleteToMinimum(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := seedPresentation(t, s)

	// delete down to one slide, then expect refusal
	for i := 0; i < 2; i++ {
		rec := doJSON(t, s, http.MethodPost, "/slide_operations", map[string]interface{}{
			"operation":       "delete",
			"presentation_id": p.ID,
			"slide_index":     0,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("delete %d status = %d", i, rec.Code)
		}
	}

	rec := doJSON(t, s, http.MethodPost, "/slide_operations", map[string]interface{}{
		"operation":       "delete",
		"presentation_id": p.ID,
		"slide_index":     0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Cannot delete slide. Presentation must have at least one slide." {
		t.Errorf("error = %v", body["error"])
	}
}

func TestSlideOperationsInvalidIndex(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := seedPresentation(t, s)

	rec := doJSON(t, s, http.MethodPost, "/slide_operations", map[string]interface{}{
		"operation":       "copy",
		"presentation_id": p.ID,
		"slide_index":     99,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Invalid slide index" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestSlideOperationsInvalidOperation(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := seedPresentation(t, s)

	rec := doJSON(t, s, http.MethodPost, "/slide_operations", map[string]interface{}{
		"operation":       "duplicate",
		"presentation_id": p.ID,
		"slide_index":     0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestExportPDF(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := seedPresentation(t, s)

	rec := doJSON(t, s, http.MethodPost, "/export_ppt", map[string]interface{}{
		"presentationId": p.ID,
		"format":         "pdf",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String()[:min(200, rec.Body.Len())])
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("response body is not a PDF")
	}
}

func TestExportPPTXFromModel(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := seedPresentation(t, s)

	rec := doJSON(t, s, http.MethodPost, "/export_ppt", map[string]interface{}{
		"presentationId": p.ID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String()[:min(200, rec.Body.Len())])
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "presentationml") {
		t.Errorf("Content-Type = %q", ct)
	}
	// pptx is a zip archive
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("response body is not a zip archive")
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := seedPresentation(t, s)

	rec := doJSON(t, s, http.MethodPost, "/export_ppt", map[string]interface{}{
		"presentationId": p.ID,
		"format":         "docx",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "Unsupported export format" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestDeletePresentation(t *testing.T) {
	s := newTestServer(t, "", nil)
	p := seedPresentation(t, s)

	rec := doJSON(t, s, http.MethodDelete, "/delete_presentation/"+p.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["success"] != true {
		t.Errorf("success = %v", body["success"])
	}
	if _, err := s.store.Get(p.ID); err != ErrNotFound {
		t.Errorf("record still present after delete: %v", err)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, "", nil)
	req := httptest.NewRequest(http.MethodOptions, "/create_presentation", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PUT") {
		t.Errorf("Allow-Methods = %q", got)
	}
}
