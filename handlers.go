package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"slidesmith/config"
	"slidesmith/deck"
	"slidesmith/export"
)

// Server holds the services behind the HTTP surface.
type Server struct {
	cfg     config.Config
	store   *CachedStore
	content *ContentService
	ppt     *export.PPTService
	parser  *export.PPTXParser
	pdf     *export.PDFService
	images  *export.ImageService
	s3      *S3Service
	limiter *RateLimiter
}

func NewServer(cfg config.Config, store *CachedStore, s3 *S3Service) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		content: NewContentService(cfg),
		ppt:     export.NewPPTService(cfg.GeneratedDir()),
		parser:  export.NewPPTXParser(),
		pdf:     export.NewPDFService(),
		images:  export.NewImageService(cfg.PexelsAPIKey),
		s3:      s3,
		limiter: NewRateLimiter(30, time.Minute),
	}
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, status int, msg string) {
	jsonResponse(w, status, map[string]interface{}{"success": false, "error": msg})
}

// corsMiddleware applies the configured allowed origins and answers
// preflight requests.
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := "*"
		for _, o := range s.cfg.AllowedOrigins {
			if o == "*" {
				allowed = "*"
				break
			}
			if o == origin {
				allowed = origin
				break
			}
		}
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	ip := r.RemoteAddr
	// Handle IPv6 addresses like [::1]:port
	if strings.HasPrefix(ip, "[") {
		if bracketIdx := strings.LastIndex(ip, "]"); bracketIdx != -1 {
			return ip[1:bracketIdx]
		}
	}
	if colonIdx := strings.LastIndex(ip, ":"); colonIdx != -1 {
		ip = ip[:colonIdx]
	}
	return ip
}

// handleRoot describes the API.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		errorResponse(w, http.StatusNotFound, "Not found")
		return
	}
	s3Status := "Not Available"
	if s.s3.IsAvailable() {
		s3Status = "Available"
	}
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "Server is running!",
		"message":   "AI Presentation Generator API",
		"s3_status": s3Status,
		"endpoints": map[string]string{
			"create": "/create_presentation",
			"update": "/update_slide",
			"json":   "/get_presentation_json/<presentation_id>",
			"export": "/export_ppt",
			"delete": "/delete_presentation/<presentation_id>",
			"slides": "/slide_operations",
			"health": "/health",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":                "healthy",
		"timestamp":             time.Now().Format(time.RFC3339),
		"s3_available":          s.s3.IsAvailable(),
		"openrouter_configured": s.content.Configured(),
	})
}

type createRequest struct {
	Topic  string `json:"topic"`
	Slides *int   `json:"slides"`
}

func (s *Server) handleCreatePresentation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	clientIP := getClientIP(r)
	if !s.limiter.Allow(clientIP) {
		jsonResponse(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded. Please try again later."})
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "No data provided"})
		return
	}

	topic := strings.TrimSpace(req.Topic)
	numSlides := 5
	if req.Slides != nil {
		numSlides = *req.Slides
	}

	if err := ValidateRequired("topic", topic); err != nil {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Topic is required"})
		return
	}
	if err := ValidateStringLength("topic", topic, 1, 200); err != nil {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Topic is too long (max 200 characters)"})
		return
	}
	if err := ValidateRange("slides", numSlides, 1, 20); err != nil {
		jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "Number of slides must be between 1 and 20"})
		return
	}

	log.Printf("[CREATE] presentation about %q with %d slides for %s", topic, numSlides, clientIP)

	if !s.content.Configured() {
		jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "AI service not configured"})
		return
	}

	slides := s.content.GenerateSlides(r.Context(), topic, numSlides)
	if len(slides) == 0 {
		jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate presentation content. Please try again."})
		return
	}

	images := s.images.FetchSlideImages(r.Context(), topic, len(slides))

	pptPath, err := s.ppt.CreatePresentation(slides, topic, images)
	if err != nil {
		log.Printf("[CREATE] pptx generation failed: %v", err)
		jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create presentation file. Please try again."})
		return
	}

	p := &deck.Presentation{
		ID:        uuid.NewString(),
		Topic:     topic,
		Slides:    slides,
		PPTPath:   pptPath,
		CreatedAt: time.Now().Format(time.RFC3339),
	}

	if err := s.store.Put(p); err != nil {
		log.Printf("[CREATE] failed to persist presentation %s: %v", p.ID, err)
		jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error. Please try again."})
		return
	}

	if s.s3.IsAvailable() {
		if urls := s.s3.UploadPresentationData(r.Context(), p); len(urls) > 0 {
			log.Printf("[CREATE] mirrored presentation %s to object storage", p.ID)
		}
	}

	log.Printf("[CREATE] presentation created: %s", p.ID)
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"presentation_id": p.ID,
		"topic":           topic,
		"slides":          slides,
		"message":         "Presentation created successfully",
	})
}

// loadPresentation fetches one record from the store, translating ErrNotFound.
func (s *Server) loadPresentation(id string) (*deck.Presentation, bool) {
	p, err := s.store.Get(id)
	if err != nil {
		return nil, false
	}
	return p, true
}

// ensureModel lazily parses the rendered pptx into the editable model the
// first time it is requested, then persists the result.
func (s *Server) ensureModel(p *deck.Presentation) (*deck.DocumentModel, error) {
	if p.JSONData != nil {
		return p.JSONData, nil
	}
	if p.PPTPath == "" {
		return nil, fmt.Errorf("presentation has no rendered file")
	}
	model, err := s.parser.ParseFile(p.PPTPath, p.Topic)
	if err != nil {
		return nil, err
	}
	p.JSONData = model
	if err := s.store.Put(p); err != nil {
		log.Printf("[PARSER] failed to persist parsed model for %s: %v", p.ID, err)
	}
	return model, nil
}

func (s *Server) handleGetPresentationJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/get_presentation_json/")
	if id == "" {
		errorResponse(w, http.StatusBadRequest, "presentation_id is required")
		return
	}

	p, ok := s.loadPresentation(id)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Presentation JSON not found")
		return
	}

	model, err := s.ensureModel(p)
	if err != nil {
		log.Printf("[PARSER] extraction failed for %s: %v", id, err)
		errorResponse(w, http.StatusNotFound, "Presentation JSON not found")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"presentation_id": id,
		"json_data":       model,
	})
}

type updateSlideRequest struct {
	PresentationID string          `json:"presentation_id"`
	SlideID        string          `json:"slide_id"`
	SlideData      *deck.RichSlide `json:"slide_data"`
}

func (s *Server) handleUpdateSlide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req updateSlideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PresentationID == "" || req.SlideID == "" || req.SlideData == nil {
		errorResponse(w, http.StatusBadRequest, "Missing required fields: presentation_id, slide_id, slide_data")
		return
	}

	p, ok := s.loadPresentation(req.PresentationID)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Presentation not found")
		return
	}

	model, err := s.ensureModel(p)
	if err != nil {
		log.Printf("[UPDATE] no editable model for %s: %v", p.ID, err)
		errorResponse(w, http.StatusNotFound, "Presentation JSON not found")
		return
	}
	deck.UpdateSlide(model, req.SlideID, *req.SlideData)
	p.UpdatedAt = time.Now().Format(time.RFC3339)

	if err := s.store.Put(p); err != nil {
		log.Printf("[UPDATE] failed to persist %s: %v", p.ID, err)
		errorResponse(w, http.StatusInternalServerError, "Failed to save changes")
		return
	}

	s.mirrorUpdate(r, p)

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Slide updated successfully",
	})
}

// mirrorUpdate pushes the updated record to object storage, best effort.
func (s *Server) mirrorUpdate(r *http.Request, p *deck.Presentation) {
	if !s.s3.IsAvailable() {
		return
	}
	if urls := s.s3.UploadPresentationData(r.Context(), p); len(urls) > 0 {
		log.Printf("[S3] updated mirror for presentation %s", p.ID)
	}
}

type exportRequest struct {
	PresentationID string `json:"presentationId"`
	Format         string `json:"format"`
}

func (s *Server) handleExportPPT(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.PresentationID == "" {
		errorResponse(w, http.StatusBadRequest, "presentation_id is required")
		return
	}
	format := req.Format
	if format == "" {
		format = "pptx"
	}

	p, ok := s.loadPresentation(req.PresentationID)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Presentation not found")
		return
	}

	if err := ValidateEnum("format", format, []string{"pptx", "pdf"}); err != nil {
		errorResponse(w, http.StatusBadRequest, "Unsupported export format")
		return
	}
	if format == "pdf" {
		s.exportPDF(w, p)
		return
	}
	s.exportPPTX(w, p)
}

// exportPPTX streams the deck as a pptx attachment. Edited decks are
// re-rendered from the document model so downloads reflect edits.
func (s *Server) exportPPTX(w http.ResponseWriter, p *deck.Presentation) {
	filename := SanitizeFilename(p.Topic, 50) + ".pptx"

	if p.JSONData != nil {
		data, err := s.ppt.RenderModel(p.JSONData, p.Topic)
		if err != nil {
			log.Printf("[EXPORT] re-render failed for %s: %v", p.ID, err)
			errorResponse(w, http.StatusInternalServerError, "Export error")
			return
		}
		writeAttachment(w, filename, "application/vnd.openxmlformats-officedocument.presentationml.presentation", data)
		return
	}

	data, err := os.ReadFile(p.PPTPath)
	if err != nil {
		errorResponse(w, http.StatusNotFound, "PowerPoint file not found")
		return
	}
	writeAttachment(w, filename, "application/vnd.openxmlformats-officedocument.presentationml.presentation", data)
}

func (s *Server) exportPDF(w http.ResponseWriter, p *deck.Presentation) {
	model, err := s.ensureModel(p)
	if err != nil {
		log.Printf("[EXPORT] model extraction failed for %s: %v", p.ID, err)
		errorResponse(w, http.StatusInternalServerError, "Export error")
		return
	}
	data, err := s.pdf.ExportModel(model, p.Topic)
	if err != nil {
		log.Printf("[EXPORT] pdf generation failed for %s: %v", p.ID, err)
		errorResponse(w, http.StatusInternalServerError, "Export error")
		return
	}
	writeAttachment(w, SanitizeFilename(p.Topic, 50)+".pdf", "application/pdf", data)
}

func writeAttachment(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleDeletePresentation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/delete_presentation/")
	if id == "" {
		errorResponse(w, http.StatusBadRequest, "presentation_id is required")
		return
	}

	// Remember the rendered file before the record goes away.
	var pptPath string
	if p, ok := s.loadPresentation(id); ok {
		pptPath = p.PPTPath
	}

	if err := s.store.Delete(id); err != nil && err != ErrNotFound {
		log.Printf("[DELETE] failed to delete record %s: %v", id, err)
	}

	if s.s3.IsAvailable() {
		if err := s.s3.DeletePresentationFiles(r.Context(), id); err != nil {
			log.Printf("[DELETE] failed to delete mirrored files for %s: %v", id, err)
		}
	}

	if pptPath != "" {
		if err := os.Remove(pptPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[DELETE] failed to delete local file %s: %v", pptPath, err)
		}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("Presentation %s deleted successfully", id),
	})
}

type slideOperationRequest struct {
	Operation      string `json:"operation"`
	PresentationID string `json:"presentation_id"`
	SlideIndex     *int   `json:"slide_index"`
}

func (s *Server) handleSlideOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req slideOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Operation == "" || req.PresentationID == "" || req.SlideIndex == nil {
		errorResponse(w, http.StatusBadRequest, "Missing required fields: operation, presentation_id, slide_index")
		return
	}

	p, ok := s.loadPresentation(req.PresentationID)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Presentation not found")
		return
	}
	model, err := s.ensureModel(p)
	if err != nil {
		log.Printf("[SLIDES] no editable model for %s: %v", p.ID, err)
		errorResponse(w, http.StatusNotFound, "Presentation data not found")
		return
	}

	var message string
	switch req.Operation {
	case "copy":
		err = deck.CopySlide(model, *req.SlideIndex)
		message = "Slide copied successfully"
	case "delete":
		err = deck.DeleteSlide(model, *req.SlideIndex)
		message = "Slide deleted successfully"
	default:
		errorResponse(w, http.StatusBadRequest, `Invalid operation. Use "copy" or "delete"`)
		return
	}
	if err != nil {
		switch err {
		case deck.ErrIndexOutOfRange:
			errorResponse(w, http.StatusBadRequest, "Invalid slide index")
		case deck.ErrMinimumSlides:
			errorResponse(w, http.StatusBadRequest, "Cannot delete slide. Presentation must have at least one slide.")
		default:
			errorResponse(w, http.StatusInternalServerError, "Error performing slide operation")
		}
		return
	}

	p.UpdatedAt = time.Now().Format(time.RFC3339)
	if err := s.store.Put(p); err != nil {
		log.Printf("[SLIDES] failed to persist %s after %s: %v", p.ID, req.Operation, err)
		errorResponse(w, http.StatusInternalServerError, "Failed to save changes")
		return
	}

	s.mirrorUpdate(r, p)

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"message":        message,
		"updated_slides": p.JSONData.Slides,
		"slide_count":    len(p.JSONData.Slides),
	})
}

// Routes registers all handlers on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.corsMiddleware(s.handleRoot))
	mux.HandleFunc("/health", s.corsMiddleware(s.handleHealth))
	mux.HandleFunc("/create_presentation", s.corsMiddleware(s.handleCreatePresentation))
	mux.HandleFunc("/get_presentation_json/", s.corsMiddleware(s.handleGetPresentationJSON))
	mux.HandleFunc("/update_slide", s.corsMiddleware(s.handleUpdateSlide))
	mux.HandleFunc("/export_ppt", s.corsMiddleware(s.handleExportPPT))
	mux.HandleFunc("/delete_presentation/", s.corsMiddleware(s.handleDeletePresentation))
	mux.HandleFunc("/slide_operations", s.corsMiddleware(s.handleSlideOperations))
	return mux
}
