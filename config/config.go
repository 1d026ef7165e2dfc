package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// R2Config holds the S3-compatible object storage credentials. The mirror is
// capability-gated: when any of the three credential fields is empty the
// service runs with mirroring disabled.
type R2Config struct {
	AccountID       string `json:"accountId"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Bucket          string `json:"bucket"`
	EndpointURL     string `json:"endpointUrl"`
}

// Config structure
type Config struct {
	Port             int      `json:"port"`
	StorageRoot      string   `json:"storageRoot"`      // persistent disk root
	StoreBackend     string   `json:"storeBackend"`     // "file" or "sqlite"
	AllowedOrigins   []string `json:"allowedOrigins"`   // CORS origins, "*" allowed
	OpenRouterAPIKey string   `json:"openRouterApiKey"`
	OpenRouterModel  string   `json:"openRouterModel"`
	LLMBaseURL       string   `json:"llmBaseUrl"`
	PexelsAPIKey     string   `json:"pexelsApiKey"`
	R2               R2Config `json:"r2"`
}

// PresentationsDir is where the per-id JSON records live.
func (c Config) PresentationsDir() string {
	return filepath.Join(c.StorageRoot, "presentations")
}

// GeneratedDir is where rendered pptx files are written.
func (c Config) GeneratedDir() string {
	return filepath.Join(c.StorageRoot, "generated_ppts")
}

// Load builds a Config from environment variables, falling back to local
// development defaults for every non-secret value.
func Load() Config {
	cfg := Config{
		Port:             envInt("PORT", 5002),
		StorageRoot:      envString("PERSISTENT_STORAGE_PATH", "persistent_data"),
		StoreBackend:     envString("STORE_BACKEND", "file"),
		AllowedOrigins:   splitOrigins(envString("ALLOWED_ORIGINS", "*")),
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:  envString("OPENROUTER_MODEL", "anthropic/claude-3.5-sonnet"),
		LLMBaseURL:       envString("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1/chat/completions"),
		PexelsAPIKey:     os.Getenv("PEXELS_API_KEY"),
		R2: R2Config{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			Bucket:          envString("R2_BUCKET_NAME", "slidesmith-files"),
			EndpointURL:     os.Getenv("R2_ENDPOINT_URL"),
		},
	}
	return cfg
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}
