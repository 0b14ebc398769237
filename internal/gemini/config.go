package gemini

import (
	"log/slog"
	"net/http"
	"time"
)

// SafetySetting adjusts one of the service's content-filter categories.
type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// BlockNoneSafetySettings disables the four default filter categories.
// Deliberate: the pipeline processes sensitive forensic material that the
// default thresholds would refuse. Callers must opt in explicitly; the
// client never assumes these.
func BlockNoneSafetySettings() []SafetySetting {
	return []SafetySetting{
		{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
		{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
		{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
		{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
	}
}

// Config for the Gemini client.
type Config struct {
	APIKey         string        // required; validated by common.Config before construction
	BaseURL        string        // default https://generativelanguage.googleapis.com/v1beta
	Model          string        // e.g. "gemini-flash-latest"
	Timeout        time.Duration // http client timeout
	Instructions   string        // prompt text sent with every page image
	SafetySettings []SafetySetting
}

type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-flash-latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  logger,
	}
}
