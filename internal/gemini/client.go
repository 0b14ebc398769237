package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/apatheia-labs/docscribe/internal/extract"
)

// ServiceError is the client's single failure type. Error() embeds the
// HTTP status code and the API status string so callers that classify by
// signal inspection (the service guarantees no structured taxonomy) can
// see "429" / "RESOURCE_EXHAUSTED" in the text.
type ServiceError struct {
	StatusCode int
	Status     string
	Message    string
	Cause      error
}

func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("gemini: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("gemini: status %d (%s): %s", e.StatusCode, e.Status, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

type generateRequest struct {
	Contents       []content       `json:"contents"`
	SafetySettings []SafetySetting `json:"safetySettings,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// ExtractPage implements extract.PageExtractor with a single
// generateContent call carrying the instruction text and the page image.
func (c *Client) ExtractPage(ctx context.Context, page extract.Page) (extract.PageResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("gemini.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"page", page.Index,
		"image_bytes", len(page.PNG),
	)

	body := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: c.cfg.Instructions},
				{InlineData: &inlineData{
					MIMEType: "image/png",
					Data:     base64.StdEncoding.EncodeToString(page.PNG),
				}},
			},
		}},
		SafetySettings: c.cfg.SafetySettings,
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("gemini.extract.error",
			"req_id", rid, "page", page.Index, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.PageResult{}, err
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log.Error("gemini.extract.decode_error",
			"req_id", rid, "page", page.Index, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return extract.PageResult{}, &ServiceError{Message: "decode response", Cause: err}
	}

	res := extract.PageResult{BlockReason: resp.PromptFeedback.BlockReason}
	if res.BlockReason != "" {
		// Soft signal: the call succeeded but the prompt was flagged. The
		// caller decides whether the (possibly empty) text is usable.
		c.log.Warn("gemini.extract.blocked",
			"req_id", rid, "page", page.Index, "block_reason", res.BlockReason)
	}

	var b strings.Builder
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			b.WriteString(p.Text)
		}
	}
	res.Text = b.String()

	c.log.Info("gemini.extract.ok",
		"req_id", rid,
		"page", page.Index,
		"text_len", len(res.Text),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, &ServiceError{Message: "marshal request", Cause: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, &ServiceError{Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ServiceError{Message: "http error", Cause: err}
	}
	defer func(rc io.ReadCloser) {
		if cerr := rc.Close(); cerr != nil {
			c.log.Warn("gemini response body close error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		msg := ae.Error.Message
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return nil, &ServiceError{
			StatusCode: resp.StatusCode,
			Status:     ae.Error.Status,
			Message:    msg,
		}
	}
	return raw, nil
}
