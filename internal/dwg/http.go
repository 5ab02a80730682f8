package dwg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// HTTPConverter posts the drawing as multipart field "file" to a conversion
// endpoint that answers with DXF bytes, or with an error message.
type HTTPConverter struct {
	URL    string
	client *http.Client
}

// NewHTTPConverter creates a converter for url. If client is nil, a default
// client with a 2 minute timeout is used.
func NewHTTPConverter(url string, client *http.Client) *HTTPConverter {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &HTTPConverter{URL: url, client: client}
}

// Convert implements Converter.
func (c *HTTPConverter) Convert(ctx context.Context, name string, data []byte) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(name))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrConverterUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg := errorMessage(resp.Body)
		if strings.Contains(strings.ToLower(msg), "converter tool not found") {
			return nil, fmt.Errorf("%w: %s", ErrConverterUnavailable, msg)
		}
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrConversionFailed, resp.StatusCode, msg)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrConversionFailed, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrConversionFailed)
	}
	return out, nil
}

// errorMessage extracts {"error": "..."} or falls back to the raw text.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
		if payload.Details != "" {
			return payload.Error + " (" + payload.Details + ")"
		}
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
