// Package extract normalizes raw provider responses into a canonical
// result: a text completion, or an image reference (remote URL or freshly
// persisted local path).
package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"modelbroker/internal/images"
	"modelbroker/internal/utils"
)

var (
	// ErrNoTextContent indicates the response carried no completion at all.
	// Distinct from an empty-string completion, which is a valid result.
	ErrNoTextContent = errors.New("no text content in provider response")

	// ErrNoImage indicates none of the recognized image shapes matched
	ErrNoImage = errors.New("no image found in provider response")

	// ErrBadImageData indicates an image was found but its data URI could
	// not be decoded
	ErrBadImageData = errors.New("malformed image data in provider response")
)

// Extractor pulls canonical results out of provider response bodies.
// Image payloads that arrive inline as data URIs are persisted through the
// store and returned as public URLs.
type Extractor struct {
	store  *images.Store
	logger *utils.Logger
}

// NewExtractor creates a new extractor
func NewExtractor(store *images.Store, logger *utils.Logger) *Extractor {
	return &Extractor{store: store, logger: logger}
}

// chatResponse covers the provider shapes the extractor understands.
// Message content is raw because providers send either a plain string or
// an array of typed parts.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
			Images  []struct {
				ImageURL struct {
					URL string `json:"url"`
				} `json:"image_url"`
			} `json:"images"`
		} `json:"message"`
	} `json:"choices"`
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	ImageURL struct {
		URL string `json:"url"`
	} `json:"image_url"`
}

// Text extracts the first completion's textual content. An empty string is
// returned as-is; ErrNoTextContent means no completion was present.
func (e *Extractor) Text(raw []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoTextContent
	}

	content := resp.Choices[0].Message.Content
	if len(content) == 0 || string(content) == "null" {
		return "", ErrNoTextContent
	}

	var text string
	if err := json.Unmarshal(content, &text); err == nil {
		return text, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(content, &parts); err == nil {
		for _, part := range parts {
			if part.Type == "text" {
				return part.Text, nil
			}
		}
	}

	return "", ErrNoTextContent
}

// Image extracts an image reference, trying the recognized shapes in fixed
// priority order:
//  1. message-level inline image reference,
//  2. content-array element tagged as an image,
//  3. base64 payload in the data field,
//  4. bare remote url in the data field.
//
// http(s) references are returned untouched; data URIs are decoded and
// persisted, returning the public URL of the saved file.
func (e *Extractor) Image(ctx context.Context, raw []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to decode provider response: %w", err)
	}

	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message

		for _, img := range msg.Images {
			if img.ImageURL.URL != "" {
				return e.resolve(img.ImageURL.URL)
			}
		}

		var parts []contentPart
		if err := json.Unmarshal(msg.Content, &parts); err == nil {
			for _, part := range parts {
				if part.Type == "image_url" && part.ImageURL.URL != "" {
					return e.resolve(part.ImageURL.URL)
				}
			}
		}
	}

	// Base64 payloads outrank bare urls across the whole data array.
	for _, d := range resp.Data {
		if d.B64JSON != "" {
			data, err := base64.StdEncoding.DecodeString(d.B64JSON)
			if err != nil {
				return "", fmt.Errorf("%w: %v", ErrBadImageData, err)
			}
			return e.store.Save(data, "image/png")
		}
	}
	for _, d := range resp.Data {
		if d.URL != "" {
			return e.resolve(d.URL)
		}
	}

	e.logger.Warn("Unrecognized provider response shape", "snippet", Redact(raw))
	return "", ErrNoImage
}

// resolve returns http(s) references as-is and persists data URIs
func (e *Extractor) resolve(ref string) (string, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref, nil
	}

	mediaType, data, err := decodeDataURI(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadImageData, err)
	}

	return e.store.Save(data, mediaType)
}

// decodeDataURI parses a data:<mediatype>;base64,<payload> URI
func decodeDataURI(uri string) (mediaType string, data []byte, err error) {
	if !strings.HasPrefix(uri, "data:") {
		return "", nil, fmt.Errorf("not a data URI")
	}

	rest := strings.TrimPrefix(uri, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return "", nil, fmt.Errorf("data URI missing payload separator")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}

	mediaType = strings.TrimSuffix(meta, ";base64")
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode base64 payload: %w", err)
	}

	return mediaType, data, nil
}
