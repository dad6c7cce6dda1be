// Package dispatch routes a validated request to the provider call
// appropriate for its modality and normalizes the response.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"modelbroker/internal/extract"
	"modelbroker/internal/models"
	"modelbroker/internal/providers"
)

// ErrorCode classifies dispatch rejections
type ErrorCode string

const (
	// CodeUnknownModality means the tag is not one of the four known ones
	CodeUnknownModality ErrorCode = "unknown_modality"
	// CodeModalityUnsupported means the model does not serve this modality
	CodeModalityUnsupported ErrorCode = "modality_unsupported"
	// CodeMissingImage means an image-consuming modality got no image
	CodeMissingImage ErrorCode = "missing_image"
	// CodeBadAspectRatio means the aspect ratio is outside the allowed set
	CodeBadAspectRatio ErrorCode = "bad_aspect_ratio"
)

// Error is a dispatch rejection. Allowed carries the set the request fell
// outside of, so callers can name it for the user.
type Error struct {
	Code    ErrorCode
	Message string
	Allowed []string
}

func (e *Error) Error() string {
	if len(e.Allowed) > 0 {
		return fmt.Sprintf("%s (allowed: %s)", e.Message, strings.Join(e.Allowed, ", "))
	}
	return e.Message
}

// Request is a validated unit of work for one provider call
type Request struct {
	Input       string
	Modality    models.Modality
	ImageRef    string
	AspectRatio string
}

// Result is the dispatcher's normalized outcome. Text and ImageURL are
// mutually exclusive; token counts are zero when the provider omitted
// usage metadata.
type Result struct {
	Text         string
	ImageURL     string
	InputTokens  int64
	OutputTokens int64
}

// Dispatcher validates requests and runs exactly one provider call per
// request through the strategy registered for its modality
type Dispatcher struct {
	client     *providers.Client
	extractor  *extract.Extractor
	strategies map[models.Modality]strategy
}

type strategy func(ctx context.Context, d *Dispatcher, apiKey, modelName string, req Request) (*Result, error)

// NewDispatcher creates a dispatcher over the given provider client and
// extractor
func NewDispatcher(client *providers.Client, extractor *extract.Extractor) *Dispatcher {
	d := &Dispatcher{
		client:    client,
		extractor: extractor,
	}
	d.strategies = map[models.Modality]strategy{
		models.ModalityTextToText:   dispatchTextToText,
		models.ModalityTextToImage:  dispatchTextToImage,
		models.ModalityImageToImage: dispatchImageToImage,
		models.ModalityImageToText:  dispatchImageToText,
	}
	return d
}

// Dispatch validates the request against the model's capabilities, invokes
// the provider, and returns the normalized result. Validation order:
// known tag, supported set, modality-specific required fields.
func (d *Dispatcher) Dispatch(ctx context.Context, model *models.Model, apiKey string, req Request) (*Result, error) {
	if _, err := models.ParseModality(string(req.Modality)); err != nil {
		return nil, &Error{
			Code:    CodeUnknownModality,
			Message: fmt.Sprintf("unknown modality %q", req.Modality),
			Allowed: modalityStrings(models.AllModalities),
		}
	}

	if !model.SupportsModality(req.Modality) {
		return nil, &Error{
			Code:    CodeModalityUnsupported,
			Message: fmt.Sprintf("model %s does not support modality %q", model.NameForUser, req.Modality),
			Allowed: modalityStrings(model.SupportedModalities()),
		}
	}

	if req.Modality.ConsumesImage() && req.ImageRef == "" {
		return nil, &Error{
			Code:    CodeMissingImage,
			Message: fmt.Sprintf("modality %q requires an image reference", req.Modality),
		}
	}

	if req.Modality.ProducesImage() && req.AspectRatio != "" && !models.ValidAspectRatio(req.AspectRatio) {
		return nil, &Error{
			Code:    CodeBadAspectRatio,
			Message: fmt.Sprintf("aspect ratio %q is not supported", req.AspectRatio),
			Allowed: models.AspectRatios,
		}
	}

	return d.strategies[req.Modality](ctx, d, apiKey, model.NameForRequest, req)
}

func modalityStrings(in []models.Modality) []string {
	out := make([]string, len(in))
	for i, m := range in {
		out[i] = string(m)
	}
	return out
}

func dispatchTextToText(ctx context.Context, d *Dispatcher, apiKey, modelName string, req Request) (*Result, error) {
	resp, err := d.client.Chat(ctx, apiKey, providers.ChatRequest{
		Model: modelName,
		Messages: []providers.Message{
			{Role: "user", Content: req.Input},
		},
	})
	if err != nil {
		return nil, err
	}

	text, err := d.extractor.Text(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:         text,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

func dispatchTextToImage(ctx context.Context, d *Dispatcher, apiKey, modelName string, req Request) (*Result, error) {
	chatReq := providers.ChatRequest{
		Model: modelName,
		Messages: []providers.Message{
			{Role: "user", Content: req.Input},
		},
		Modalities: []string{"image"},
	}
	if req.AspectRatio != "" {
		chatReq.ImageConfig = &providers.ImageConfig{AspectRatio: req.AspectRatio}
	}

	resp, err := d.client.Chat(ctx, apiKey, chatReq)
	if err != nil {
		return nil, err
	}

	url, err := d.extractor.Image(ctx, resp.Body)
	if err != nil {
		return nil, err
	}

	return &Result{
		ImageURL:     url,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

func dispatchImageToImage(ctx context.Context, d *Dispatcher, apiKey, modelName string, req Request) (*Result, error) {
	chatReq := providers.ChatRequest{
		Model: modelName,
		Messages: []providers.Message{
			{Role: "user", Content: []interface{}{
				providers.TextPart{Type: "text", Text: req.Input},
				providers.ImagePart{Type: "image_url", ImageURL: providers.ImageURL{URL: req.ImageRef}},
			}},
		},
		Modalities: []string{"image"},
	}
	if req.AspectRatio != "" {
		chatReq.ImageConfig = &providers.ImageConfig{AspectRatio: req.AspectRatio}
	}

	resp, err := d.client.Chat(ctx, apiKey, chatReq)
	if err != nil {
		return nil, err
	}

	url, err := d.extractor.Image(ctx, resp.Body)
	if err != nil {
		return nil, err
	}

	return &Result{
		ImageURL:     url,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

func dispatchImageToText(ctx context.Context, d *Dispatcher, apiKey, modelName string, req Request) (*Result, error) {
	resp, err := d.client.Chat(ctx, apiKey, providers.ChatRequest{
		Model: modelName,
		Messages: []providers.Message{
			{Role: "user", Content: []interface{}{
				providers.TextPart{Type: "text", Text: req.Input},
				providers.ImagePart{Type: "image_url", ImageURL: providers.ImageURL{URL: req.ImageRef}},
			}},
		},
	})
	if err != nil {
		return nil, err
	}

	text, err := d.extractor.Text(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Result{
		Text:         text,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}
