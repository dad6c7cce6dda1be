package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestModelSupportsModality(t *testing.T) {
	model := &Model{
		ID:          uuid.New(),
		NameForUser: "gpt-4.1-nano",
		Modalities:  pq.StringArray{"text_to_text", "image_to_text"},
	}

	assert.True(t, model.SupportsModality(ModalityTextToText))
	assert.True(t, model.SupportsModality(ModalityImageToText))
	assert.False(t, model.SupportsModality(ModalityTextToImage))
	assert.False(t, model.SupportsModality(ModalityImageToImage))
}

func TestModelSupportedModalities(t *testing.T) {
	model := &Model{
		Modalities: pq.StringArray{"text_to_image", "image_to_image"},
	}

	got := model.SupportedModalities()
	assert.Equal(t, []Modality{ModalityTextToImage, ModalityImageToImage}, got)
}

func TestModelBasicCostUSD(t *testing.T) {
	tests := []struct {
		name           string
		inputPrice     float64
		outputPrice    float64
		inputTokens    int64
		outputTokens   int64
		wantInputUSD   float64
		wantOutputUSD  float64
	}{
		{
			name:          "typical completion",
			inputPrice:    0.10,
			outputPrice:   0.40,
			inputTokens:   120,
			outputTokens:  340,
			wantInputUSD:  0.000012,
			wantOutputUSD: 0.000136,
		},
		{
			name:          "one million tokens each",
			inputPrice:    2.50,
			outputPrice:   10.00,
			inputTokens:   1_000_000,
			outputTokens:  1_000_000,
			wantInputUSD:  2.50,
			wantOutputUSD: 10.00,
		},
		{
			name:          "zero usage",
			inputPrice:    0.10,
			outputPrice:   0.40,
			inputTokens:   0,
			outputTokens:  0,
			wantInputUSD:  0,
			wantOutputUSD: 0,
		},
		{
			name:          "output only",
			inputPrice:    0.10,
			outputPrice:   0.40,
			inputTokens:   0,
			outputTokens:  1000,
			wantInputUSD:  0,
			wantOutputUSD: 0.0004,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &Model{
				InputPriceUSD:  tt.inputPrice,
				OutputPriceUSD: tt.outputPrice,
			}
			inputUSD, outputUSD := model.BasicCostUSD(tt.inputTokens, tt.outputTokens)
			assert.InDelta(t, tt.wantInputUSD, inputUSD, 1e-12)
			assert.InDelta(t, tt.wantOutputUSD, outputUSD, 1e-12)
		})
	}
}

func TestRequestEntrySettled(t *testing.T) {
	entry := &RequestEntry{}
	assert.False(t, entry.Settled())

	entry.Operated = true
	assert.True(t, entry.Settled())
}
