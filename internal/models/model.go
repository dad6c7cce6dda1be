package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

//
// Model (ai_models table)
//

// Model describes a provider-side AI model offered to users.
type Model struct {
	ID uuid.UUID `db:"id" json:"id"`

	// NameForUser is the display name shown in the bot.
	NameForUser string `db:"name_for_user" json:"name_for_user"`

	// NameForRequest is the name sent to the provider API.
	NameForRequest string `db:"name_for_request" json:"name_for_request"`

	// EncryptedProviderKey is the provider API key, AES-GCM encrypted at rest.
	EncryptedProviderKey string `db:"encrypted_provider_key" json:"-"`

	// Modalities the model supports, e.g. {text_to_text, text_to_image}.
	// Never empty for a usable model.
	Modalities pq.StringArray `db:"modalities" json:"modalities"`

	// Basic provider prices in USD per 1M tokens.
	InputPriceUSD  float64 `db:"input_price_usd" json:"input_price_usd"`
	OutputPriceUSD float64 `db:"output_price_usd" json:"output_price_usd"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SupportsModality reports whether the model declares support for m.
func (m *Model) SupportsModality(mod Modality) bool {
	for _, s := range m.Modalities {
		if Modality(s) == mod {
			return true
		}
	}
	return false
}

// SupportedModalities returns the declared modality set as typed values.
func (m *Model) SupportedModalities() []Modality {
	out := make([]Modality, 0, len(m.Modalities))
	for _, s := range m.Modalities {
		out = append(out, Modality(s))
	}
	return out
}

// BasicCostUSD computes the provider's basic cost for a token usage pair.
// Prices are quoted per 1M tokens.
func (m *Model) BasicCostUSD(inputTokens, outputTokens int64) (inputUSD, outputUSD float64) {
	inputUSD = float64(inputTokens) * m.InputPriceUSD / 1_000_000
	outputUSD = float64(outputTokens) * m.OutputPriceUSD / 1_000_000
	return inputUSD, outputUSD
}
