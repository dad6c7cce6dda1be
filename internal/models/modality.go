package models

import "fmt"

// Modality identifies what a request consumes and produces.
type Modality string

const (
	ModalityTextToText   Modality = "text_to_text"
	ModalityTextToImage  Modality = "text_to_image"
	ModalityImageToImage Modality = "image_to_image"
	ModalityImageToText  Modality = "image_to_text"
)

// AllModalities lists every recognized modality tag.
var AllModalities = []Modality{
	ModalityTextToText,
	ModalityTextToImage,
	ModalityImageToImage,
	ModalityImageToText,
}

// ParseModality validates a raw modality tag.
func ParseModality(s string) (Modality, error) {
	m := Modality(s)
	switch m {
	case ModalityTextToText, ModalityTextToImage, ModalityImageToImage, ModalityImageToText:
		return m, nil
	}
	return "", fmt.Errorf("unknown modality %q", s)
}

// ConsumesImage reports whether requests of this modality require an input image.
func (m Modality) ConsumesImage() bool {
	return m == ModalityImageToImage || m == ModalityImageToText
}

// ProducesImage reports whether responses of this modality carry an image.
func (m Modality) ProducesImage() bool {
	return m == ModalityTextToImage || m == ModalityImageToImage
}

// AspectRatios is the fixed set of aspect ratios image-producing requests may ask for.
var AspectRatios = []string{
	"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9",
}

// ValidAspectRatio reports whether ratio is in the allowed set.
func ValidAspectRatio(ratio string) bool {
	for _, r := range AspectRatios {
		if r == ratio {
			return true
		}
	}
	return false
}
