package extract

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelbroker/internal/images"
	"modelbroker/internal/utils"
)

// pngBase64 decodes to the 8-byte PNG signature.
const pngBase64 = "iVBORw0KGgo="

func newTestExtractor(t *testing.T) (*Extractor, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := images.NewStore(dir, "http://localhost:8080/images")
	require.NoError(t, err)
	return NewExtractor(store, utils.NewLogger("extract-test")), dir
}

func TestExtractText(t *testing.T) {
	e, _ := newTestExtractor(t)

	tests := []struct {
		name    string
		body    string
		want    string
		wantErr error
	}{
		{
			name: "plain string content",
			body: `{"choices":[{"message":{"content":"hello there"}}]}`,
			want: "hello there",
		},
		{
			name: "empty string is a valid completion",
			body: `{"choices":[{"message":{"content":""}}]}`,
			want: "",
		},
		{
			name: "content parts array",
			body: `{"choices":[{"message":{"content":[{"type":"text","text":"from parts"}]}}]}`,
			want: "from parts",
		},
		{
			name:    "no choices",
			body:    `{"choices":[]}`,
			wantErr: ErrNoTextContent,
		},
		{
			name:    "null content",
			body:    `{"choices":[{"message":{"content":null}}]}`,
			wantErr: ErrNoTextContent,
		},
		{
			name:    "parts array with no text part",
			body:    `{"choices":[{"message":{"content":[{"type":"image_url","image_url":{"url":"https://x/y.png"}}]}}]}`,
			wantErr: ErrNoTextContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Text([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTextMalformedJSON(t *testing.T) {
	e, _ := newTestExtractor(t)

	_, err := e.Text([]byte(`{not json`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoTextContent)
}

func TestExtractImageRemoteURL(t *testing.T) {
	e, _ := newTestExtractor(t)
	ctx := context.Background()

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "message images field",
			body: `{"choices":[{"message":{"images":[{"image_url":{"url":"https://cdn.example.com/a.png"}}]}}]}`,
			want: "https://cdn.example.com/a.png",
		},
		{
			name: "content array image part",
			body: `{"choices":[{"message":{"content":[{"type":"image_url","image_url":{"url":"https://cdn.example.com/b.png"}}]}}]}`,
			want: "https://cdn.example.com/b.png",
		},
		{
			name: "data url field",
			body: `{"data":[{"url":"https://cdn.example.com/c.png"}]}`,
			want: "https://cdn.example.com/c.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Image(ctx, []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractImageDataURIPersisted(t *testing.T) {
	e, dir := newTestExtractor(t)

	body := `{"choices":[{"message":{"images":[{"image_url":{"url":"data:image/png;base64,` + pngBase64 + `"}}]}}]}`
	url, err := e.Image(context.Background(), []byte(body))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "http://localhost:8080/images/"))
	assert.True(t, strings.HasSuffix(url, ".png"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestExtractImageB64JSON(t *testing.T) {
	e, dir := newTestExtractor(t)

	body := `{"data":[{"b64_json":"` + pngBase64 + `"}]}`
	url, err := e.Image(context.Background(), []byte(body))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(url, ".png"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestExtractImageShapePriority(t *testing.T) {
	e, _ := newTestExtractor(t)

	// The message-level image wins over the data field.
	body := `{
		"choices":[{"message":{"images":[{"image_url":{"url":"https://first.example.com/a.png"}}]}}],
		"data":[{"url":"https://second.example.com/b.png"}]
	}`
	url, err := e.Image(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.Equal(t, "https://first.example.com/a.png", url)
}

func TestExtractImageDataFieldB64BeatsURL(t *testing.T) {
	e, dir := newTestExtractor(t)

	// A base64 payload later in the array outranks a url-only element
	// before it.
	body := `{"data":[{"url":"https://remote.example.com/a.png"},{"b64_json":"` + pngBase64 + `"}]}`
	url, err := e.Image(context.Background(), []byte(body))
	require.NoError(t, err)
	assert.NotEqual(t, "https://remote.example.com/a.png", url)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestExtractImageBadData(t *testing.T) {
	e, _ := newTestExtractor(t)
	ctx := context.Background()

	tests := []struct {
		name string
		body string
	}{
		{
			name: "invalid base64 in data URI",
			body: `{"choices":[{"message":{"images":[{"image_url":{"url":"data:image/png;base64,!!!not-base64!!!"}}]}}]}`,
		},
		{
			name: "data URI without base64 marker",
			body: `{"choices":[{"message":{"images":[{"image_url":{"url":"data:image/png,rawpayload"}}]}}]}`,
		},
		{
			name: "invalid b64_json payload",
			body: `{"data":[{"b64_json":"%%%%"}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Image(ctx, []byte(tt.body))
			assert.ErrorIs(t, err, ErrBadImageData)
		})
	}
}

func TestExtractImageNoImage(t *testing.T) {
	e, _ := newTestExtractor(t)

	tests := []string{
		`{"choices":[{"message":{"content":"just text"}}]}`,
		`{"choices":[]}`,
		`{"data":[]}`,
		`{}`,
	}

	for _, body := range tests {
		_, err := e.Image(context.Background(), []byte(body))
		if !errors.Is(err, ErrNoImage) {
			t.Errorf("Image(%s) error = %v, want ErrNoImage", body, err)
		}
	}
}
