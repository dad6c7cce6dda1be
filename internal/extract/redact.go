package extract

import (
	"encoding/base64"
	"fmt"
	"regexp"
)

// dataURIPattern matches base64 data URIs embedded in JSON or log text
var dataURIPattern = regexp.MustCompile(`data:([a-zA-Z0-9/+.-]+);base64,([A-Za-z0-9+/=]+)`)

// b64FieldPattern matches long bare base64 runs, such as b64_json values
var b64FieldPattern = regexp.MustCompile(`"b64_json"\s*:\s*"([A-Za-z0-9+/=]{16,})"`)

const maxSnippetBytes = 2048

// Redact replaces base64 payloads in raw with placeholders stating the
// media type and decoded byte length, then truncates the result to a
// loggable size. The output is for operator logs only and is never
// returned to a caller.
func Redact(raw []byte) string {
	out := dataURIPattern.ReplaceAllStringFunc(string(raw), func(m string) string {
		sub := dataURIPattern.FindStringSubmatch(m)
		return fmt.Sprintf("[%s ~%d bytes]", sub[1], decodedLen(sub[2]))
	})

	out = b64FieldPattern.ReplaceAllStringFunc(out, func(m string) string {
		sub := b64FieldPattern.FindStringSubmatch(m)
		return fmt.Sprintf(`"b64_json": "[base64 ~%d bytes]"`, decodedLen(sub[1]))
	})

	if len(out) > maxSnippetBytes {
		out = out[:maxSnippetBytes] + "...(truncated)"
	}

	return out
}

func decodedLen(payload string) int {
	n, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return len(payload) * 3 / 4
	}
	return len(n)
}
