// Package httplog captures HTTP exchanges and OAuth redirects as
// privacy-redacted structured log records.
//
// Every record passes the same redaction rules: headers outside the
// allow-list are dropped, authorization values and OAuth query parameters
// are masked, and bodies are capped at a fixed length. A record that fails
// to encode degrades to a plain single-line summary; logging never aborts
// the request pipeline.
package httplog

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// maxBodyLength caps logged request and response bodies.
const maxBodyLength = 1000

// truncationMarker is appended to bodies cut at maxBodyLength.
const truncationMarker = "...(truncated)"

const masked = "*****"

// allowedHeaders is the exact-match header allow-list. Any header whose
// name starts with "x-" is also allowed.
var allowedHeaders = map[string]bool{
	"content-type":    true,
	"authorization":   true,
	"user-agent":      true,
	"accept":          true,
	"accept-language": true,
	"location":        true,
	"cache-control":   true,
}

// maskedParams masks OAuth secrets wherever they appear in a logged URL.
var maskedParams = regexp.MustCompile(`(code=|access_token=|refresh_token=|client_secret=|state=)[^&]*`)

// Field is one ordered key/value pair of a structured record.
type Field struct {
	Key   string
	Value any
}

// Formatter converts log records into flat JSON lines on a sink.
type Formatter struct {
	mu     sync.Mutex
	out    io.Writer
	encode func(any) ([]byte, error)
	now    func() time.Time
}

// NewFormatter creates a Formatter writing to out. A nil out defaults to
// stdout.
func NewFormatter(out io.Writer) *Formatter {
	if out == nil {
		out = os.Stdout
	}
	return &Formatter{
		out:    out,
		encode: json.Marshal,
		now:    time.Now,
	}
}

// Emit writes one structured record of the given type and severity. Caller
// fields are flattened in order; nil and blank values are omitted, never
// emitted as null. Encoding failure falls back to a single-line summary.
func (f *Formatter) Emit(recordType, level string, fields []Field) {
	rec := record{
		{Key: "type", Value: recordType},
		{Key: "level", Value: level},
		{Key: "timestamp", Value: f.now().UnixMilli()},
	}
	for _, field := range fields {
		if field.Value == nil {
			continue
		}
		switch v := field.Value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				continue
			}
			rec = append(rec, Field{Key: field.Key, Value: v})
		case int, int64, uint, float64, bool:
			rec = append(rec, Field{Key: field.Key, Value: v})
		default:
			rec = append(rec, Field{Key: field.Key, Value: fmt.Sprint(v)})
		}
	}

	line, err := f.encode(rec)
	if err != nil {
		f.fallback(recordType, fields)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.out.Write(append(line, '\n'))
}

// fallback emits a plain one-line summary with the non-sensitive
// identifying fields only.
func (f *Formatter) fallback(recordType string, fields []Field) {
	pick := func(key string) any {
		for _, field := range fields {
			if field.Key == key {
				return field.Value
			}
		}
		return ""
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.out, "%s: %v %v - %v (%vms)\n",
		recordType, pick("method"), pick("uri"), pick("status"), pick("duration_ms"))
}

// record is an ordered flat JSON object.
type record []Field

func (r record) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, field := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(field.Key)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Value)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(value)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// MaskURL masks the values of OAuth-sensitive query parameters anywhere in
// the URL.
func MaskURL(u string) string {
	return maskedParams.ReplaceAllString(u, "${1}"+masked)
}

// MaskAuthorization masks an authorization header value. Short values are
// replaced wholesale; longer ones keep their first and last four characters.
func MaskAuthorization(v string) string {
	if len(v) <= 8 {
		return masked
	}
	return v[:4] + masked + v[len(v)-4:]
}

// headerFields filters headers through the allow-list and masks sensitive
// values. Keys are prefixed and sorted so records are deterministic.
func headerFields(prefix string, h http.Header) []Field {
	names := make([]string, 0, len(h))
	for name := range h {
		lower := strings.ToLower(name)
		if allowedHeaders[lower] || strings.HasPrefix(lower, "x-") {
			names = append(names, lower)
		}
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		value := h.Get(name)
		switch name {
		case "authorization":
			value = MaskAuthorization(value)
		case "location":
			value = MaskURL(value)
		}
		fields = append(fields, Field{Key: prefix + name, Value: value})
	}
	return fields
}

// truncateBody caps a body at maxBodyLength characters, appending the
// truncation marker. The cut lands on a rune boundary so multibyte bodies
// stay valid UTF-8. Blank bodies collapse to the empty string so Emit
// drops them.
func truncateBody(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	if utf8.RuneCountInString(body) <= maxBodyLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:maxBodyLength]) + truncationMarker
}
