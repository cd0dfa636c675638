// Package envelope defines the wire contract of settlement requests and confirmations.
//
// A field may travel in the JSON body, in transport attributes (Kafka headers), or both.
// Attributes always win, and each field is looked up through an ordered alias list so
// producers that still emit legacy names keep working.
package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrMalformed marks an envelope that can never be processed, no matter how often it is redelivered.
var ErrMalformed = errors.New("malformed envelope")

// Ordered alias lists, first match wins
var (
	idempotencyKeyAliases = []string{"idempotency_key", "event_id", "txId", "id"}
	typeAliases           = []string{"type", "tipo"}
	originAliases         = []string{"origin_key", "curp_origen", "fromCurp"}
	destinationAliases    = []string{"destination_key", "curp_destino", "toCurp"}
	amountAliases         = []string{"amount", "monto"}
	createdAtAliases      = []string{"created_at", "timestamp"}
	eventKindAliases      = []string{"event_kind", "tipo_evento"}
	originalPayloadAlias  = []string{"original_payload", "payload_original"}
)

var knownFields = func() map[string]struct{} {
	set := make(map[string]struct{})
	for _, aliases := range [][]string{
		idempotencyKeyAliases, typeAliases, originAliases, destinationAliases,
		amountAliases, createdAtAliases, eventKindAliases, originalPayloadAlias,
	} {
		for _, name := range aliases {
			set[name] = struct{}{}
		}
	}
	return set
}()

// fields resolves values from attributes first, then from the decoded body
type fields struct {
	attrs map[string]string
	body  map[string]any
}

func newFields(attrs map[string]string, body []byte) (*fields, error) {
	f := &fields{attrs: attrs}

	// Postgres TEXT and JSONB reject invalid UTF-8 and NUL, so such input can never be stored
	for name, v := range attrs {
		if _, ok := knownFields[name]; !ok {
			continue
		}
		if err := storableText(v); err != nil {
			return nil, fmt.Errorf("%w: attribute %s: %v", ErrMalformed, name, err)
		}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return f, nil
	}
	if !utf8.Valid(trimmed) {
		return nil, fmt.Errorf("%w: body is not valid UTF-8", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&f.body); err != nil {
		return nil, fmt.Errorf("%w: body is not a JSON object: %v", ErrMalformed, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON body", ErrMalformed)
	}
	if containsNUL(f.body) {
		return nil, fmt.Errorf("%w: body contains a NUL character", ErrMalformed)
	}
	return f, nil
}

func storableText(v string) error {
	if !utf8.ValidString(v) {
		return errors.New("not valid UTF-8")
	}
	if strings.ContainsRune(v, 0) {
		return errors.New("contains a NUL character")
	}
	return nil
}

// containsNUL walks decoded JSON; a NUL can only come from a \u0000 escape
func containsNUL(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.ContainsRune(t, 0)
	case map[string]any:
		for k, item := range t {
			if strings.ContainsRune(k, 0) || containsNUL(item) {
				return true
			}
		}
	case []any:
		for _, item := range t {
			if containsNUL(item) {
				return true
			}
		}
	}
	return false
}

// lookup returns the first non-blank value for the aliases, attributes before body
func (f *fields) lookup(aliases []string) string {
	for _, name := range aliases {
		if v, ok := f.attrs[name]; ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	for _, name := range aliases {
		if v := scalarString(f.body[name]); v != "" {
			return v
		}
	}
	return ""
}

// scalarString renders JSON scalars; objects, arrays and null count as absent
func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
