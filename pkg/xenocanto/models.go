package xenocanto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// QueryRequest identifies one page of search results
type QueryRequest struct {
	Query string
	Page  int
}

// RecordingPage is one page of the recordings endpoint
type RecordingPage struct {
	NumRecordings Count       `json:"numRecordings"`
	NumSpecies    Count       `json:"numSpecies"`
	Page          Count       `json:"page"`
	NumPages      Count       `json:"numPages"`
	Recordings    []Recording `json:"recordings"`
}

// Count is a non-negative integer the API sends either as a JSON number or a
// numeric string.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*c = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*c = 0
			return nil
		}
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid count %q: %w", s, err)
	}
	if n < 0 {
		return fmt.Errorf("invalid count %d: must not be negative", n)
	}
	*c = Count(n)
	return nil
}

// Field is one key/value pair of a recording
type Field struct {
	Key   string
	Value json.RawMessage
}

// Recording is an ordered set of fields as received from the provider. The
// key order is kept because the first record of a query fixes the CSV header.
type Recording struct {
	fields []Field
	index  map[string]int
}

// NewRecording builds a recording from alternating key, value pairs. Values
// are stored as JSON strings. Mostly useful in tests.
func NewRecording(kv ...string) Recording {
	var r Recording
	for i := 0; i+1 < len(kv); i += 2 {
		raw, _ := json.Marshal(kv[i+1])
		r.set(kv[i], raw)
	}
	return r
}

func (r *Recording) set(key string, value json.RawMessage) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	if i, ok := r.index[key]; ok {
		r.fields[i].Value = value
		return
	}
	r.index[key] = len(r.fields)
	r.fields = append(r.fields, Field{Key: key, Value: value})
}

// UnmarshalJSON decodes a JSON object keeping the order of its keys
func (r *Recording) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("recording must be a JSON object")
	}

	*r = Recording{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected recording key %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		r.set(key, raw)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// Keys returns the field names in received order
func (r Recording) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// Len returns the number of fields
func (r Recording) Len() int {
	return len(r.fields)
}

// Get returns the text rendering of a field. Strings are unquoted, null is
// empty, and objects or arrays are rendered as compact JSON.
func (r Recording) Get(key string) string {
	i, ok := r.index[key]
	if !ok {
		return ""
	}
	return renderValue(r.fields[i].Value)
}

func renderValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
	}
	return string(trimmed)
}

// ID returns the catalog number of the recording
func (r Recording) ID() string { return r.Get("id") }

// Genus returns the genus name
func (r Recording) Genus() string { return r.Get("gen") }

// Species returns the species epithet
func (r Recording) Species() string { return r.Get("sp") }

// Location returns the recording locality
func (r Recording) Location() string { return r.Get("loc") }

// FileURL returns the audio download URL. The API sometimes omits the scheme.
func (r Recording) FileURL() string {
	u := strings.TrimSpace(r.Get("file"))
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

// FileName returns the provider's original file name, if any
func (r Recording) FileName() string { return r.Get("file-name") }
