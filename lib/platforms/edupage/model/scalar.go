// Package model holds the records the portal serves and the decoding rules for them. The
// portal is written in PHP and is loose about scalar types, so fields use the lenient types
// below: they accept every representation the portal is known to use for a value and fail
// with a ContentDecode error on anything else.
package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"edupage-client/lib/fault"
)

var null = []byte("null")

func decodeError(data []byte, as string) error {
	return &fault.Error{
		Kind:    fault.KindContentDecode,
		Message: "cannot read value as " + as,
		Snippet: string(data),
	}
}

// readString returns the unquoted value of a JSON string, ok is false when data is not one.
func readString(data []byte) (string, bool, error) {
	if len(data) == 0 || data[0] != '"' {
		return "", false, nil
	}
	var s string
	err := json.Unmarshal(data, &s)
	if err != nil {
		return "", true, err
	}
	return s, true, nil
}

// String accepts strings, numbers and booleans.
type String string

func (s *String) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		*s = ""
		return nil
	}
	str, ok, err := readString(data)
	if err != nil {
		return decodeError(data, "string")
	}
	if ok {
		*s = String(str)
		return nil
	}
	switch data[0] {
	case '{', '[':
		return decodeError(data, "string")
	}
	*s = String(data)
	return nil
}

func (s String) String() string {
	return string(s)
}

// Int accepts integers, integral floats, numeric strings, the empty string and booleans.
type Int int64

func (i *Int) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	text := string(data)
	if str, ok, err := readString(data); ok {
		if err != nil {
			return decodeError(data, "int")
		}
		text = strings.TrimSpace(str)
	}

	switch text {
	case "", "null", "false":
		*i = 0
		return nil
	case "true":
		*i = 1
		return nil
	}

	n, err := strconv.ParseInt(text, 10, 64)
	if err == nil {
		*i = Int(n)
		return nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || f != math.Trunc(f) {
		return decodeError(data, "int")
	}
	*i = Int(f)
	return nil
}

// Float accepts numbers, numeric strings and the empty string.
type Float float64

func (f *Float) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	text := string(data)
	if str, ok, err := readString(data); ok {
		if err != nil {
			return decodeError(data, "float")
		}
		text = strings.TrimSpace(str)
	}
	if text == "" || text == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return decodeError(data, "float")
	}
	*f = Float(n)
	return nil
}

// ParseFloat reads a number out of a lenient string field, ok is false when there is none.
func ParseFloat(s String) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(string(s)), 64)
	if err != nil || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}

// Bool accepts booleans, numbers and the strings "", "0", "1", "true" and "false".
type Bool bool

func (b *Bool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	text := string(data)
	if str, ok, err := readString(data); ok {
		if err != nil {
			return decodeError(data, "bool")
		}
		text = strings.ToLower(strings.TrimSpace(str))
	}

	switch text {
	case "", "null", "false", "0":
		*b = false
		return nil
	case "true", "1":
		*b = true
		return nil
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return decodeError(data, "bool")
	}
	*b = n != 0
	return nil
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// Time accepts the portal's date and datetime strings. Zero dates, the empty string and null
// decode to the zero time. Times are read as UTC, the portal does not send a zone.
type Time struct {
	time.Time
}

func (t *Time) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) {
		t.Time = time.Time{}
		return nil
	}
	str, ok, err := readString(data)
	if !ok || err != nil {
		return decodeError(data, "time")
	}
	parsed, err := ParseTime(str)
	if err != nil {
		return decodeError(data, "time")
	}
	t.Time = parsed
	return nil
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return null, nil
	}
	return json.Marshal(t.Format("2006-01-02 15:04:05"))
}

// ParseTime reads a portal date or datetime.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return time.Time{}, nil
	}
	var firstErr error
	for _, layout := range timeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			return parsed, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// Embedded is a JSON value that may arrive string-encoded, or as an empty array where PHP
// serialized an empty map. Present is false when nothing was decoded.
type Embedded[T any] struct {
	Value   T
	Present bool
}

func (e *Embedded[T]) UnmarshalJSON(data []byte) error {
	var zero T
	e.Value = zero
	e.Present = false

	data = bytes.TrimSpace(data)
	if str, ok, err := readString(data); ok {
		if err != nil {
			return decodeError(data, "embedded json")
		}
		data = bytes.TrimSpace([]byte(str))
	}
	if len(data) == 0 || bytes.Equal(data, null) || isEmptyArray(data) {
		return nil
	}

	err := json.Unmarshal(data, &e.Value)
	if err != nil {
		return &fault.Error{
			Kind:    fault.KindContentDecode,
			Message: "cannot read embedded json",
			Snippet: string(data),
			Err:     err,
		}
	}
	e.Present = true
	return nil
}

func (e Embedded[T]) MarshalJSON() ([]byte, error) {
	if !e.Present {
		return null, nil
	}
	return json.Marshal(e.Value)
}

func isEmptyArray(data []byte) bool {
	if len(data) < 2 || data[0] != '[' || data[len(data)-1] != ']' {
		return false
	}
	return len(bytes.TrimSpace(data[1:len(data)-1])) == 0
}

// Entry is one member of an Entries collection.
type Entry[T any] struct {
	Key   string
	Value T
}

// Entries is a collection the portal sends either as an object keyed by id or as an array.
// Object members keep their document order; array members are keyed by their index.
type Entries[T any] []Entry[T]

func (e *Entries[T]) UnmarshalJSON(data []byte) error {
	*e = nil
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, null) || len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '[':
		var values []T
		err := json.Unmarshal(data, &values)
		if err != nil {
			return err
		}
		out := make(Entries[T], len(values))
		for i, v := range values {
			out[i] = Entry[T]{Key: strconv.Itoa(i), Value: v}
		}
		*e = out
		return nil
	case '{':
		out, err := decodeObjectEntries[T](data)
		if err != nil {
			return err
		}
		*e = out
		return nil
	}
	return decodeError(data, "collection")
}

func decodeObjectEntries[T any](data []byte) (Entries[T], error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	_, err := dec.Token()
	if err != nil {
		return nil, err
	}

	var out Entries[T]
	for dec.More() {
		token, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := token.(string)
		if !ok {
			return nil, decodeError(data, "collection")
		}
		var value T
		err = dec.Decode(&value)
		if err != nil {
			return nil, err
		}
		out = append(out, Entry[T]{Key: key, Value: value})
	}
	return out, nil
}

// Values returns the members without their keys.
func (e Entries[T]) Values() []T {
	out := make([]T, len(e))
	for i, entry := range e {
		out[i] = entry.Value
	}
	return out
}

// Get returns the member with the given key.
func (e Entries[T]) Get(key string) (T, bool) {
	for _, entry := range e {
		if entry.Key == key {
			return entry.Value, true
		}
	}
	var zero T
	return zero, false
}
