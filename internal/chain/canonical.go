package chain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"
)

var (
	errNotObject   = errors.New("payload must be a JSON object")
	errInvalidUTF8 = errors.New("payload contains invalid UTF-8")

	rawMessageType = reflect.TypeFor[json.RawMessage]()
)

// Canonicalize serializes payload into its reproducible byte form: JSON with
// object keys sorted at every depth, no insignificant whitespace, no HTML
// escaping, and numbers kept in their decoded textual form. A nil payload
// (or JSON null) canonicalizes to "{}". Anything other than a JSON object,
// and any string or key that is not valid UTF-8, is rejected with
// ErrInvalidPayload: encoding/json would otherwise substitute U+FFFD and two
// different payloads would share a digest.
//
// Structs are accepted and canonicalized through their JSON encoding, so
// field declaration order does not leak into the digest.
func Canonicalize(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}

	raw, err := encodeJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	// Encoding succeeded, so payload has no cycles to walk into.
	if !validUTF8(reflect.ValueOf(payload)) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, errInvalidUTF8)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if tree == nil {
		return []byte("{}"), nil
	}
	if _, ok := tree.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, errNotObject)
	}

	// encoding/json writes map keys in sorted order, which is what makes the
	// re-encoded tree canonical.
	out, err := encodeJSON(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return out, nil
}

// PayloadDigest returns the lowercase hex SHA-256 of the canonical payload.
func PayloadDigest(payload any) (string, error) {
	canonical, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return sha256Sum(canonical), nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// validUTF8 reports whether every string, map key and raw JSON fragment
// reachable from v is valid UTF-8.
func validUTF8(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	if v.Type() == rawMessageType {
		return utf8.Valid(v.Bytes())
	}

	switch v.Kind() {
	case reflect.String:
		return utf8.ValidString(v.String())
	case reflect.Pointer, reflect.Interface:
		return v.IsNil() || validUTF8(v.Elem())
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			if !validUTF8(iter.Key()) || !validUTF8(iter.Value()) {
				return false
			}
		}
	case reflect.Slice, reflect.Array:
		// []byte encodes as base64.
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return true
		}
		for i := range v.Len() {
			if !validUTF8(v.Index(i)) {
				return false
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := range v.NumField() {
			if f := t.Field(i); (f.IsExported() || f.Anonymous) && !validUTF8(v.Field(i)) {
				return false
			}
		}
	}
	return true
}
