package spec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DuplicateKeyError reports a JSON object with two entries under the same
// key — something encoding/json would silently collapse into one.
type DuplicateKeyError struct {
	Scope string // the object containing the duplicate, e.g. "services"
	Key   string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s key: %q", e.Scope, e.Key)
}

// DecodeStack unmarshals a stack spec from JSON, detecting duplicate
// service names that encoding/json would silently ignore.
func DecodeStack(data []byte) (*Stack, error) {
	var raw struct {
		Name     string                     `json:"name"`
		Services map[string]json.RawMessage `json:"services"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if err := checkDuplicateKeys(data, "services"); err != nil {
		return nil, err
	}

	st := &Stack{
		Name:     raw.Name,
		Services: make(map[string]Service, len(raw.Services)),
	}

	for svcName, svcData := range raw.Services {
		if err := checkDuplicateKeys(svcData, "environment"); err != nil {
			return nil, fmt.Errorf("service %q: %w", svcName, err)
		}

		var svc Service
		if err := json.Unmarshal(svcData, &svc); err != nil {
			return nil, fmt.Errorf("service %q: %w", svcName, err)
		}
		st.Services[svcName] = svc
	}

	return st, nil
}

// checkDuplicateKeys checks whether a JSON object at the given field name
// contains duplicate keys. Returns a *DuplicateKeyError if duplicates are
// found.
func checkDuplicateKeys(data []byte, field string) error {
	// Parse the outer object to find the field value.
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(data, &outer); err != nil {
		return nil // not a JSON object — let standard unmarshal handle it
	}

	fieldData, ok := outer[field]
	if !ok {
		return nil // field not present
	}

	// Use json.Decoder to walk tokens and detect duplicate keys.
	dec := json.NewDecoder(bytes.NewReader(fieldData))
	return checkObjectDuplicates(dec, field)
}

func checkObjectDuplicates(dec *json.Decoder, scope string) error {
	// Read opening brace.
	t, err := dec.Token()
	if err != nil {
		return nil
	}
	delim, ok := t.(json.Delim)
	if !ok || delim != '{' {
		return nil // not an object
	}

	seen := make(map[string]bool)
	for dec.More() {
		// Read key.
		t, err := dec.Token()
		if err != nil {
			return nil
		}
		key, ok := t.(string)
		if !ok {
			return nil
		}
		if seen[key] {
			return &DuplicateKeyError{Scope: scope, Key: key}
		}
		seen[key] = true

		// Skip the value (could be any JSON value including nested objects/arrays).
		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return nil
		}
	}

	return nil
}
