package store

import "encoding/json"

// marshalStringMap serializes a data bag to JSON for a nullable text column.
// Empty maps become the empty string so the column stays NULL-ish.
func marshalStringMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalStringMap decodes a JSON data bag from a nullable text column.
func unmarshalStringMap(s string, dst *map[string]string) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}
