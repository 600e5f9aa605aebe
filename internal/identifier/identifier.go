package identifier

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an identifier assigned by an external system that may arrive as a JSON number or a
// JSON string. It is written back in the same form it was read in.
type ID struct {
	value   string
	numeric bool
}

func New(value string) ID {
	return ID{value: value}
}

func (id ID) String() string {
	return id.value
}

func (id ID) IsZero() bool {
	return id.value == ""
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed unmarshaling id with error=%w", err)
		}
		*id = ID{value: s}
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed unmarshaling id=%s with error=%w", string(data), err)
	}
	*id = ID{value: n.String(), numeric: true}
	return nil
}
