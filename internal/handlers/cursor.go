package handlers

import (
	"encoding/base64"
	"fmt"

	"github.com/goccy/go-json"
)

// cursorToken is the opaque continuation handed to clients. It holds the id
// of the oldest message already returned.
type cursorToken struct {
	ID int64 `json:"id"`
}

func encodeCursor(id int64) string {
	raw, _ := json.Marshal(cursorToken{ID: id})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string) (int64, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errInvalidCursor, err)
	}
	var tok cursorToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return 0, fmt.Errorf("%w: %v", errInvalidCursor, err)
	}
	if tok.ID <= 0 {
		return 0, errInvalidCursor
	}
	return tok.ID, nil
}
