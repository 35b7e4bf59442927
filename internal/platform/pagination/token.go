package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor is the keyset position carried by a page token. Pages are ordered by descending id.
type Cursor struct {
	AfterID int64 `json:"afterId"`
}

// EncodeToken serialises cursor as a base64url page token. A zero cursor yields "".
func EncodeToken(cursor Cursor) string {
	if cursor.AfterID <= 0 {
		return ""
	}
	data, _ := json.Marshal(cursor)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by EncodeToken.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if cursor.AfterID <= 0 {
		return Cursor{}, fmt.Errorf("%w: afterId must be positive", ErrInvalidPageToken)
	}
	return cursor, nil
}

// NextToken returns the token for the page after one that ended at lastID, or "" when
// the page was not full.
func NextToken(returned, pageSize int, lastID int64) string {
	if returned < pageSize || lastID <= 0 {
		return ""
	}
	return EncodeToken(Cursor{AfterID: lastID})
}
