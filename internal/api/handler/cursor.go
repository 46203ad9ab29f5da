package handler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const cursorPrefix = "id:"

// DecodeJobCursor returns the id pagination continues below, or 0 for the
// first page
func DecodeJobCursor(cursorStr string) (int64, error) {
	if cursorStr == "" {
		return 0, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return 0, err
	}

	raw, ok := strings.CutPrefix(string(decoded), cursorPrefix)
	if !ok {
		return 0, fmt.Errorf("invalid cursor format")
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id in cursor: %w", err)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid id in cursor: %d", id)
	}

	return id, nil
}

// EncodeJobCursor builds the cursor for the page after lastID
func EncodeJobCursor(lastID int64) string {
	return base64.URLEncoding.EncodeToString([]byte(cursorPrefix + strconv.FormatInt(lastID, 10)))
}
