package pagination

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const cursorPrefix = "txn"

// EncodeTransactionCursor creates a base64 token pointing just past the given transaction.
// Pages are newest first, so the next page holds ids strictly below lastID.
func EncodeTransactionCursor(lastID int64) string {
	tokenStr := fmt.Sprintf("%s|%d", cursorPrefix, lastID)
	return base64.URLEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeTransactionCursor parses a token produced by EncodeTransactionCursor.
// An empty token means the first page and yields nil.
func DecodeTransactionCursor(token string) (*int64, error) {
	if token == "" {
		return nil, nil
	}
	decodedBytes, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}

	parts := strings.SplitN(string(decodedBytes), "|", 2)
	if len(parts) != 2 || parts[0] != cursorPrefix {
		return nil, fmt.Errorf("invalid pagination token format (split)")
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid pagination token format (transaction id)")
	}
	return &id, nil
}
