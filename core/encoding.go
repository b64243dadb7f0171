package core

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// decodeBase64 accepts padded and unpadded standard encodings.
func decodeBase64(value string) ([]byte, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("core: encrypted code is empty")
	}
	if decoded, err := base64.StdEncoding.DecodeString(trimmed); err == nil {
		return decoded, nil
	}
	decoded, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(trimmed, "="))
	if err != nil {
		return nil, fmt.Errorf("core: encrypted code is not valid base64: %w", err)
	}
	return decoded, nil
}
