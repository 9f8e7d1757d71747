package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/castellan/castellan/internal/platform/httpx"
)

// EncodeToken serializes a flow token into its storable string form.
func EncodeToken(t FlowToken) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("auth: encode token: %w", err)
	}
	return string(data), nil
}

// DecodeToken parses the storable form back into a flow token. Anything
// that does not match the expected shape is rejected as malformed.
func DecodeToken(raw string) (FlowToken, error) {
	var t FlowToken
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return FlowToken{}, fmt.Errorf("%w: malformed token payload", httpx.ErrValidation)
	}
	if t.Value == "" || t.ExpiresAt.IsZero() {
		return FlowToken{}, fmt.Errorf("%w: malformed token payload", httpx.ErrValidation)
	}
	return t, nil
}
