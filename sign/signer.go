package sign

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// SecretProvider resolves the current signing secret of an event. Secrets
// are rotatable; verification always uses the current one, so rotating a
// secret invalidates all outstanding tokens and manifests for that event.
type SecretProvider interface {
	SecretForEvent(ctx context.Context, eventID string) ([]byte, error)
}

type Signer struct {
	secrets SecretProvider
}

func NewSigner(secrets SecretProvider) Signer {
	if secrets == nil {
		panic("secrets provider is required")
	}
	return Signer{secrets: secrets}
}

func (s Signer) Sign(ctx context.Context, eventID string, payload []byte) (string, error) {
	secret, err := s.secrets.SecretForEvent(ctx, eventID)
	if err != nil {
		return "", fmt.Errorf("could not resolve secret for event %s: %w", eventID, err)
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether signature matches payload under the event's current
// secret. A mismatch is a false return, not an error; errors are reserved
// for secret-resolution failures, which callers must not treat as "invalid".
func (s Signer) Verify(ctx context.Context, eventID string, payload []byte, signature string) (bool, error) {
	expected, err := s.Sign(ctx, eventID, payload)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}
