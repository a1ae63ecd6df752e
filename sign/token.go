package sign

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gatecheck/entities"
)

// Token wire format: base64url(JSON payload) + "." + base64url(HMAC). The
// payload is signed as the encoded string, so any single-character change to
// either part fails verification.
const tokenSeparator = "."

type TokenCodec struct {
	signer Signer
	ttl    time.Duration
}

func NewTokenCodec(signer Signer, ttl time.Duration) TokenCodec {
	return TokenCodec{signer: signer, ttl: ttl}
}

func (c TokenCodec) Issue(ctx context.Context, ticket entities.Ticket) (string, error) {
	token := entities.ScanToken{
		TicketID:  ticket.TicketID,
		EventID:   ticket.EventID,
		Code:      ticket.Code,
		ExpiresAt: time.Now().UTC().Add(c.ttl),
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return "", fmt.Errorf("could not marshal scan token: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)

	signature, err := c.signer.Sign(ctx, token.EventID, []byte(encoded))
	if err != nil {
		return "", err
	}

	return encoded + tokenSeparator + signature, nil
}

// Decode parses and verifies a presented token. Malformed input, a signature
// mismatch, and an expired validity window all come back as
// entities.ErrUntrustedToken: callers treat unverifiable identically to
// invalid and never retry it.
func (c TokenCodec) Decode(ctx context.Context, raw string) (entities.ScanToken, error) {
	encoded, signature, found := strings.Cut(raw, tokenSeparator)
	if !found {
		return entities.ScanToken{}, entities.ErrUntrustedToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return entities.ScanToken{}, entities.ErrUntrustedToken
	}

	var token entities.ScanToken
	if err := json.Unmarshal(payload, &token); err != nil {
		return entities.ScanToken{}, entities.ErrUntrustedToken
	}

	ok, err := c.signer.Verify(ctx, token.EventID, []byte(encoded), signature)
	if err != nil {
		return entities.ScanToken{}, fmt.Errorf("could not verify scan token: %w", err)
	}
	if !ok {
		return entities.ScanToken{}, entities.ErrUntrustedToken
	}

	if token.Expired(time.Now().UTC()) {
		return entities.ScanToken{}, entities.ErrUntrustedToken
	}

	return token, nil
}

// DecodeUnverified parses a token without checking its signature. Offline
// devices hold no event secrets; they corroborate the payload against the
// signed manifest instead, so this is only for them. Expiry is still
// enforced.
func DecodeUnverified(raw string) (entities.ScanToken, error) {
	encoded, _, found := strings.Cut(raw, tokenSeparator)
	if !found {
		return entities.ScanToken{}, entities.ErrUntrustedToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return entities.ScanToken{}, entities.ErrUntrustedToken
	}

	var token entities.ScanToken
	if err := json.Unmarshal(payload, &token); err != nil {
		return entities.ScanToken{}, entities.ErrUntrustedToken
	}

	if token.Expired(time.Now().UTC()) {
		return entities.ScanToken{}, entities.ErrUntrustedToken
	}

	return token, nil
}
