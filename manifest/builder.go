package manifest

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gatecheck/entities"
	"gatecheck/monitoring"
	"gatecheck/sign"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/redis/go-redis/v9"
)

type TicketRepository interface {
	ListForEvent(ctx context.Context, eventID string) ([]entities.Ticket, error)
}

// Builder assembles signed ticket snapshots for offline scanning. Building
// is read-only and reproducible for the same ticket-state snapshot; results
// are cached in Redis for the server TTL.
type Builder struct {
	tickets   TicketRepository
	signer    sign.Signer
	rdb       *redis.Client
	ttl       time.Duration
	deviceTTL time.Duration
}

func NewBuilder(tickets TicketRepository, signer sign.Signer, rdb *redis.Client, serverTTL, deviceTTL time.Duration) Builder {
	if tickets == nil {
		panic("tickets repository is required")
	}
	return Builder{
		tickets:   tickets,
		signer:    signer,
		rdb:       rdb,
		ttl:       serverTTL,
		deviceTTL: deviceTTL,
	}
}

func (b Builder) Build(ctx context.Context, eventID string) (entities.Manifest, error) {
	tickets, err := b.tickets.ListForEvent(ctx, eventID)
	if err != nil {
		return entities.Manifest{}, fmt.Errorf("could not load tickets for manifest: %w", err)
	}

	entries := make([]entities.ManifestEntry, 0, len(tickets))
	for _, ticket := range tickets {
		signature, err := b.signer.Sign(ctx, eventID, entryPayload(ticket.Code, ticket.Status))
		if err != nil {
			return entities.Manifest{}, fmt.Errorf("could not sign manifest entry: %w", err)
		}
		entries = append(entries, entities.ManifestEntry{
			TicketID:  ticket.TicketID,
			Code:      ticket.Code,
			Status:    ticket.Status,
			Signature: signature,
		})
	}

	digest := Digest(entries)
	outer, err := b.signer.Sign(ctx, eventID, []byte(digest))
	if err != nil {
		return entities.Manifest{}, fmt.Errorf("could not sign manifest: %w", err)
	}

	now := time.Now().UTC()
	return entities.Manifest{
		EventID:     eventID,
		GeneratedAt: now,
		ExpiresAt:   now.Add(b.deviceTTL),
		Entries:     entries,
		Signature:   digest + "." + outer,
	}, nil
}

// Cached serves the manifest from Redis when a fresh copy exists. Cache
// failures degrade to a rebuild, never to an error.
func (b Builder) Cached(ctx context.Context, eventID string) (entities.Manifest, error) {
	key := cacheKey(eventID)

	if b.rdb != nil {
		cached, err := b.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var manifest entities.Manifest
			if err := json.Unmarshal(cached, &manifest); err == nil {
				monitoring.TrackManifest("cache")
				return manifest, nil
			}
		} else if err != redis.Nil {
			log.FromContext(ctx).WithField("event_id", eventID).
				WithError(err).Warn("Manifest cache read failed")
		}
	}

	manifest, err := b.Build(ctx, eventID)
	if err != nil {
		return entities.Manifest{}, err
	}
	monitoring.TrackManifest("build")

	if b.rdb != nil {
		payload, err := json.Marshal(manifest)
		if err == nil {
			if err := b.rdb.Set(ctx, key, payload, b.ttl).Err(); err != nil {
				log.FromContext(ctx).WithField("event_id", eventID).
					WithError(err).Warn("Manifest cache write failed")
			}
		}
	}

	return manifest, nil
}

// VerifySignature checks the keyed outer signature against the event's
// current secret. Server-side only; devices corroborate the digest instead.
func (b Builder) VerifySignature(ctx context.Context, manifest entities.Manifest) (bool, error) {
	digest, outer, found := strings.Cut(manifest.Signature, ".")
	if !found {
		return false, nil
	}
	if digest != Digest(manifest.Entries) {
		return false, nil
	}
	return b.signer.Verify(ctx, manifest.EventID, []byte(digest), outer)
}

// Digest hashes the ordered entry signatures. Insertion, deletion, and
// reordering all change it, and it needs no secret to re-derive, so an
// offline device can corroborate the list it was handed.
func Digest(entries []entities.ManifestEntry) string {
	h := sha256.New()
	for _, entry := range entries {
		h.Write([]byte(entry.Signature))
		h.Write([]byte{'\n'})
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// CorroborateDigest is the device-side structural check: the aggregate must
// be well formed and match the ordered entry list.
func CorroborateDigest(manifest entities.Manifest) bool {
	digest, _, found := strings.Cut(manifest.Signature, ".")
	if !found {
		return false
	}
	return digest == Digest(manifest.Entries)
}

func entryPayload(code string, status entities.TicketStatus) []byte {
	return []byte(code + "|" + string(status))
}

func cacheKey(eventID string) string {
	return "manifest:" + eventID
}
