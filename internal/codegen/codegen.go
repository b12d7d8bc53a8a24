package codegen

import (
	"context"
	"crypto/rand"
	"fmt"

	"gatepass/entity"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DefaultLength is the code length printed on tickets and QR payloads.
	DefaultLength = 6

	// maxAttempts bounds the collision re-roll loop. At 36^6 possible
	// codes a handful of retries is already a sign the space is close to
	// exhausted, and an error beats spinning forever.
	maxAttempts = 32
)

// Store is the read-only lookup the generator checks candidates against.
type Store interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

type Generator struct {
	store Store
}

func New(store Store) *Generator {
	return &Generator{store: store}
}

// Generate mints one code of the given length, re-rolling until the store
// does not know it. Persisting the code is the caller's responsibility.
func (g *Generator) Generate(ctx context.Context, length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := random(length)
		if err != nil {
			return "", err
		}
		exists, err := g.store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("code space near exhaustion: %w", entity.ErrUnavailable)
}

// random draws length characters uniformly from the alphabet using
// rejection sampling, so no character is favored by modulo bias.
func random(length int) (string, error) {
	code := make([]byte, 0, length)
	buf := make([]byte, 1)
	// Largest multiple of len(alphabet) below 256.
	limit := byte(256 - 256%len(alphabet))
	for len(code) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random: %w", err)
		}
		if buf[0] >= limit {
			continue
		}
		code = append(code, alphabet[int(buf[0])%len(alphabet)])
	}
	return string(code), nil
}
