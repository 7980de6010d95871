package resource

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

// Session is a negotiated security session.
type Session struct {
	ID   string `json:"id"`
	Info string `json:"info"`
	Key  string `json:"key"`
}

// Negotiator creates security sessions from the agent's session hints.
type Negotiator interface {
	Negotiate(ctx context.Context, peerInfo string) (Session, error)
}

// ErrNoSessionInfo is returned when the agent sent no session hint.
var ErrNoSessionInfo = errors.New("agent sent no session info")

// sessionPolicy is advertised back to the agent for every session.
const sessionPolicy = `[Encryption="YES";Integrity="YES";CryptoMethods="AES"]`

// KeyNegotiator issues sessions with random ids and 256-bit keys.
type KeyNegotiator struct{}

func NewKeyNegotiator() *KeyNegotiator { return &KeyNegotiator{} }

func (KeyNegotiator) Negotiate(ctx context.Context, peerInfo string) (Session, error) {
	if peerInfo == "" {
		return Session{}, ErrNoSessionInfo
	}
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return Session{}, err
	}
	return Session{
		ID:   uuid.NewString(),
		Info: sessionPolicy,
		Key:  hex.EncodeToString(key),
	}, nil
}
