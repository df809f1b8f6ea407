package id

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// Generator creates opaque identifiers.
type Generator interface {
	New() string
}

type RandomHex struct{}

func (RandomHex) New() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

// UUID issues version 4 UUIDs; used for run ids that end up in the ledger.
type UUID struct{}

func (UUID) New() string {
	return uuid.NewString()
}
