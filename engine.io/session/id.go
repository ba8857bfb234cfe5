package session

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/karagenc/socketio-server/internal/sync"
)

// IDGenerator returns a new opaque session ID. Uniqueness within
// the registry is checked by the Manager.
type IDGenerator func() (string, error)

const (
	Base64IDSize   = 15
	Base64IDMaxTry = 10
)

var (
	ErrBase64IDMaxTryReached = fmt.Errorf("session ID generation failed: Base64IDMaxTry reached")
	errBase64IDInvalidSize   = fmt.Errorf("base64 ID generation failed: invalid size")

	base64IDMu  sync.Mutex
	base64IDSeq uint32 = 0 // Sequence number to prevent sid overlaps.
)

func GenerateBase64ID(size int) (string, error) {
	if size <= 4 {
		return "", errBase64IDInvalidSize
	}

	base64IDMu.Lock()
	seq := base64IDSeq
	base64IDSeq++
	base64IDMu.Unlock()

	b := make([]byte, size)
	seqOffset := size - 4

	binary.BigEndian.PutUint32(b[seqOffset:], seq)

	_, err := rand.Read(b[:seqOffset])
	if err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

func Base64IDGenerator() (string, error) {
	return GenerateBase64ID(Base64IDSize)
}

func UUIDGenerator() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
