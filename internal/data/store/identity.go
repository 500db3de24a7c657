package store

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/penwyp/go-ici-sync/internal/core/model"
)

const (
	identityPrefix    = "u-"
	identityRandomLen = 10
	identityAlphabet  = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// LoadOrCreateIdentity returns the persisted anonymous device id, creating and
// storing one on first use.
func LoadOrCreateIdentity(backend Backend) (string, error) {
	raw, err := backend.Get(model.IdentityKey)
	if err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("read identity: %w", err)
	}

	id, err := NewIdentity(time.Now())
	if err != nil {
		return "", err
	}
	if err := backend.Put(model.IdentityKey, []byte(id)); err != nil {
		return "", fmt.Errorf("persist identity: %w", err)
	}
	return id, nil
}

// NewIdentity builds "u-" followed by random base36 characters and now in base36 milliseconds.
func NewIdentity(now time.Time) (string, error) {
	var b strings.Builder
	b.WriteString(identityPrefix)
	max := big.NewInt(int64(len(identityAlphabet)))
	for i := 0; i < identityRandomLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate identity: %w", err)
		}
		b.WriteByte(identityAlphabet[n.Int64()])
	}
	b.WriteString(strconv.FormatInt(now.UnixMilli(), 36))
	return b.String(), nil
}
