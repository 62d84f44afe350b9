package mls

import (
	"github.com/pkg/errors"
)

// AEADKey is an AEAD encryption key of the length mandated by a
// CipherSuite. This module never seals or opens with it — key/nonce
// derivation is in scope, encryption is the caller's job.
type AEADKey struct {
	suite CipherSuite
	bytes []byte
}

// AEADKeyFromSlice validates bytes against the suite's key length and
// wraps it. It takes ownership of bytes; callers must not reuse the slice.
func AEADKeyFromSlice(suite CipherSuite, data []byte) (AEADKey, error) {
	want, err := suite.KeyLength()
	if err != nil {
		return AEADKey{}, err
	}
	if len(data) != want {
		return AEADKey{}, errors.Errorf("mls: aead key must be %d bytes, got %d", want, len(data))
	}
	return AEADKey{suite: suite, bytes: data}, nil
}

// Bytes returns the underlying key bytes. The caller owns them once
// returned and is responsible for erasing them after use.
func (k AEADKey) Bytes() []byte { return k.bytes }

// Nonce is an AEAD nonce of the length mandated by a CipherSuite.
type Nonce struct {
	bytes []byte
}

// NonceFromSlice validates bytes against the suite's nonce length and
// wraps it. It takes ownership of bytes; callers must not reuse the slice.
func NonceFromSlice(suite CipherSuite, data []byte) (Nonce, error) {
	want, err := suite.NonceLength()
	if err != nil {
		return Nonce{}, err
	}
	if len(data) != want {
		return Nonce{}, errors.Errorf("mls: nonce must be %d bytes, got %d", want, len(data))
	}
	return Nonce{bytes: data}, nil
}

// Bytes returns the underlying nonce bytes. The caller owns them once
// returned and is responsible for erasing them after use.
func (n Nonce) Bytes() []byte { return n.bytes }

// ApplicationSecrets is the (key, nonce) pair handed back by GetSecret.
// The caller owns this material and is expected to zeroize it after use.
type ApplicationSecrets struct {
	Key   AEADKey
	Nonce Nonce
}
