package mls

import (
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// CipherSuite selects the hash, AEAD, and signature primitives used by an
// ASTree. A tree is constructed with exactly one suite and never changes
// it for the lifetime of the tree.
type CipherSuite uint16

const (
	// MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519 is the default
	// suite this module derives keys for in its test scenarios.
	MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519 CipherSuite = 0x0001
	MLS10_128_HPKEP256_AES128GCM_SHA256_P256             CipherSuite = 0x0002
	MLS10_256_HPKEX448_AES256GCM_SHA512_Ed448            CipherSuite = 0x0003
)

type suiteConstants struct {
	HashSize   int
	KeySize    int
	NonceSize  int
	SecretSize int
	newHash    func() hash.Hash
}

// AES-GCM and ChaCha20-Poly1305 share a 12-byte nonce in every MLS suite
// this module ships, so every entry below is sized against the published
// chacha20poly1305 constants rather than a repeated magic number.
var suiteTable = map[CipherSuite]suiteConstants{
	MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519: {
		HashSize: sha256.Size, KeySize: chacha20poly1305.KeySize, NonceSize: chacha20poly1305.NonceSize, SecretSize: sha256.Size,
		newHash: sha256.New,
	},
	MLS10_128_HPKEP256_AES128GCM_SHA256_P256: {
		HashSize: sha256.Size, KeySize: 16, NonceSize: chacha20poly1305.NonceSize, SecretSize: sha256.Size,
		newHash: sha256.New,
	},
	MLS10_256_HPKEX448_AES256GCM_SHA512_Ed448: {
		HashSize: sha512.Size, KeySize: chacha20poly1305.KeySize, NonceSize: chacha20poly1305.NonceSize, SecretSize: sha512.Size,
		newHash: sha512.New,
	},
}

func (cs CipherSuite) constants() (suiteConstants, error) {
	c, ok := suiteTable[cs]
	if !ok {
		return suiteConstants{}, errors.Errorf("mls: unknown ciphersuite %#x", uint16(cs))
	}
	return c, nil
}

// HashLength returns the hash's native digest length in bytes.
func (cs CipherSuite) HashLength() (int, error) {
	c, err := cs.constants()
	if err != nil {
		return 0, err
	}
	return c.HashSize, nil
}

// KeyLength returns the AEAD key length for this suite, in bytes.
func (cs CipherSuite) KeyLength() (int, error) {
	c, err := cs.constants()
	if err != nil {
		return 0, err
	}
	return c.KeySize, nil
}

// NonceLength returns the AEAD nonce length for this suite, in bytes.
func (cs CipherSuite) NonceLength() (int, error) {
	c, err := cs.constants()
	if err != nil {
		return 0, err
	}
	return c.NonceSize, nil
}

func (cs CipherSuite) String() string {
	switch cs {
	case MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519:
		return "MLS10_128_HPKEX25519_CHACHA20POLY1305_SHA256_Ed25519"
	case MLS10_128_HPKEP256_AES128GCM_SHA256_P256:
		return "MLS10_128_HPKEP256_AES128GCM_SHA256_P256"
	case MLS10_256_HPKEX448_AES256GCM_SHA512_Ed448:
		return "MLS10_256_HPKEX448_AES256GCM_SHA512_Ed448"
	default:
		return "UNKNOWN_CIPHERSUITE"
	}
}

// hkdfExpandLabel implements HKDF-Expand-Label(secret, label, context, L):
// the MLS "mls10 <label>" info-string construction over
// golang.org/x/crypto/hkdf's Expand, the real HKDF-Expand rather than a
// hand-rolled HMAC loop.
func hkdfExpandLabel(cs CipherSuite, secret []byte, label string, context []byte, length int) ([]byte, error) {
	c, err := cs.constants()
	if err != nil {
		return nil, err
	}

	labelData := append([]byte("mls10 "), []byte(label)...)
	info := make([]byte, 0, 2+1+len(labelData)+4+len(context))
	info = append(info, byte(length>>8), byte(length))
	info = append(info, byte(len(labelData)))
	info = append(info, labelData...)
	info = append(info, byte(len(context)>>24), byte(len(context)>>16), byte(len(context)>>8), byte(len(context)))
	info = append(info, context...)

	out := make([]byte, length)
	r := hkdf.Expand(c.newHash, secret, info)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errors.Wrap(err, "mls: hkdf-expand-label")
	}
	return out, nil
}

// deriveAppSecret binds a derivation to an ApplicationContext{node,
// generation} and runs it through hkdfExpandLabel.
func deriveAppSecret(cs CipherSuite, secret []byte, label string, node NodeIndex, generation uint32, length int) ([]byte, error) {
	ctx, err := ApplicationContext{Node: uint32(node), Generation: generation}.encode()
	if err != nil {
		return nil, err
	}
	return hkdfExpandLabel(cs, secret, label, ctx, length)
}
