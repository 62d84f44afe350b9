package mls

import (
	"github.com/bifurcation/mint/syntax"
	"github.com/pkg/errors"
)

// OutOfOrderTolerance is the size of a SenderRatchet's replay window:
// requests this many or more generations behind the ratchet's current
// generation are rejected as too old.
const OutOfOrderTolerance = 5

// MaximumForwardDistance bounds how far a single request can advance a
// ratchet, capping the work (and any replay-amplification) one call can
// trigger.
const MaximumForwardDistance = 1000

// SenderRatchet is the per-leaf state machine: it holds a sliding window
// of recent chain secrets and derives (key, nonce) pairs for a requested
// generation, ratcheting forward or reaching back into the window as
// needed.
type SenderRatchet struct {
	ciphersuite CipherSuite
	index       RosterIndex
	generation  uint32
	pastSecrets [][]byte
}

// newSenderRatchet seeds a ratchet at generation 0 from a single chain
// secret. seed must be hash_len bytes for the suite; the ratchet keeps the
// slice itself, and the tree hands over the leaf secret it just derived and
// clears its own node slot without keeping a copy.
func newSenderRatchet(index RosterIndex, seed []byte, ciphersuite CipherSuite) *SenderRatchet {
	return &SenderRatchet{
		ciphersuite: ciphersuite,
		index:       index,
		generation:  0,
		pastSecrets: [][]byte{seed},
	}
}

// Generation returns the highest generation this ratchet has ever
// materialized.
func (r *SenderRatchet) Generation() uint32 {
	return r.generation
}

// GetSecret derives the (key, nonce) pair for requested, ratcheting
// forward as needed. Lookups within the window do not mutate generation
// or the window.
func (r *SenderRatchet) GetSecret(requested uint32) (ApplicationSecrets, error) {
	current := r.generation

	if requested > current+MaximumForwardDistance {
		return ApplicationSecrets{}, errors.WithStack(ErrTooDistantInTheFuture)
	}
	if requested < current && current-requested >= OutOfOrderTolerance {
		return ApplicationSecrets{}, errors.WithStack(ErrTooDistantInThePast)
	}

	if requested <= current {
		offset := len(r.pastSecrets) - 1 - int(current-requested)
		if offset < 0 || offset >= len(r.pastSecrets) {
			return ApplicationSecrets{}, errors.WithStack(ErrTooDistantInThePast)
		}
		return r.deriveKeyNonce(r.pastSecrets[offset], requested)
	}

	// The context's generation field stays pinned to the ratchet's
	// generation as it stood before this loop started, for every step —
	// it is not advanced until after the loop completes.
	ctxGeneration := r.generation
	for step := current; step < requested; step++ {
		if len(r.pastSecrets) == OutOfOrderTolerance {
			zeroize(r.pastSecrets[0])
			r.pastSecrets = r.pastSecrets[1:]
		}
		last := r.pastSecrets[len(r.pastSecrets)-1]
		hashLen, err := r.ciphersuite.HashLength()
		if err != nil {
			return ApplicationSecrets{}, err
		}
		next, err := deriveAppSecret(r.ciphersuite, last, "app-secret", toNodeIndex(r.index), ctxGeneration, hashLen)
		if err != nil {
			return ApplicationSecrets{}, err
		}
		r.pastSecrets = append(r.pastSecrets, next)
	}

	secrets, err := r.deriveKeyNonce(r.pastSecrets[len(r.pastSecrets)-1], requested)
	if err != nil {
		return ApplicationSecrets{}, err
	}
	r.generation = requested
	return secrets, nil
}

func (r *SenderRatchet) deriveKeyNonce(secret []byte, generation uint32) (ApplicationSecrets, error) {
	node := toNodeIndex(r.index)

	nonceLen, err := r.ciphersuite.NonceLength()
	if err != nil {
		return ApplicationSecrets{}, err
	}
	nonceBytes, err := deriveAppSecret(r.ciphersuite, secret, "app-nonce", node, generation, nonceLen)
	if err != nil {
		return ApplicationSecrets{}, err
	}
	nonce, err := NonceFromSlice(r.ciphersuite, nonceBytes)
	if err != nil {
		return ApplicationSecrets{}, err
	}

	keyLen, err := r.ciphersuite.KeyLength()
	if err != nil {
		return ApplicationSecrets{}, err
	}
	keyBytes, err := deriveAppSecret(r.ciphersuite, secret, "app-key", node, generation, keyLen)
	if err != nil {
		return ApplicationSecrets{}, err
	}
	key, err := AEADKeyFromSlice(r.ciphersuite, keyBytes)
	if err != nil {
		return ApplicationSecrets{}, err
	}

	return ApplicationSecrets{Key: key, Nonce: nonce}, nil
}

// close zeroizes every chain secret still held in the window.
func (r *SenderRatchet) close() {
	for _, s := range r.pastSecrets {
		zeroize(s)
	}
	r.pastSecrets = nil
}

// secretList is the wire form of a SenderRatchet's pastSecrets window: a
// 4-byte count followed by each entry 1-byte-length-prefixed. Hand-coded
// rather than leaning on tls-syntax's reflection over a nested
// slice-of-slices.
type secretList [][]byte

func (s secretList) MarshalTLS() ([]byte, error) {
	out := encodeUint32(uint32(len(s)))
	for _, secret := range s {
		if len(secret) > 0xff {
			return nil, errors.Errorf("mls: chain secret too long to encode: %d bytes", len(secret))
		}
		out = append(out, byte(len(secret)))
		out = append(out, secret...)
	}
	return out, nil
}

func (s *secretList) UnmarshalTLS(data []byte) (int, error) {
	count, n, err := decodeUint32(data)
	if err != nil {
		return 0, errors.Wrap(err, "mls: secret list count")
	}
	out := make([][]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		if n >= len(data) {
			return 0, errors.New("mls: truncated secret list")
		}
		secretLen := int(data[n])
		n++
		if n+secretLen > len(data) {
			return 0, errors.New("mls: truncated secret list entry")
		}
		secret := make([]byte, secretLen)
		copy(secret, data[n:n+secretLen])
		n += secretLen
		out = append(out, secret)
	}
	*s = out
	return n, nil
}

// persistedSenderRatchet is the tls-syntax shape of a SenderRatchet's
// persisted-state encoding: ciphersuite, index, generation, then the
// chain-secret window.
type persistedSenderRatchet struct {
	Ciphersuite CipherSuite
	Index       uint32
	Generation  uint32
	PastSecrets secretList
}

func (r *SenderRatchet) encode() ([]byte, error) {
	wire := persistedSenderRatchet{
		Ciphersuite: r.ciphersuite,
		Index:       uint32(r.index),
		Generation:  r.generation,
		PastSecrets: r.pastSecrets,
	}
	out, err := syntax.Marshal(wire)
	if err != nil {
		return nil, errors.Wrap(err, "mls: marshal sender ratchet")
	}
	return out, nil
}

func decodeSenderRatchet(data []byte) (*SenderRatchet, int, error) {
	var wire persistedSenderRatchet
	read, err := syntax.Unmarshal(data, &wire)
	if err != nil {
		return nil, 0, errors.Wrap(err, "mls: unmarshal sender ratchet")
	}
	if len(wire.PastSecrets) == 0 {
		return nil, 0, errors.New("mls: sender ratchet has no past secrets")
	}
	r := &SenderRatchet{
		ciphersuite: wire.Ciphersuite,
		index:       RosterIndex(wire.Index),
		generation:  wire.Generation,
		pastSecrets: wire.PastSecrets,
	}
	return r, read, nil
}
