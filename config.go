package mls

import "github.com/pkg/errors"

// Config assembles the inputs NewASTree needs from externally-loaded
// configuration — e.g. a handshake result that produced the application
// secret and the roster size — rather than call-site literals.
type Config struct {
	CipherSuite       CipherSuite
	ApplicationSecret []byte
	RosterSize        RosterIndex
}

// NewASTreeFromConfig validates cfg and constructs the tree it describes.
func NewASTreeFromConfig(cfg Config) (*ASTree, error) {
	if cfg.RosterSize == 0 {
		return nil, errors.New("mls: config roster size must be at least 1")
	}
	return NewASTree(cfg.CipherSuite, cfg.ApplicationSecret, cfg.RosterSize)
}
