package mls

import (
	"encoding/binary"

	"github.com/bifurcation/mint/syntax"
	"github.com/pkg/errors"
)

// ApplicationContext is the context bound into every derivation in this
// module: HKDF-Expand-Label(secret, label, ctx(node, generation), L). Its
// wire encoding is used directly as HKDF input, so it is NOT routed
// through the general tls-syntax struct codec below — no length prefix,
// just the two integers concatenated in network byte order.
type ApplicationContext struct {
	Node       uint32
	Generation uint32
}

func (c ApplicationContext) encode() ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], c.Node)
	binary.BigEndian.PutUint32(buf[4:8], c.Generation)
	return buf, nil
}

// optionalNode is the persisted-state wire form of Option<ASTreeNode>: a
// one-byte discriminant (0 = absent, 1 = present-followed-by-body) ahead
// of the node's own encoding. Modeled as a dedicated MarshalTLS/
// UnmarshalTLS pair atop github.com/bifurcation/mint/syntax rather than
// relying on a generic "optional" struct tag.
type optionalNode struct {
	node *ASTreeNode
}

func (o optionalNode) MarshalTLS() ([]byte, error) {
	if o.node == nil {
		return []byte{0}, nil
	}
	body, err := syntax.Marshal(*o.node)
	if err != nil {
		return nil, errors.Wrap(err, "mls: marshal tree node")
	}
	return append([]byte{1}, body...), nil
}

func (o *optionalNode) UnmarshalTLS(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, errors.New("mls: truncated optional node discriminant")
	}
	if data[0] == 0 {
		o.node = nil
		return 1, nil
	}
	var n ASTreeNode
	read, err := syntax.Unmarshal(data[1:], &n)
	if err != nil {
		return 0, errors.Wrap(err, "mls: unmarshal tree node")
	}
	o.node = &n
	return 1 + read, nil
}

// optionalRatchet is the persisted-state wire form of Option<SenderRatchet>,
// using the same discriminant convention as optionalNode.
type optionalRatchet struct {
	ratchet *SenderRatchet
}

func (o optionalRatchet) MarshalTLS() ([]byte, error) {
	if o.ratchet == nil {
		return []byte{0}, nil
	}
	body, err := o.ratchet.encode()
	if err != nil {
		return nil, err
	}
	return append([]byte{1}, body...), nil
}

func (o *optionalRatchet) UnmarshalTLS(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, errors.New("mls: truncated optional ratchet discriminant")
	}
	if data[0] == 0 {
		o.ratchet = nil
		return 1, nil
	}
	r, read, err := decodeSenderRatchet(data[1:])
	if err != nil {
		return 0, err
	}
	o.ratchet = r
	return 1 + read, nil
}

// encodeUint32 and decodeUint32 give the node/ratchet array encodings in
// astree.go a 4-byte length-prefix primitive without pulling the whole
// array through tls-syntax's reflection path.
func encodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

func decodeUint32(data []byte) (uint32, int, error) {
	if len(data) < 4 {
		return 0, 0, errors.New("mls: truncated u32")
	}
	return binary.BigEndian.Uint32(data), 4, nil
}
