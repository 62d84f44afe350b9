package mls

import "runtime"

// zeroize overwrites data in place with zero bytes. The noinline pragma
// and the trailing KeepAlive keep the compiler from recognizing the
// writes as dead stores and eliding them — assignment alone does not
// guarantee the bytes are actually wiped.
//
//go:noinline
func zeroize(data []byte) {
	for i := range data {
		data[i] = 0
	}
	runtime.KeepAlive(data)
}
