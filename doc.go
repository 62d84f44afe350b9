// Package mls implements the Application Secret Tree (AS-Tree): a
// per-sender forward-secret key-derivation subsystem for a group-
// messaging security protocol. Given a group-wide application secret and
// a roster of senders, it lazily derives, for each sender and each
// message generation, a fresh (key, nonce) pair for application-message
// AEAD, bounded-tolerant of out-of-order and lost messages.
//
// A tree owns every secret byte it holds; GetSecret erases ancestors on
// the path to a sender's leaf the first time that sender is touched, and
// a SenderRatchet keeps only the window of chain secrets its tolerance
// allows. Close wipes whatever remains at teardown.
//
// An ASTree is not safe for concurrent use; callers that share one across
// goroutines must serialize access externally, for example:
//
//	var mu sync.Mutex
//	mu.Lock()
//	secrets, err := tree.GetSecret(sender, generation)
//	mu.Unlock()
package mls
