package quorum

import (
	"crypto/ed25519"
	"fmt"
)

// Group identifies which membership list of a quorum a masternode
// belongs to. Votes are cast by validators; workers are the subjects
// that obligations votes act upon.
type Group uint8

const (
	GroupInvalid Group = iota
	GroupValidator
	GroupWorker
)

func (g Group) String() string {
	switch g {
	case GroupInvalid:
		return "invalid"
	case GroupValidator:
		return "validator"
	case GroupWorker:
		return "worker"
	default:
		panic(fmt.Sprintf("unhandled quorum group %d", uint8(g)))
	}
}

// Signature pairs a signature with the validator-group index of the
// masternode that produced it. Aggregates of these back checkpoints
// and committed state change transactions.
type Signature struct {
	VoterIndex uint16 `json:"voter_index"`
	Signature  []byte `json:"signature"`
}

// VerifyFunc dictates how member signatures are verified. This needs to
// match the key protocol used by the masternode keys.
type VerifyFunc func(publicKey, message, signature []byte) bool

// Default to ed25519
func DefaultVerifyFunc() VerifyFunc {
	return func(publicKey, message, signature []byte) bool {
		return ed25519.Verify(publicKey, message, signature)
	}
}

// Quorum is an immutable snapshot of the membership lists for a single
// (type, height) pair, supplied by the quorum composition layer. Both
// lists are ordered; a vote references its signer by position.
type Quorum struct {
	validators [][]byte
	workers    [][]byte
	verify     VerifyFunc
}

func New(validators, workers [][]byte, verify VerifyFunc) *Quorum {
	if verify == nil {
		verify = DefaultVerifyFunc()
	}
	return &Quorum{
		validators: validators,
		workers:    workers,
		verify:     verify,
	}
}

func (q *Quorum) GroupSize(g Group) int {
	switch g {
	case GroupValidator:
		return len(q.validators)
	case GroupWorker:
		return len(q.workers)
	default:
		return 0
	}
}

// Member returns the public key of the masternode at the given position
// within a group, or false if the index is out of range.
func (q *Quorum) Member(g Group, index uint16) ([]byte, bool) {
	var list [][]byte
	switch g {
	case GroupValidator:
		list = q.validators
	case GroupWorker:
		list = q.workers
	default:
		return nil, false
	}
	if int(index) >= len(list) {
		return nil, false
	}
	return list[index], true
}

// VerifySignature checks a signature against the member at the given
// position. An out of range index is simply an invalid signature.
func (q *Quorum) VerifySignature(g Group, index uint16, msg, sig []byte) bool {
	pub, ok := q.Member(g, index)
	if !ok {
		return false
	}
	return q.verify(pub, msg, sig)
}
