// Package ledger carries the on-ledger data types that the voting
// subsystem consumes and produces: state change payloads embedded in
// transactions, masternode checkpoints and the hard fork versions that
// gate their interpretation. Persistence and wire encoding of these
// types belong to the chain itself.
package ledger

import (
	"encoding/hex"
	"fmt"

	"github.com/quenero/masternodes/pkg/quorum"
)

// Hash is a 256 bit block or payload digest.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

// NewState is the state an obligations quorum votes to move a worker
// masternode into.
type NewState uint16

const (
	StateDecommission NewState = iota
	StateRecommission
	StateDeregister
	StateIPChangePenalty
)

func (s NewState) String() string {
	switch s {
	case StateDecommission:
		return "decommission"
	case StateRecommission:
		return "recommission"
	case StateDeregister:
		return "deregister"
	case StateIPChangePenalty:
		return "ip_change_penalty"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(s))
	}
}

// ValidForVersion reports whether the state is one the protocol can
// enact at the given hard fork version. Deregistrations predate the
// decommission mechanism; the softer states arrived with HFVersionStateChanges.
func (s NewState) ValidForVersion(hfVersion uint8) bool {
	switch s {
	case StateDeregister:
		return true
	case StateDecommission, StateRecommission, StateIPChangePenalty:
		return hfVersion >= HFVersionStateChanges
	default:
		return false
	}
}

// Reasons a quorum may cite when voting to penalise a worker. Stored as
// a bitmask in the state change payload.
const (
	ReasonUptimeProofMissed uint16 = 1 << iota
	ReasonCheckpointVotesMissed
	ReasonStorageServerUnreachable
	ReasonPulseParticipationMissed
)

// ValidReasonsForVersion returns the mask of reason bits the protocol
// recognises at the given hard fork version.
func ValidReasonsForVersion(hfVersion uint8) uint16 {
	mask := ReasonUptimeProofMissed | ReasonCheckpointVotesMissed | ReasonStorageServerUnreachable
	if hfVersion >= HFVersionPulse {
		mask |= ReasonPulseParticipationMissed
	}
	return mask
}

// Hard fork versions at which voting behaviour changes. These are
// protocol constants; activation heights are decided by the chain.
const (
	// HFVersionStateChanges introduced decommissions, recommissions and
	// IP change penalties alongside plain deregistrations.
	HFVersionStateChanges uint8 = 12

	// HFVersionCheckpointDomain switched checkpoint vote signing from the
	// raw block hash to a domain separated digest that binds the height.
	HFVersionCheckpointDomain uint8 = 13

	// HFVersionQuorumnet moved obligations vote relay from the general
	// peer flood channel onto the dedicated quorumnet channel.
	HFVersionQuorumnet uint8 = 14

	// HFVersionPulse added the backup block production quorum and its
	// participation reason bit.
	HFVersionPulse uint8 = 16
)

// StateChangeExtra is the state change payload a winning obligations
// quorum commits inside a transaction. Votes carry the signatures of
// the validator subset that agreed, ordered by voter index.
type StateChangeExtra struct {
	Version         uint8
	BlockHeight     uint64
	MasternodeIndex uint16
	State           NewState
	Reason          uint16
	Votes           []quorum.Signature
}

// Transaction is the minimal view of a committed transaction that the
// voting pool needs: whether it carries a state change and for what.
type Transaction struct {
	StateChange *StateChangeExtra
}

// Checkpoint is a masternode quorum's attestation of a historical
// block. Signatures are aggregated under the checkpointing threshold.
type Checkpoint struct {
	Version    uint8
	Height     uint64
	BlockHash  Hash
	Signatures []quorum.Signature
}

// NewCheckpoint returns an empty masternode checkpoint for the given
// block, ready to collect quorum signatures.
func NewCheckpoint(blockHash Hash, height uint64) Checkpoint {
	return Checkpoint{
		Height:    height,
		BlockHash: blockHash,
	}
}
