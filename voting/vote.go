package voting

import (
	"errors"
	"fmt"

	"github.com/quenero/masternodes/ledger"
	"github.com/quenero/masternodes/pkg/keys"
	"github.com/quenero/masternodes/pkg/quorum"
)

// QuorumType identifies which protocol instance a vote belongs to.
type QuorumType uint8

const (
	// Obligations quorums vote on state changes to worker masternodes.
	Obligations QuorumType = iota
	// Checkpointing quorums vote to attest historical blocks.
	Checkpointing
	// Blink handles instant transactions. Out of scope here beyond the tag.
	Blink
	// Pulse is the backup block production quorum.
	Pulse

	quorumTypeCount
)

func (t QuorumType) String() string {
	switch t {
	case Obligations:
		return "obligation"
	case Checkpointing:
		return "checkpointing"
	case Blink:
		return "blink"
	case Pulse:
		return "pulse"
	default:
		panic(fmt.Sprintf("unhandled quorum type %d", uint8(t)))
	}
}

// StateChangeVote is the payload of an obligations vote: move the
// worker at WorkerIndex into State, citing the Reason bitmask.
type StateChangeVote struct {
	WorkerIndex uint16          `json:"worker_index"`
	State       ledger.NewState `json:"state"`
	Reason      uint16          `json:"reason"`
}

// CheckpointVote is the payload of a checkpointing vote.
type CheckpointVote struct {
	BlockHash ledger.Hash `json:"block_hash"`
}

// Vote is a single signed quorum vote. Exactly one of the payload
// fields is meaningful, selected by Type: StateChange for Obligations,
// Checkpoint for Checkpointing. Reading the other is a programming
// error, not a runtime condition.
type Vote struct {
	Version      uint8        `json:"version"`
	Type         QuorumType   `json:"type"`
	BlockHeight  uint64       `json:"block_height"`
	Group        quorum.Group `json:"group"`
	IndexInGroup uint16       `json:"index_in_group"`
	Signature    []byte       `json:"signature"`

	StateChange StateChangeVote `json:"state_change,omitempty"`
	Checkpoint  CheckpointVote  `json:"checkpoint,omitempty"`
}

// NewStateChangeVote builds and signs an obligations vote from the
// validator at indexInGroup against the worker at workerIndex.
func NewStateChangeVote(
	blockHeight uint64,
	indexInGroup, workerIndex uint16,
	state ledger.NewState,
	reason uint16,
	signer *keys.Keys,
) Vote {
	vote := Vote{
		Type:         Obligations,
		BlockHeight:  blockHeight,
		Group:        quorum.GroupValidator,
		IndexInGroup: indexInGroup,
		StateChange: StateChangeVote{
			WorkerIndex: workerIndex,
			State:       state,
			Reason:      reason,
		},
	}
	vote.Signature = SignatureFromVote(0, vote, signer)
	return vote
}

// NewCheckpointVote builds and signs a checkpointing vote. The signed
// digest depends on hfVersion: quorums spanning the fork boundary
// produce whichever form their height calls for.
func NewCheckpointVote(
	hfVersion uint8,
	blockHash ledger.Hash,
	blockHeight uint64,
	indexInQuorum uint16,
	signer *keys.Keys,
) Vote {
	vote := Vote{
		Type:         Checkpointing,
		BlockHeight:  blockHeight,
		Group:        quorum.GroupValidator,
		IndexInGroup: indexInQuorum,
		Checkpoint: CheckpointVote{
			BlockHash: blockHash,
		},
	}
	vote.Signature = SignatureFromVote(hfVersion, vote, signer)
	return vote
}

// ValidateForm checks the structural invariants of a vote that hold
// regardless of quorum membership or chain state.
func (v *Vote) ValidateForm() error {
	switch v.Type {
	case Obligations, Checkpointing:
	case Blink, Pulse:
		return fmt.Errorf("%s votes do not flow through the voting pool", v.Type)
	default:
		return fmt.Errorf("unrecognised quorum type %d", uint8(v.Type))
	}

	if v.Group != quorum.GroupValidator {
		return ErrIncorrectVotingGroup
	}

	if len(v.Signature) == 0 {
		return errors.New("vote does not contain any signature")
	}

	return nil
}

func (v *Vote) String() string {
	switch v.Type {
	case Obligations:
		return fmt.Sprintf("Vote{%s @ %d by %s[%d]: worker %d -> %s}",
			v.Type, v.BlockHeight, v.Group, v.IndexInGroup, v.StateChange.WorkerIndex, v.StateChange.State)
	case Checkpointing:
		return fmt.Sprintf("Vote{%s @ %d by %s[%d]: %s}",
			v.Type, v.BlockHeight, v.Group, v.IndexInGroup, v.Checkpoint.BlockHash)
	default:
		return fmt.Sprintf("Vote{type %d @ %d}", uint8(v.Type), v.BlockHeight)
	}
}
