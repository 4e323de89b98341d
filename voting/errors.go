package voting

import "errors"

// Verification failures are ordinary values, not panics: stale,
// malformed and forged votes are expected traffic on an adversarial
// network. Callers branch on these with errors.Is, typically to decide
// whether to penalise the sending peer.
var (
	// ErrVoteHeightOutOfRange rejects votes for heights more than
	// VoteLifetime blocks behind the chain tip, or ahead of it.
	ErrVoteHeightOutOfRange = errors.New("vote height outside the accepted window")

	// ErrIncorrectVotingGroup rejects votes not cast by a member of the
	// validator group.
	ErrIncorrectVotingGroup = errors.New("vote is not from the validator group")

	// ErrVoterIndexOutOfRange rejects votes whose signer position
	// exceeds the group's membership list.
	ErrVoterIndexOutOfRange = errors.New("voter index exceeds quorum group size")

	// ErrWorkerIndexOutOfRange rejects state changes addressing a
	// position past the end of the worker group.
	ErrWorkerIndexOutOfRange = errors.New("worker index exceeds quorum group size")

	// ErrInvalidVoteSignature rejects votes whose signature does not
	// verify against the resolved member key.
	ErrInvalidVoteSignature = errors.New("invalid vote signature")

	// ErrUnsortedQuorumSignatures rejects aggregates whose voter
	// indices are not strictly increasing. Sorted order is the
	// duplicate counting defence: it makes double counted signers
	// structurally impossible.
	ErrUnsortedQuorumSignatures = errors.New("quorum signatures not in strictly increasing voter order")

	// ErrNotEnoughVotes rejects aggregates below the supermajority
	// threshold of the validator group.
	ErrNotEnoughVotes = errors.New("not enough votes to meet quorum threshold")

	// ErrTooManySignatures rejects aggregates carrying more signatures
	// than the validator group has members.
	ErrTooManySignatures = errors.New("more signatures than quorum validators")

	// ErrInvalidStateForVersion rejects state changes whose new state
	// is not enactable at the given hard fork version.
	ErrInvalidStateForVersion = errors.New("state change not valid at this hard fork version")

	// ErrUnknownReasonBits rejects state changes citing reason bits the
	// protocol does not recognise at the given hard fork version.
	ErrUnknownReasonBits = errors.New("state change reason carries unknown bits")

	// ErrPulseQuorumTooSmall rejects pulse quorums below the fixed
	// minimum group sizes.
	ErrPulseQuorumTooSmall = errors.New("pulse quorum smaller than required minimums")
)
