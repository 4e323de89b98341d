package voting

import (
	"fmt"

	"github.com/quenero/masternodes/ledger"
	"github.com/quenero/masternodes/pkg/quorum"
)

// VerifyVoteAge checks that a vote's height lies within VoteLifetime
// blocks behind the chain tip. Anything older is stale relay traffic;
// anything ahead of the tip is not yet actionable.
func VerifyVoteAge(vote Vote, latestHeight uint64) error {
	if vote.BlockHeight > latestHeight {
		return fmt.Errorf("%w: vote for %d ahead of tip %d", ErrVoteHeightOutOfRange, vote.BlockHeight, latestHeight)
	}
	if latestHeight-vote.BlockHeight > VoteLifetime {
		return fmt.Errorf("%w: vote for %d with tip at %d", ErrVoteHeightOutOfRange, vote.BlockHeight, latestHeight)
	}
	return nil
}

// VerifyVoteSignature resolves the signer's public key from the quorum
// membership and checks the vote's signature over the recomputed
// canonical digest for its type.
func VerifyVoteSignature(hfVersion uint8, vote Vote, q *quorum.Quorum) error {
	if vote.Group != quorum.GroupValidator {
		return ErrIncorrectVotingGroup
	}
	if int(vote.IndexInGroup) >= q.GroupSize(vote.Group) {
		return fmt.Errorf("%w: index %d, group size %d", ErrVoterIndexOutOfRange, vote.IndexInGroup, q.GroupSize(vote.Group))
	}
	if vote.Type == Obligations && int(vote.StateChange.WorkerIndex) >= q.GroupSize(quorum.GroupWorker) {
		return fmt.Errorf("%w: index %d, group size %d", ErrWorkerIndexOutOfRange, vote.StateChange.WorkerIndex, q.GroupSize(quorum.GroupWorker))
	}

	hash, err := voteHash(hfVersion, vote)
	if err != nil {
		return err
	}
	if !q.VerifySignature(vote.Group, vote.IndexInGroup, hash[:], vote.Signature) {
		return ErrInvalidVoteSignature
	}
	return nil
}

// VerifyQuorumSignatures validates an aggregate of per member
// signatures attesting to a single digest. Signatures must arrive
// ordered by strictly increasing voter index, each must individually
// verify against the validator at that index, and the count must meet
// the supermajority threshold of the validator group. This is the
// byzantine fault tolerance boundary: a minority of faulty or absent
// signers is tolerated but can never assemble a passing aggregate.
func VerifyQuorumSignatures(
	q *quorum.Quorum,
	quorumType QuorumType,
	hfVersion uint8,
	height uint64,
	hash ledger.Hash,
	signatures []quorum.Signature,
) error {
	if quorumType == Pulse {
		if err := VerifyPulseQuorumSizes(q); err != nil {
			return err
		}
	}

	groupSize := q.GroupSize(quorum.GroupValidator)
	if len(signatures) > groupSize {
		return fmt.Errorf("%w: %d signatures, %d validators", ErrTooManySignatures, len(signatures), groupSize)
	}
	if len(signatures) < RequiredVotes(groupSize) {
		return fmt.Errorf("%w: %d of %d required for %s at height %d",
			ErrNotEnoughVotes, len(signatures), RequiredVotes(groupSize), quorumType, height)
	}

	lastIndex := -1
	for _, sig := range signatures {
		if int(sig.VoterIndex) <= lastIndex {
			return ErrUnsortedQuorumSignatures
		}
		lastIndex = int(sig.VoterIndex)

		if int(sig.VoterIndex) >= groupSize {
			return fmt.Errorf("%w: index %d, group size %d", ErrVoterIndexOutOfRange, sig.VoterIndex, groupSize)
		}
		if !q.VerifySignature(quorum.GroupValidator, sig.VoterIndex, hash[:], sig.Signature) {
			return fmt.Errorf("voter %d: %w", sig.VoterIndex, ErrInvalidVoteSignature)
		}
	}
	return nil
}

// VerifyPulseQuorumSizes checks the fixed minimum group sizes the
// backup block production quorum needs to be viable.
func VerifyPulseQuorumSizes(q *quorum.Quorum) error {
	if q.GroupSize(quorum.GroupValidator) < PulseMinValidators || q.GroupSize(quorum.GroupWorker) < PulseMinWorkers {
		return fmt.Errorf("%w: %d validators, %d workers",
			ErrPulseQuorumTooSmall, q.GroupSize(quorum.GroupValidator), q.GroupSize(quorum.GroupWorker))
	}
	return nil
}

// VerifyCheckpoint validates a masternode checkpoint's aggregated
// quorum signatures under the checkpointing threshold.
func VerifyCheckpoint(hfVersion uint8, checkpoint ledger.Checkpoint, q *quorum.Quorum) error {
	hash := CheckpointVoteHash(hfVersion, checkpoint.Height, checkpoint.BlockHash)
	return VerifyQuorumSignatures(q, Checkpointing, hfVersion, checkpoint.Height, hash, checkpoint.Signatures)
}

// VerifyTxStateChange validates a state change payload embedded in a
// ledger transaction before it is accepted: height window, worker
// index range, reason and state legality for the hard fork version,
// and the embedded validator signatures against the obligations
// threshold.
func VerifyTxStateChange(
	sc ledger.StateChangeExtra,
	latestHeight uint64,
	q *quorum.Quorum,
	hfVersion uint8,
) error {
	if sc.BlockHeight > latestHeight || latestHeight-sc.BlockHeight > VoteLifetime {
		return fmt.Errorf("%w: state change for %d with tip at %d", ErrVoteHeightOutOfRange, sc.BlockHeight, latestHeight)
	}
	if int(sc.MasternodeIndex) >= q.GroupSize(quorum.GroupWorker) {
		return fmt.Errorf("%w: index %d, group size %d", ErrWorkerIndexOutOfRange, sc.MasternodeIndex, q.GroupSize(quorum.GroupWorker))
	}
	if !sc.State.ValidForVersion(hfVersion) {
		return fmt.Errorf("%w: %s at version %d", ErrInvalidStateForVersion, sc.State, hfVersion)
	}
	if unknown := sc.Reason &^ ledger.ValidReasonsForVersion(hfVersion); unknown != 0 {
		return fmt.Errorf("%w: %#x at version %d", ErrUnknownReasonBits, unknown, hfVersion)
	}

	groupSize := q.GroupSize(quorum.GroupValidator)
	if len(sc.Votes) > groupSize {
		return fmt.Errorf("%w: %d signatures, %d validators", ErrTooManySignatures, len(sc.Votes), groupSize)
	}
	if len(sc.Votes) < RequiredVotes(groupSize) {
		return fmt.Errorf("%w: %d of %d required", ErrNotEnoughVotes, len(sc.Votes), RequiredVotes(groupSize))
	}

	// Each voter signed a digest bound to their own index, so the
	// aggregate is checked vote by vote rather than over a shared hash.
	lastIndex := -1
	for _, sig := range sc.Votes {
		if int(sig.VoterIndex) <= lastIndex {
			return ErrUnsortedQuorumSignatures
		}
		lastIndex = int(sig.VoterIndex)

		if int(sig.VoterIndex) >= groupSize {
			return fmt.Errorf("%w: index %d, group size %d", ErrVoterIndexOutOfRange, sig.VoterIndex, groupSize)
		}
		hash := StateChangeVoteHash(sc.BlockHeight, quorum.GroupValidator, sig.VoterIndex, sc.MasternodeIndex, sc.State, sc.Reason)
		if !q.VerifySignature(quorum.GroupValidator, sig.VoterIndex, hash[:], sig.Signature) {
			return fmt.Errorf("voter %d: %w", sig.VoterIndex, ErrInvalidVoteSignature)
		}
	}
	return nil
}
