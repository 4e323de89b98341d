package voting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenero/masternodes/ledger"
	"github.com/quenero/masternodes/pkg/quorum"
	"github.com/quenero/masternodes/voting"
)

func TestVerifyVoteAge(t *testing.T) {
	latest := voting.VoteLifetime + 500

	testCases := []struct {
		name   string
		height uint64
		valid  bool
	}{
		{"at the tip", latest, true},
		{"oldest accepted", latest - voting.VoteLifetime, true},
		{"one block too old", latest - voting.VoteLifetime - 1, false},
		{"ahead of the tip", latest + 1, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			vote := voting.Vote{BlockHeight: tc.height}
			err := voting.VerifyVoteAge(vote, latest)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, voting.ErrVoteHeightOutOfRange)
			}
		})
	}
}

func TestVerifyStateChangeVoteSignature(t *testing.T) {
	tq := quorum.NewTestQuorum(10, 10)
	hfVersion := ledger.HFVersionStateChanges

	vote := voting.NewStateChangeVote(100, 3, 7, ledger.StateDecommission, ledger.ReasonUptimeProofMissed, tq.ValidatorKeys[3])
	require.NoError(t, voting.VerifyVoteSignature(hfVersion, vote, tq.Quorum))

	// signer index out of range
	badIndex := vote
	badIndex.IndexInGroup = 10
	assert.ErrorIs(t, voting.VerifyVoteSignature(hfVersion, badIndex, tq.Quorum), voting.ErrVoterIndexOutOfRange)

	// target worker out of range
	badWorker := voting.NewStateChangeVote(100, 3, 10, ledger.StateDecommission, 0, tq.ValidatorKeys[3])
	assert.ErrorIs(t, voting.VerifyVoteSignature(hfVersion, badWorker, tq.Quorum), voting.ErrWorkerIndexOutOfRange)

	// votes must come from the validator group
	badGroup := vote
	badGroup.Group = quorum.GroupWorker
	assert.ErrorIs(t, voting.VerifyVoteSignature(hfVersion, badGroup, tq.Quorum), voting.ErrIncorrectVotingGroup)

	// signed by the wrong key
	forged := voting.NewStateChangeVote(100, 3, 7, ledger.StateDecommission, ledger.ReasonUptimeProofMissed, tq.ValidatorKeys[4])
	assert.ErrorIs(t, voting.VerifyVoteSignature(hfVersion, forged, tq.Quorum), voting.ErrInvalidVoteSignature)

	// any field mutation invalidates the signature
	tampered := vote
	tampered.StateChange.Reason = ledger.ReasonCheckpointVotesMissed
	assert.ErrorIs(t, voting.VerifyVoteSignature(hfVersion, tampered, tq.Quorum), voting.ErrInvalidVoteSignature)
}

func TestVerifyCheckpointVoteSignatureAcrossForks(t *testing.T) {
	tq := quorum.NewTestQuorum(10, 0)
	hash := ledger.Hash{0xaa, 0xbb}

	oldForm := ledger.HFVersionCheckpointDomain - 1
	newForm := ledger.HFVersionCheckpointDomain

	voteOld := voting.NewCheckpointVote(oldForm, hash, 100, 2, tq.ValidatorKeys[2])
	require.NoError(t, voting.VerifyVoteSignature(oldForm, voteOld, tq.Quorum))
	// the legacy digest does not bind the height, so the new form must reject it
	assert.ErrorIs(t, voting.VerifyVoteSignature(newForm, voteOld, tq.Quorum), voting.ErrInvalidVoteSignature)

	voteNew := voting.NewCheckpointVote(newForm, hash, 100, 2, tq.ValidatorKeys[2])
	require.NoError(t, voting.VerifyVoteSignature(newForm, voteNew, tq.Quorum))
	assert.ErrorIs(t, voting.VerifyVoteSignature(oldForm, voteNew, tq.Quorum), voting.ErrInvalidVoteSignature)
}

// checkpointSignatures builds a valid aggregate from the given voter
// indices, in the given order.
func checkpointSignatures(tq *quorum.TestQuorum, hfVersion uint8, height uint64, hash ledger.Hash, indices ...uint16) []quorum.Signature {
	sigs := make([]quorum.Signature, len(indices))
	for i, index := range indices {
		vote := voting.NewCheckpointVote(hfVersion, hash, height, index, tq.ValidatorKeys[index])
		sigs[i] = quorum.Signature{VoterIndex: index, Signature: vote.Signature}
	}
	return sigs
}

func TestVerifyQuorumSignaturesThreshold(t *testing.T) {
	// validator group of 10: the supermajority threshold is 7
	tq := quorum.NewTestQuorum(10, 0)
	require.Equal(t, 7, voting.RequiredVotes(10))

	hfVersion := ledger.HFVersionCheckpointDomain
	height := uint64(100)
	blockHash := ledger.Hash{0x11}
	hash := voting.CheckpointVoteHash(hfVersion, height, blockHash)

	verify := func(sigs []quorum.Signature) error {
		return voting.VerifyQuorumSignatures(tq.Quorum, voting.Checkpointing, hfVersion, height, hash, sigs)
	}

	// six valid signatures fall short
	sigs := checkpointSignatures(tq, hfVersion, height, blockHash, 0, 1, 2, 3, 4, 5)
	assert.ErrorIs(t, verify(sigs), voting.ErrNotEnoughVotes)

	// the seventh tips it over
	sigs = checkpointSignatures(tq, hfVersion, height, blockHash, 0, 1, 2, 3, 4, 5, 6)
	assert.NoError(t, verify(sigs))

	// reordering the same seven must fail outright
	sigs = checkpointSignatures(tq, hfVersion, height, blockHash, 6, 5, 4, 3, 2, 1, 0)
	assert.ErrorIs(t, verify(sigs), voting.ErrUnsortedQuorumSignatures)

	// duplicated indices are rejected regardless of validity
	sigs = checkpointSignatures(tq, hfVersion, height, blockHash, 0, 1, 2, 3, 4, 5, 5)
	assert.ErrorIs(t, verify(sigs), voting.ErrUnsortedQuorumSignatures)

	// a single forged signature poisons the aggregate
	sigs = checkpointSignatures(tq, hfVersion, height, blockHash, 0, 1, 2, 3, 4, 5, 6)
	sigs[6].Signature = sigs[5].Signature
	assert.ErrorIs(t, verify(sigs), voting.ErrInvalidVoteSignature)

	// more signatures than validators cannot be right
	sigs = checkpointSignatures(tq, hfVersion, height, blockHash, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	sigs = append(sigs, sigs[9])
	assert.ErrorIs(t, verify(sigs), voting.ErrTooManySignatures)
}

func TestVerifyCheckpoint(t *testing.T) {
	tq := quorum.NewTestQuorum(20, 0)
	require.Equal(t, 13, voting.RequiredVotes(20))

	hfVersion := ledger.HFVersionCheckpointDomain
	checkpoint := ledger.NewCheckpoint(ledger.Hash{0x22}, 300)
	checkpoint.Signatures = checkpointSignatures(tq, hfVersion, checkpoint.Height, checkpoint.BlockHash,
		0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)

	require.NoError(t, voting.VerifyCheckpoint(hfVersion, checkpoint, tq.Quorum))

	checkpoint.Signatures = checkpoint.Signatures[:12]
	assert.ErrorIs(t, voting.VerifyCheckpoint(hfVersion, checkpoint, tq.Quorum), voting.ErrNotEnoughVotes)
}

func TestVerifyQuorumSignaturesPulseGate(t *testing.T) {
	hfVersion := ledger.HFVersionPulse
	height := uint64(400)
	hash := voting.CheckpointVoteHash(hfVersion, height, ledger.Hash{0x33})

	// a pulse aggregate over a too-small quorum fails before any
	// signature work, regardless of how many signatures it carries
	small := quorum.NewTestQuorum(voting.PulseMinValidators-1, voting.PulseMinWorkers)
	sigs := make([]quorum.Signature, 0, voting.PulseMinValidators)
	for i := uint16(0); i < uint16(voting.PulseMinValidators-1); i++ {
		sigs = append(sigs, quorum.Signature{VoterIndex: i, Signature: small.ValidatorKeys[i].Sign(hash[:])})
	}
	err := voting.VerifyQuorumSignatures(small.Quorum, voting.Pulse, hfVersion, height, hash, sigs)
	assert.ErrorIs(t, err, voting.ErrPulseQuorumTooSmall)

	// at the minimum sizes the same aggregate flows through the normal
	// threshold check
	ok := quorum.NewTestQuorum(voting.PulseMinValidators, voting.PulseMinWorkers)
	sigs = sigs[:0]
	for i := uint16(0); i < uint16(voting.PulseMinValidators); i++ {
		sigs = append(sigs, quorum.Signature{VoterIndex: i, Signature: ok.ValidatorKeys[i].Sign(hash[:])})
	}
	assert.NoError(t, voting.VerifyQuorumSignatures(ok.Quorum, voting.Pulse, hfVersion, height, hash, sigs))
}

func TestVerifyPulseQuorumSizes(t *testing.T) {
	ok := quorum.NewTestQuorum(voting.PulseMinValidators, voting.PulseMinWorkers)
	assert.NoError(t, voting.VerifyPulseQuorumSizes(ok.Quorum))

	thinValidators := quorum.NewTestQuorum(voting.PulseMinValidators-1, voting.PulseMinWorkers)
	assert.ErrorIs(t, voting.VerifyPulseQuorumSizes(thinValidators.Quorum), voting.ErrPulseQuorumTooSmall)

	noWorkers := quorum.NewTestQuorum(voting.PulseMinValidators, 0)
	assert.ErrorIs(t, voting.VerifyPulseQuorumSizes(noWorkers.Quorum), voting.ErrPulseQuorumTooSmall)
}

func makeStateChange(tq *quorum.TestQuorum, indices ...uint16) ledger.StateChangeExtra {
	sc := ledger.StateChangeExtra{
		BlockHeight:     100,
		MasternodeIndex: 5,
		State:           ledger.StateDecommission,
		Reason:          ledger.ReasonUptimeProofMissed,
	}
	for _, index := range indices {
		sc.Votes = append(sc.Votes, quorum.Signature{
			VoterIndex: index,
			Signature:  voting.SignatureFromTxStateChange(sc, index, tq.ValidatorKeys[index]),
		})
	}
	return sc
}

func TestVerifyTxStateChange(t *testing.T) {
	tq := quorum.NewTestQuorum(10, 10)
	hfVersion := ledger.HFVersionStateChanges
	latest := uint64(120)

	sc := makeStateChange(tq, 0, 1, 2, 3, 4, 5, 6)
	require.NoError(t, voting.VerifyTxStateChange(sc, latest, tq.Quorum, hfVersion))

	t.Run("height outside window", func(t *testing.T) {
		err := voting.VerifyTxStateChange(sc, sc.BlockHeight+voting.VoteLifetime+1, tq.Quorum, hfVersion)
		assert.ErrorIs(t, err, voting.ErrVoteHeightOutOfRange)
		err = voting.VerifyTxStateChange(sc, sc.BlockHeight-1, tq.Quorum, hfVersion)
		assert.ErrorIs(t, err, voting.ErrVoteHeightOutOfRange)
	})

	t.Run("worker index out of range", func(t *testing.T) {
		bad := sc
		bad.MasternodeIndex = 10
		err := voting.VerifyTxStateChange(bad, latest, tq.Quorum, hfVersion)
		assert.ErrorIs(t, err, voting.ErrWorkerIndexOutOfRange)
	})

	t.Run("state not yet forked in", func(t *testing.T) {
		err := voting.VerifyTxStateChange(sc, latest, tq.Quorum, ledger.HFVersionStateChanges-1)
		assert.ErrorIs(t, err, voting.ErrInvalidStateForVersion)
	})

	t.Run("deregister predates the fork", func(t *testing.T) {
		dereg := ledger.StateChangeExtra{
			BlockHeight:     100,
			MasternodeIndex: 5,
			State:           ledger.StateDeregister,
		}
		for index := uint16(0); index < 7; index++ {
			dereg.Votes = append(dereg.Votes, quorum.Signature{
				VoterIndex: index,
				Signature:  voting.SignatureFromTxStateChange(dereg, index, tq.ValidatorKeys[index]),
			})
		}
		assert.NoError(t, voting.VerifyTxStateChange(dereg, latest, tq.Quorum, ledger.HFVersionStateChanges-1))
	})

	t.Run("unknown reason bits", func(t *testing.T) {
		bad := sc
		bad.Reason |= ledger.ReasonPulseParticipationMissed
		err := voting.VerifyTxStateChange(bad, latest, tq.Quorum, hfVersion)
		assert.ErrorIs(t, err, voting.ErrUnknownReasonBits,
			"the pulse reason bit is unknown before its fork")
	})

	t.Run("below threshold", func(t *testing.T) {
		short := makeStateChange(tq, 0, 1, 2, 3, 4, 5)
		err := voting.VerifyTxStateChange(short, latest, tq.Quorum, hfVersion)
		assert.ErrorIs(t, err, voting.ErrNotEnoughVotes)
	})

	t.Run("unsorted votes", func(t *testing.T) {
		unsorted := makeStateChange(tq, 6, 5, 4, 3, 2, 1, 0)
		err := voting.VerifyTxStateChange(unsorted, latest, tq.Quorum, hfVersion)
		assert.ErrorIs(t, err, voting.ErrUnsortedQuorumSignatures)
	})

	t.Run("forged vote", func(t *testing.T) {
		forged := makeStateChange(tq, 0, 1, 2, 3, 4, 5, 6)
		forged.Votes[3].Signature = forged.Votes[2].Signature
		err := voting.VerifyTxStateChange(forged, latest, tq.Quorum, hfVersion)
		assert.ErrorIs(t, err, voting.ErrInvalidVoteSignature)
	})
}
