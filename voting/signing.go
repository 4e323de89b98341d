package voting

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/quenero/masternodes/ledger"
	"github.com/quenero/masternodes/pkg/keys"
	"github.com/quenero/masternodes/pkg/quorum"
)

// Votes sign a 32 byte digest of a domain separated canonical encoding
// rather than a serialized vote, so that the construction and
// verification sides, and the transaction that eventually embeds the
// signatures, all hash exactly the same bytes.
//
// The state change encoding is:
// 1 byte quorum type
// 8 bytes block height
// 1 byte voting group
// 2 bytes index in group
// 2 bytes worker index
// 2 bytes new state
// 2 bytes reason bitmask
//
// All integers are big endian.
func stateChangeSignBytes(
	blockHeight uint64,
	group quorum.Group,
	indexInGroup, workerIndex uint16,
	state ledger.NewState,
	reason uint16,
) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 18))
	buf.WriteByte(byte(Obligations))
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, blockHeight)
	buf.Write(heightBytes)
	buf.WriteByte(byte(group))
	field := make([]byte, 2)
	binary.BigEndian.PutUint16(field, indexInGroup)
	buf.Write(field)
	binary.BigEndian.PutUint16(field, workerIndex)
	buf.Write(field)
	binary.BigEndian.PutUint16(field, uint16(state))
	buf.Write(field)
	binary.BigEndian.PutUint16(field, reason)
	buf.Write(field)
	return buf.Bytes()
}

// The checkpoint encoding binds the height to the block hash:
// 1 byte quorum type
// 8 bytes block height
// 32 bytes block hash
func checkpointSignBytes(blockHeight uint64, blockHash ledger.Hash) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, 41))
	buf.WriteByte(byte(Checkpointing))
	heightBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(heightBytes, blockHeight)
	buf.Write(heightBytes)
	buf.Write(blockHash[:])
	return buf.Bytes()
}

// StateChangeVoteHash is the digest an obligations voter signs.
func StateChangeVoteHash(
	blockHeight uint64,
	group quorum.Group,
	indexInGroup, workerIndex uint16,
	state ledger.NewState,
	reason uint16,
) ledger.Hash {
	return sha256.Sum256(stateChangeSignBytes(blockHeight, group, indexInGroup, workerIndex, state, reason))
}

// CheckpointVoteHash is the digest a checkpointing voter signs. Before
// HFVersionCheckpointDomain voters signed the raw block hash; from that
// fork onward the digest also binds the height. Both forms remain
// computable so quorums spanning the boundary keep validating.
func CheckpointVoteHash(hfVersion uint8, blockHeight uint64, blockHash ledger.Hash) ledger.Hash {
	if hfVersion < ledger.HFVersionCheckpointDomain {
		return blockHash
	}
	return sha256.Sum256(checkpointSignBytes(blockHeight, blockHash))
}

// voteHash resolves the digest for a vote according to its type.
func voteHash(hfVersion uint8, vote Vote) (ledger.Hash, error) {
	switch vote.Type {
	case Obligations:
		return StateChangeVoteHash(
			vote.BlockHeight,
			vote.Group,
			vote.IndexInGroup,
			vote.StateChange.WorkerIndex,
			vote.StateChange.State,
			vote.StateChange.Reason,
		), nil
	case Checkpointing:
		return CheckpointVoteHash(hfVersion, vote.BlockHeight, vote.Checkpoint.BlockHash), nil
	default:
		return ledger.Hash{}, fmt.Errorf("no signable payload for quorum type %d", uint8(vote.Type))
	}
}

// SignatureFromVote computes only the signature over a vote's canonical
// payload. Construction fills Vote.Signature with it; verification
// recomputes the same digest.
func SignatureFromVote(hfVersion uint8, vote Vote, signer *keys.Keys) []byte {
	hash, err := voteHash(hfVersion, vote)
	if err != nil {
		// Callers construct votes with a concrete payload; signing any
		// other type is a defect.
		panic(err)
	}
	return signer.Sign(hash[:])
}

// SignatureFromTxStateChange recreates the signature a validator
// contributed to a committed state change transaction. indexInGroup is
// the signer's position within the quorum's validator group.
func SignatureFromTxStateChange(sc ledger.StateChangeExtra, indexInGroup uint16, signer *keys.Keys) []byte {
	hash := StateChangeVoteHash(
		sc.BlockHeight,
		quorum.GroupValidator,
		indexInGroup,
		sc.MasternodeIndex,
		sc.State,
		sc.Reason,
	)
	return signer.Sign(hash[:])
}
