package voting

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quenero/masternodes/ledger"
	"github.com/quenero/masternodes/pkg/quorum"
)

// VoteEntry is a vote held by the pool together with its relay state.
// A zero LastRelayed means the vote has never been sent.
type VoteEntry struct {
	Vote        Vote
	LastRelayed time.Time
}

type obligationsKey struct {
	height      uint64
	workerIndex uint16
	state       ledger.NewState
}

type checkpointKey struct {
	height    uint64
	blockHash ledger.Hash
}

// poolEntry owns the ordered vote list for one subject, at most one
// vote per (group, index) signer.
type poolEntry struct {
	votes []*VoteEntry
}

func (e *poolEntry) find(group quorum.Group, index uint16) *VoteEntry {
	for _, entry := range e.votes {
		if entry.Vote.Group == group && entry.Vote.IndexInGroup == index {
			return entry
		}
	}
	return nil
}

func (e *poolEntry) snapshot() []VoteEntry {
	out := make([]VoteEntry, len(e.votes))
	for i, entry := range e.votes {
		out[i] = *entry
	}
	return out
}

// Pool accumulates verified votes per subject until a caller's
// threshold check decides to act on them, deduplicating by signer,
// tracking relay status and expiring entries that can no longer be
// committed. Purely in memory: votes lost on restart are re-solicited
// from peers.
//
// All exported methods are safe for concurrent use. Everything runs
// under one plain mutex with unexported helpers doing the work, so no
// operation ever needs to re-enter the lock.
type Pool struct {
	mtx         sync.Mutex
	obligations map[obligationsKey]*poolEntry
	checkpoints map[checkpointKey]*poolEntry

	logger zerolog.Logger
}

func NewPool(logger zerolog.Logger) *Pool {
	return &Pool{
		obligations: make(map[obligationsKey]*poolEntry),
		checkpoints: make(map[checkpointKey]*poolEntry),
		logger:      logger,
	}
}

// findEntry locates the pool entry keyed by the vote's subject,
// creating it on first sight when create is set. Callers must hold the
// lock.
func (p *Pool) findEntry(vote Vote, create bool) *poolEntry {
	switch vote.Type {
	case Obligations:
		key := obligationsKey{
			height:      vote.BlockHeight,
			workerIndex: vote.StateChange.WorkerIndex,
			state:       vote.StateChange.State,
		}
		entry := p.obligations[key]
		if entry == nil && create {
			entry = &poolEntry{}
			p.obligations[key] = entry
		}
		return entry
	case Checkpointing:
		key := checkpointKey{
			height:    vote.BlockHeight,
			blockHash: vote.Checkpoint.BlockHash,
		}
		entry := p.checkpoints[key]
		if entry == nil && create {
			entry = &poolEntry{}
			p.checkpoints[key] = entry
		}
		return entry
	default:
		return nil
	}
}

// AddVoteIfUnique inserts a verified vote unless the pool already
// holds one from the same signer for the same subject. It returns the
// live vote list for that subject either way, so the caller can run
// its threshold check on the accumulated state, plus whether this vote
// added anything.
func (p *Pool) AddVoteIfUnique(vote Vote) ([]VoteEntry, bool) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	entry := p.findEntry(vote, true)
	if entry == nil {
		return nil, false
	}

	if entry.find(vote.Group, vote.IndexInGroup) != nil {
		// Duplicate voter: nothing added, but the accumulated list is
		// still useful to the caller.
		return entry.snapshot(), false
	}

	entry.votes = append(entry.votes, &VoteEntry{Vote: vote})
	p.logger.Debug().
		Stringer("type", vote.Type).
		Uint64("height", vote.BlockHeight).
		Uint16("voter", vote.IndexInGroup).
		Int("votes", len(entry.votes)).
		Msg("vote added to pool")
	return entry.snapshot(), true
}

// SetRelayed marks each vote in the batch as broadcast now so that the
// next relay pass does not resend it before RelayInterval has passed.
func (p *Pool) SetRelayed(votes []Vote) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	now := time.Now()
	for _, vote := range votes {
		entry := p.findEntry(vote, false)
		if entry == nil {
			continue
		}
		if voteEntry := entry.find(vote.Group, vote.IndexInGroup); voteEntry != nil {
			voteEntry.LastRelayed = now
		}
	}
}

// RemoveExpiredVotes drops every entry whose height has fallen out of
// the VoteLifetime retention window behind the given height. This is
// the pool's only bound on memory growth.
func (p *Pool) RemoveExpiredVotes(height uint64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	minHeight := uint64(0)
	if height > VoteLifetime {
		minHeight = height - VoteLifetime
	}

	for key := range p.obligations {
		if key.height < minHeight {
			delete(p.obligations, key)
		}
	}
	for key := range p.checkpoints {
		if key.height < minHeight {
			delete(p.checkpoints, key)
		}
	}
}

// RemoveUsedVotes retires obligations entries whose state change has
// been committed on ledger: once a transaction enacts (height, worker,
// state) there is nothing left to vote on or relay for that subject.
func (p *Pool) RemoveUsedVotes(txs []ledger.Transaction, hfVersion uint8) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	for _, tx := range txs {
		sc := tx.StateChange
		if sc == nil {
			continue
		}
		key := obligationsKey{
			height:      sc.BlockHeight,
			workerIndex: sc.MasternodeIndex,
			state:       sc.State,
		}
		if _, ok := p.obligations[key]; ok {
			delete(p.obligations, key)
			p.logger.Debug().
				Uint64("height", sc.BlockHeight).
				Uint16("worker", sc.MasternodeIndex).
				Stringer("state", sc.State).
				Uint8("hf_version", hfVersion).
				Msg("removed committed votes from pool")
		}
	}
}

// RelayableVotes returns the votes due for broadcast on the requested
// channel: quorumRelay selects the dedicated quorumnet channel, false
// the general peer flood. Before HFVersionQuorumnet everything flows
// over the flood channel; from that fork onward obligations votes move
// to quorumnet while checkpoint votes stay on the flood channel. A
// checkpoint subject holding a single vote is not yet worth relaying.
func (p *Pool) RelayableVotes(height uint64, hfVersion uint8, quorumRelay bool) []Vote {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	minHeight := uint64(0)
	if height > VoteLifetime {
		minHeight = height - VoteLifetime
	}
	now := time.Now()

	var result []Vote
	collect := func(entry *poolEntry) {
		for _, voteEntry := range entry.votes {
			if voteEntry.Vote.BlockHeight < minHeight || voteEntry.Vote.BlockHeight > height {
				continue
			}
			if !voteEntry.LastRelayed.IsZero() && now.Sub(voteEntry.LastRelayed) < RelayInterval {
				continue
			}
			result = append(result, voteEntry.Vote)
		}
	}

	if EligibleForChannel(Obligations, hfVersion, quorumRelay) {
		for _, entry := range p.obligations {
			collect(entry)
		}
	}
	if EligibleForChannel(Checkpointing, hfVersion, quorumRelay) {
		for _, entry := range p.checkpoints {
			if len(entry.votes) == 1 {
				continue
			}
			collect(entry)
		}
	}
	return result
}

// EligibleForChannel reports whether votes of the given type travel on
// the requested channel at the given hard fork version: everything on
// the peer flood channel before HFVersionQuorumnet, after which
// obligations votes move exclusively to quorumnet while checkpoint
// votes remain on the flood channel.
func EligibleForChannel(quorumType QuorumType, hfVersion uint8, quorumRelay bool) bool {
	switch quorumType {
	case Obligations:
		return quorumRelay == (hfVersion >= ledger.HFVersionQuorumnet)
	case Checkpointing:
		return !quorumRelay
	default:
		return false
	}
}

// ReceivedCheckpointVote reports whether some checkpoint entry at the
// given height already holds a vote from the signer at that quorum
// index. Used to avoid asking an already voted peer to vote again.
func (p *Pool) ReceivedCheckpointVote(height uint64, indexInQuorum uint16) bool {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	for key, entry := range p.checkpoints {
		if key.height != height {
			continue
		}
		if entry.find(quorum.GroupValidator, indexInQuorum) != nil {
			return true
		}
	}
	return false
}

// Count returns the number of live obligations and checkpoint subjects.
func (p *Pool) Count() (obligations, checkpoints int) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.obligations), len(p.checkpoints)
}
