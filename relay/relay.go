// Package relay wires the voting pool to the two vote transports: it
// verifies incoming votes before admitting them to the pool and
// periodically offers unsent pool votes back to the network.
package relay

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/quenero/masternodes/ledger"
	"github.com/quenero/masternodes/network"
	"github.com/quenero/masternodes/pkg/quorum"
	"github.com/quenero/masternodes/voting"
)

// QuorumSource resolves the membership snapshot for a quorum type at a
// height. Supplied by the quorum composition layer.
type QuorumSource interface {
	Quorum(quorumType voting.QuorumType, height uint64) (*quorum.Quorum, error)
}

// ChainState is the ledger view the relayer needs: the current tip and
// the hard fork version in force at a height.
type ChainState interface {
	LatestHeight() uint64
	HardForkVersion(height uint64) uint8
}

const (
	// DefaultTickInterval is how often unsent pool votes are offered to
	// the transports. Individual votes are still throttled by the
	// pool's own RelayInterval.
	DefaultTickInterval = 30 * time.Second

	// seenCacheSize bounds the recently verified vote cache. A full
	// obligations and checkpointing window is well under this.
	seenCacheSize = 8192
)

type Option func(*Relayer)

// WithTickInterval overrides the relay loop cadence.
func WithTickInterval(interval time.Duration) Option {
	return func(r *Relayer) {
		r.tick = interval
	}
}

// Relayer is the glue between verification, the pool and the two
// transports. Incoming votes on either channel are verified and added
// to the pool; Run re-broadcasts accumulated votes on their proper
// channel; OnBlockAdded retires entries the chain has made moot.
type Relayer struct {
	pool    *voting.Pool
	chain   ChainState
	quorums QuorumSource

	flood     network.Gossip
	quorumnet network.Gossip

	// seen caches identities of votes that already passed signature
	// verification, so repeated gossip costs no signature checks.
	seen *lru.Cache

	tick   time.Duration
	logger zerolog.Logger
}

func New(
	net network.Network,
	pool *voting.Pool,
	chain ChainState,
	quorums QuorumSource,
	logger zerolog.Logger,
	opts ...Option,
) (*Relayer, error) {
	flood, err := net.Gossip(network.Flood)
	if err != nil {
		return nil, fmt.Errorf("joining flood channel: %w", err)
	}
	quorumnet, err := net.Gossip(network.Quorumnet)
	if err != nil {
		return nil, fmt.Errorf("joining quorumnet channel: %w", err)
	}
	seen, err := lru.New(seenCacheSize)
	if err != nil {
		return nil, err
	}

	r := &Relayer{
		pool:      pool,
		chain:     chain,
		quorums:   quorums,
		flood:     flood,
		quorumnet: quorumnet,
		seen:      seen,
		tick:      DefaultTickInterval,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	flood.Notify(&channelNotifiee{relayer: r, channel: network.Flood})
	quorumnet.Notify(&channelNotifiee{relayer: r, channel: network.Quorumnet})
	return r, nil
}

// channelNotifiee tags incoming votes with the channel they arrived on.
type channelNotifiee struct {
	relayer *Relayer
	channel network.Channel
}

func (n *channelNotifiee) OnVote(ctx context.Context, vote *voting.Vote) error {
	return n.relayer.handleVote(ctx, n.channel, vote)
}

// handleVote is the receive path: form and age checks, channel
// eligibility, signature verification against the quorum snapshot,
// then pool admission. A non-nil return rejects the vote so the
// transport stops propagating it.
func (r *Relayer) handleVote(ctx context.Context, channel network.Channel, vote *voting.Vote) error {
	votesReceived.WithLabelValues(channel.String()).Inc()

	if err := vote.ValidateForm(); err != nil {
		return r.reject(vote, "malformed", err)
	}

	latestHeight := r.chain.LatestHeight()
	if err := voting.VerifyVoteAge(*vote, latestHeight); err != nil {
		return r.reject(vote, "age", err)
	}

	hfVersion := r.chain.HardForkVersion(vote.BlockHeight)
	if !voting.EligibleForChannel(vote.Type, hfVersion, channel == network.Quorumnet) {
		return r.reject(vote, "channel", fmt.Errorf("%s vote not relayed on %s at version %d", vote.Type, channel, hfVersion))
	}

	key := seenKeyOf(vote)
	if !r.seen.Contains(key) {
		q, err := r.quorums.Quorum(vote.Type, vote.BlockHeight)
		if err != nil {
			return r.reject(vote, "quorum", err)
		}
		if err := voting.VerifyVoteSignature(hfVersion, *vote, q); err != nil {
			return r.reject(vote, "signature", err)
		}
		r.seen.Add(key, struct{}{})
	}

	votes, added := r.pool.AddVoteIfUnique(*vote)
	if !added {
		votesDuplicate.Inc()
		return nil
	}

	r.logger.Debug().
		Stringer("vote", vote).
		Stringer("channel", channel).
		Int("votes", len(votes)).
		Msg("vote accepted")
	return nil
}

func (r *Relayer) reject(vote *voting.Vote, reason string, err error) error {
	votesRejected.WithLabelValues(reason).Inc()
	r.logger.Info().
		Err(err).
		Stringer("vote", vote).
		Msg("invalid vote")
	return err
}

// Run relays pool votes on each tick until the context is cancelled.
// The pass also expires stale pool entries, so a running relayer keeps
// the pool bounded even on a quiet chain.
func (r *Relayer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RelayVotes(ctx)
		}
	}
}

// RelayVotes performs one relay pass over both channels.
func (r *Relayer) RelayVotes(ctx context.Context) {
	height := r.chain.LatestHeight()
	hfVersion := r.chain.HardForkVersion(height)
	r.pool.RemoveExpiredVotes(height)

	r.relayChannel(ctx, r.flood, network.Flood, height, hfVersion, false)
	r.relayChannel(ctx, r.quorumnet, network.Quorumnet, height, hfVersion, true)
}

func (r *Relayer) relayChannel(
	ctx context.Context,
	gossip network.Gossip,
	channel network.Channel,
	height uint64,
	hfVersion uint8,
	quorumRelay bool,
) {
	votes := r.pool.RelayableVotes(height, hfVersion, quorumRelay)
	if len(votes) == 0 {
		return
	}

	sent := make([]voting.Vote, 0, len(votes))
	for i := range votes {
		if err := gossip.BroadcastVote(ctx, &votes[i]); err != nil {
			r.logger.Err(err).
				Stringer("channel", channel).
				Stringer("vote", &votes[i]).
				Msg("broadcasting vote")
			continue
		}
		sent = append(sent, votes[i])
	}

	if len(sent) > 0 {
		r.pool.SetRelayed(sent)
		votesRelayed.WithLabelValues(channel.String()).Add(float64(len(sent)))
		r.logger.Debug().
			Stringer("channel", channel).
			Uint64("height", height).
			Int("votes", len(sent)).
			Msg("relayed votes")
	}
}

// OnBlockAdded retires pool entries made moot by a new block: votes
// outside the retention window and obligations subjects whose state
// change the block committed.
func (r *Relayer) OnBlockAdded(height uint64, txs []ledger.Transaction) {
	hfVersion := r.chain.HardForkVersion(height)
	r.pool.RemoveUsedVotes(txs, hfVersion)
	r.pool.RemoveExpiredVotes(height)
}

func (r *Relayer) Close() error {
	return errors.Join(r.flood.Close(), r.quorumnet.Close())
}

// seenKey captures a vote's full identity, payload included, so two
// different votes from one signer (say conflicting checkpoint hashes)
// occupy separate cache slots. The signature digest is part of the key:
// a cache hit skips verification, so the same identity resent with a
// different signature must miss and be verified afresh.
type seenKey struct {
	quorumType  voting.QuorumType
	height      uint64
	group       quorum.Group
	index       uint16
	workerIndex uint16
	state       ledger.NewState
	reason      uint16
	blockHash   ledger.Hash
	signature   [32]byte
}

func seenKeyOf(vote *voting.Vote) seenKey {
	return seenKey{
		quorumType:  vote.Type,
		height:      vote.BlockHeight,
		group:       vote.Group,
		index:       vote.IndexInGroup,
		workerIndex: vote.StateChange.WorkerIndex,
		state:       vote.StateChange.State,
		reason:      vote.StateChange.Reason,
		blockHash:   vote.Checkpoint.BlockHash,
		signature:   sha256.Sum256(vote.Signature),
	}
}
