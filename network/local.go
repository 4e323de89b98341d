package network

import (
	"context"
	"sync"

	"github.com/quenero/masternodes/voting"
)

// LocalHub is an in process transport connecting any number of
// LocalNetwork peers, one topic per channel. Used in tests and local
// simulations; delivery is synchronous and every peer, including the
// broadcaster, receives each vote.
type LocalHub struct {
	mtx    sync.Mutex
	topics map[Channel][]*LocalGossip
}

func NewLocalHub() *LocalHub {
	return &LocalHub{
		topics: make(map[Channel][]*LocalGossip),
	}
}

// Peer returns a Network joined to the hub.
func (h *LocalHub) Peer() Network {
	return &LocalNetwork{hub: h}
}

func (h *LocalHub) join(channel Channel, gossip *LocalGossip) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	h.topics[channel] = append(h.topics[channel], gossip)
}

func (h *LocalHub) leave(channel Channel, gossip *LocalGossip) {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	subscribed := h.topics[channel]
	for i, g := range subscribed {
		if g == gossip {
			h.topics[channel] = append(subscribed[:i], subscribed[i+1:]...)
			return
		}
	}
}

func (h *LocalHub) broadcast(ctx context.Context, channel Channel, vote *voting.Vote) error {
	h.mtx.Lock()
	subscribed := make([]*LocalGossip, len(h.topics[channel]))
	copy(subscribed, h.topics[channel])
	h.mtx.Unlock()

	for _, gossip := range subscribed {
		if err := gossip.deliver(ctx, vote); err != nil {
			return err
		}
	}
	return nil
}

type LocalNetwork struct {
	hub *LocalHub
}

func (n *LocalNetwork) Gossip(channel Channel) (Gossip, error) {
	gossip := &LocalGossip{hub: n.hub, channel: channel}
	n.hub.join(channel, gossip)
	return gossip, nil
}

type LocalGossip struct {
	hub     *LocalHub
	channel Channel

	mtx      sync.Mutex
	notifiee Notifiee
}

func (g *LocalGossip) BroadcastVote(ctx context.Context, vote *voting.Vote) error {
	return g.hub.broadcast(ctx, g.channel, vote)
}

func (g *LocalGossip) Notify(notifiee Notifiee) {
	g.mtx.Lock()
	defer g.mtx.Unlock()
	g.notifiee = notifiee
}

func (g *LocalGossip) deliver(ctx context.Context, vote *voting.Vote) error {
	g.mtx.Lock()
	notifiee := g.notifiee
	g.mtx.Unlock()
	if notifiee == nil {
		return nil
	}
	// each peer gets its own copy so notifiees cannot mutate shared state
	v := *vote
	return notifiee.OnVote(ctx, &v)
}

func (g *LocalGossip) Close() error {
	g.hub.leave(g.channel, g)
	return nil
}
