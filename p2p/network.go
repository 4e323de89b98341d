package p2p

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/quenero/masternodes/network"
	"github.com/quenero/masternodes/voting"
)

var _ network.Network = (*Network)(nil)

// topic names are prefixed so vote traffic cannot collide with other
// protocols sharing the same pubsub router.
const topicPrefix = "quenero/votes/"

type Network struct {
	ps *pubsub.PubSub
}

func NewNetwork(ps *pubsub.PubSub) network.Network {
	return &Network{
		ps: ps,
	}
}

func (pn *Network) Gossip(channel network.Channel) (network.Gossip, error) {
	topic, err := pn.ps.Join(topicPrefix + channel.String())
	if err != nil {
		return nil, err
	}

	pg := &Gossip{
		ps: pn.ps,
		tp: topic,
	}
	pg.ensureSubscribed()
	return pg, nil
}

type Gossip struct {
	ps  *pubsub.PubSub
	tp  *pubsub.Topic
	sub *pubsub.Subscription
}

func (g *Gossip) BroadcastVote(ctx context.Context, vote *voting.Vote) error {
	data, err := json.Marshal(vote)
	if err != nil {
		return err
	}

	// so that we publish when we have at least one peer
	opt := pubsub.WithReadiness(pubsub.MinTopicSize(1))
	return g.tp.Publish(ctx, data, opt)
}

func (g *Gossip) Notify(notifiee network.Notifiee) {
	// error can be safely ignored
	_ = g.ps.RegisterTopicValidator(g.tp.String(), func(ctx context.Context, _ peer.ID, pmsg *pubsub.Message) pubsub.ValidationResult {
		var vote voting.Vote
		if err := json.Unmarshal(pmsg.Data, &vote); err != nil {
			return pubsub.ValidationReject
		}

		if err := notifiee.OnVote(ctx, &vote); err != nil {
			return pubsub.ValidationReject
		}

		return pubsub.ValidationAccept
	})
}

func (g *Gossip) Close() (err error) {
	if g.sub != nil {
		g.sub.Cancel()
	}
	err = errors.Join(err, g.ps.UnregisterTopicValidator(g.tp.String()))
	err = errors.Join(err, g.tp.Close())
	return err
}

// ensureSubscribed maintains one and only subscription for the topic.
// PubSub requires at least one subscription in order to work correctly.
// The Network interface does not need the notion of subscribers and
// relies only on validators.
func (g *Gossip) ensureSubscribed() {
	sub, err := g.tp.Subscribe()
	if err != nil {
		return // safe to ignore
	}
	g.sub = sub

	go func() {
		for {
			_, err := sub.Next(context.Background())
			if err != nil {
				// happens when subscription is canceled
				return
			}
			// simply ignore messages
		}
	}()
}
