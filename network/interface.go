package network

import (
	"context"
	"fmt"
	"io"

	"github.com/quenero/masternodes/voting"
)

// Channel names one of the two independent vote transports. Flood is
// the general peer gossip every node participates in; Quorumnet is the
// dedicated channel reaching only current quorum members.
type Channel uint8

const (
	Flood Channel = iota + 1
	Quorumnet
)

func (c Channel) String() string {
	switch c {
	case Flood:
		return "flood"
	case Quorumnet:
		return "quorumnet"
	default:
		panic(fmt.Sprintf("unhandled relay channel %d", uint8(c)))
	}
}

type Network interface {
	Gossip(Channel) (Gossip, error)
}

// Gossip is an interface which allows the voting subsystem to both
// broadcast and receive votes on one channel. It must eventually
// propagate votes to all non-faulty nodes subscribed to the channel;
// whether that is simple flooding or something cleverer is left to the
// implementer.
type Gossip interface {
	io.Closer
	Broadcaster
	Notifier
}

type Broadcaster interface {
	BroadcastVote(context.Context, *voting.Vote) error
}

type Notifier interface {
	// Notify registers a Notifiee wishing to receive incoming votes.
	// Any non-nil error returned from OnVote rejects the vote as
	// invalid and stops its propagation.
	Notify(Notifiee)
}

type Notifiee interface {
	OnVote(context.Context, *voting.Vote) error
}
