package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	votesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "masternodes",
		Subsystem: "relay",
		Name:      "votes_received_total",
		Help:      "Votes received from the network, by channel.",
	}, []string{"channel"})

	votesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "masternodes",
		Subsystem: "relay",
		Name:      "votes_rejected_total",
		Help:      "Votes that failed verification, by reason.",
	}, []string{"reason"})

	votesDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "masternodes",
		Subsystem: "relay",
		Name:      "votes_duplicate_total",
		Help:      "Valid votes already held by the pool.",
	})

	votesRelayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "masternodes",
		Subsystem: "relay",
		Name:      "votes_relayed_total",
		Help:      "Votes broadcast to the network, by channel.",
	}, []string{"channel"})
)
