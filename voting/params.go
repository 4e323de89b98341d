package voting

import "time"

// Protocol constants governing vote lifetime, relay cadence and quorum
// thresholds. The numeric values are network parameters; change them in
// lockstep across the network or votes stop cross validating.
const (
	// VoteLifetime is how many blocks behind the chain tip a vote stays
	// actionable. Votes outside the window are rejected on receipt and
	// expired from the pool.
	VoteLifetime uint64 = 60

	// RelayInterval throttles how often the same pool entry is offered
	// to the transport again.
	RelayInterval = 2 * time.Minute

	// The supermajority fraction of a validator group that must sign
	// before an aggregate is accepted: strictly more than 60%, i.e.
	// 7 of 10 for obligations quorums, 13 of 20 for checkpoints.
	supermajorityNumerator   = 6
	supermajorityDenominator = 10

	// Minimum group sizes below which a pulse quorum cannot reach its
	// signature threshold and must not be used.
	PulseMinValidators = 7
	PulseMinWorkers    = 1
)

// RequiredVotes returns the number of validator signatures an aggregate
// needs for the given validator group size.
func RequiredVotes(validatorGroupSize int) int {
	return validatorGroupSize*supermajorityNumerator/supermajorityDenominator + 1
}
