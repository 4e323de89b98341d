package quorum

import (
	"github.com/quenero/masternodes/pkg/keys"
)

// TestQuorum is a quorum with freshly generated keypairs, retaining the
// private halves so tests can produce valid votes for any member.
type TestQuorum struct {
	*Quorum

	ValidatorKeys []*keys.Keys
	WorkerKeys    []*keys.Keys
}

func NewTestQuorum(validators, workers int) *TestQuorum {
	tq := &TestQuorum{
		ValidatorKeys: make([]*keys.Keys, validators),
		WorkerKeys:    make([]*keys.Keys, workers),
	}
	validatorPubs := make([][]byte, validators)
	workerPubs := make([][]byte, workers)
	for i := range tq.ValidatorKeys {
		tq.ValidatorKeys[i] = keys.Generate()
		validatorPubs[i] = tq.ValidatorKeys[i].Public()
	}
	for i := range tq.WorkerKeys {
		tq.WorkerKeys[i] = keys.Generate()
		workerPubs[i] = tq.WorkerKeys[i].Public()
	}
	tq.Quorum = New(validatorPubs, workerPubs, DefaultVerifyFunc())
	return tq
}
