package keys

import (
	"crypto/ed25519"
)

// Keys holds a masternode's ed25519 keypair. It is the signing capability
// used for producing quorum votes. Custody concerns such as double-sign
// protection belong to the layer wrapping this type.
type Keys struct {
	publicKey  ed25519.PublicKey
	privateKey ed25519.PrivateKey
}

// Generate creates a fresh random keypair. It panics if the system
// source of randomness fails.
func Generate() *Keys {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	return &Keys{
		publicKey:  pub,
		privateKey: priv,
	}
}

// FromSeed derives a keypair deterministically from a 32 byte seed.
func FromSeed(seed []byte) *Keys {
	priv := ed25519.NewKeyFromSeed(seed)
	return &Keys{
		publicKey:  priv.Public().(ed25519.PublicKey),
		privateKey: priv,
	}
}

// Public returns the raw public key used to identify the masternode
// within a quorum's membership list.
func (k *Keys) Public() []byte {
	return k.publicKey
}

func (k *Keys) Sign(msg []byte) []byte {
	return ed25519.Sign(k.privateKey, msg)
}
