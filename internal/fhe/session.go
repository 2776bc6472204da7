package fhe

import "time"

// Permit is the signed authorization returned by the encryption
// service. Its holder may request decryption of their own ciphertext
// handles within the bound contract domain.
type Permit struct {
	Issuer            string `json:"issuer"`
	ChainID           uint64 `json:"chainId"`
	VerifyingContract string `json:"verifyingContract"`
	PublicKey         string `json:"publicKey"`
}

// Session is one live privacy-session credential for one identity.
type Session struct {
	SessionID string    `json:"sessionId"`
	Permit    Permit    `json:"permit"`
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session is past its expiry at the given
// instant.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
