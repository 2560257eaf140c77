package aporia

import "github.com/aporia-systems/aporia/internal/provenance"

// BatchRoot hashes every record in records (in order) and returns the
// Merkle root over the resulting leaves.
func BatchRoot(records []RefinementRecord) string {
	return provenance.BatchRoot(records)
}

// Signer signs and verifies provenance batches with Ed25519, so a host can
// export a trace and let a verifier confirm it hasn't been tampered with
// after it left the engine.
type Signer = provenance.Signer

// NewSigner loads an Ed25519 key pair from PEM files, or generates an
// ephemeral pair for development if either path is empty.
func NewSigner(privateKeyPath, publicKeyPath string) (*Signer, error) {
	return provenance.NewSigner(privateKeyPath, publicKeyPath)
}

// Seal encrypts plaintext (a marshaled provenance batch export) under key
// with ChaCha20-Poly1305, for hosts that want to hand a trace bundle to an
// untrusted transport without exposing claim text.
func Seal(key, plaintext []byte) ([]byte, error) {
	return provenance.Seal(key, plaintext)
}

// Open decrypts a bundle produced by Seal.
func Open(key, sealed []byte) ([]byte, error) {
	return provenance.Open(key, sealed)
}
