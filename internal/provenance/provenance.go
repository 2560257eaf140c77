// Package provenance builds tamper-evident, signed summaries of refinement
// traces: a Merkle root over a batch of RefinementRecords, wrapped in a
// signed claim a verifier can check without re-deriving the whole trace.
package provenance

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/aporia-systems/aporia/internal/state"
)

// RecordHash produces a length-prefixed SHA-256 leaf hash for a single
// RefinementRecord, following the same field-length-prefix convention the
// teacher's integrity package uses for decision content hashes: it avoids
// delimiter collisions when claim/notes text contains arbitrary characters.
func RecordHash(rec state.RefinementRecord) string {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(rec.Operator)
	writeField(string(rec.Target))
	writeField(string(rec.Ctx))
	writeField(rec.Time.UTC().Format(time.RFC3339Nano))
	writeField(strconv.FormatFloat(rec.BeforeNuRaw, 'f', -1, 64))
	writeField(strconv.FormatFloat(rec.BeforeNu, 'f', -1, 64))
	writeField(strconv.FormatFloat(rec.AfterNuRaw, 'f', -1, 64))
	writeField(strconv.FormatFloat(rec.AfterNu, 'f', -1, 64))
	writeField(rec.Notes)
	return hex.EncodeToString(h.Sum(nil))
}

func hashPair(a, b string) string {
	h := sha256.New()
	h.Write([]byte{0x01}) // internal node domain separator, per RFC 6962
	aBytes := []byte(a)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(aBytes)))
	h.Write(lenBuf[:])
	h.Write(aBytes)
	h.Write([]byte(b))
	return hex.EncodeToString(h.Sum(nil))
}

// BuildMerkleRoot constructs a Merkle tree from leaf hashes (which must
// already be in the caller's canonical order) and returns the root. An odd
// node at any level is paired with itself.
func BuildMerkleRoot(leaves []string) string {
	if len(leaves) == 0 {
		return ""
	}
	if len(leaves) == 1 {
		return leaves[0]
	}

	level := make([]string, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		var next []string
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

// BatchRoot hashes every record in records (in order) and returns the
// Merkle root over the resulting leaves.
func BatchRoot(records []state.RefinementRecord) string {
	leaves := make([]string, len(records))
	for i, rec := range records {
		leaves[i] = RecordHash(rec)
	}
	return BuildMerkleRoot(leaves)
}

// BatchClaims extends jwt.RegisteredClaims with the fields a provenance
// batch signature needs to be independently verifiable.
type BatchClaims struct {
	jwt.RegisteredClaims
	MerkleRoot  string `json:"merkle_root"`
	RecordCount int    `json:"record_count"`
}

// Signer signs and verifies provenance batches with Ed25519, adapted from
// the teacher's JWTManager (repurposed from agent-session tokens to
// refinement-trace batches).
type Signer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// NewSigner loads an Ed25519 key pair from PEM files, or generates an
// ephemeral pair for development if either path is empty.
func NewSigner(privateKeyPath, publicKeyPath string) (*Signer, error) {
	if privateKeyPath == "" || publicKeyPath == "" {
		slog.Warn("provenance: no signing key files configured, generating ephemeral key pair (not for production)")
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("provenance: generate key pair: %w", err)
		}
		return &Signer{privateKey: priv, publicKey: pub}, nil
	}

	privPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("provenance: read private key: %w", err)
	}
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return nil, fmt.Errorf("provenance: decode private key PEM")
	}
	privKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("provenance: parse private key: %w", err)
	}
	edPriv, ok := privKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("provenance: private key is not Ed25519")
	}

	pubPEM, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("provenance: read public key: %w", err)
	}
	pubBlock, _ := pem.Decode(pubPEM)
	if pubBlock == nil {
		return nil, fmt.Errorf("provenance: decode public key PEM")
	}
	pubKey, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, fmt.Errorf("provenance: parse public key: %w", err)
	}
	edPub, ok := pubKey.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("provenance: public key is not Ed25519")
	}

	return &Signer{privateKey: edPriv, publicKey: edPub}, nil
}

// SignBatch builds the Merkle root over records and returns a signed JWT
// attesting to it.
func (s *Signer) SignBatch(records []state.RefinementRecord) (string, error) {
	root := BatchRoot(records)
	now := time.Now().UTC()

	claims := BatchClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   "aporia",
			Audience: jwt.ClaimStrings{"aporia"},
			IssuedAt: jwt.NewNumericDate(now),
			ID:       uuid.New().String(),
		},
		MerkleRoot:  root,
		RecordCount: len(records),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.privateKey)
}

// VerifyBatch checks that token was signed by s and that its claimed root
// matches the root recomputed from records.
func (s *Signer) VerifyBatch(token string, records []state.RefinementRecord) (bool, error) {
	parsed, err := jwt.ParseWithClaims(token, &BatchClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("provenance: unexpected signing method: %v", t.Header["alg"])
		}
		return s.publicKey, nil
	}, jwt.WithAudience("aporia"))
	if err != nil {
		return false, fmt.Errorf("provenance: verify batch: %w", err)
	}

	claims, ok := parsed.Claims.(*BatchClaims)
	if !ok || !parsed.Valid {
		return false, fmt.Errorf("provenance: invalid batch claims")
	}

	if claims.RecordCount != len(records) {
		return false, nil
	}
	return claims.MerkleRoot == BatchRoot(records), nil
}
