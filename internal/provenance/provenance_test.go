package provenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aporia-systems/aporia/internal/state"
)

func sampleRecords() []state.RefinementRecord {
	return []state.RefinementRecord{
		{Operator: "Incorporate", Target: "t1", Ctx: "c1", Time: time.Unix(1000, 0), BeforeNuRaw: 1, AfterNuRaw: 0.7},
		{Operator: "Conflict", Target: "t1", Ctx: "c1", Time: time.Unix(1001, 0), BeforeNuRaw: 0.7, AfterNuRaw: 0.7},
	}
}

func TestBatchRootIsDeterministic(t *testing.T) {
	r1 := BatchRoot(sampleRecords())
	r2 := BatchRoot(sampleRecords())
	assert.Equal(t, r1, r2)
	assert.NotEmpty(t, r1)
}

func TestBatchRootChangesWithRecordContent(t *testing.T) {
	recs := sampleRecords()
	r1 := BatchRoot(recs)
	recs[0].AfterNuRaw = 0.5
	r2 := BatchRoot(recs)
	assert.NotEqual(t, r1, r2)
}

func TestBuildMerkleRootSingleLeafIsItself(t *testing.T) {
	assert.Equal(t, "abc", BuildMerkleRoot([]string{"abc"}))
}

func TestBuildMerkleRootEmptyIsEmpty(t *testing.T) {
	assert.Equal(t, "", BuildMerkleRoot(nil))
}

func TestSignAndVerifyBatchRoundTrips(t *testing.T) {
	signer, err := NewSigner("", "")
	require.NoError(t, err)

	records := sampleRecords()
	token, err := signer.SignBatch(records)
	require.NoError(t, err)

	ok, err := signer.VerifyBatch(token, records)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyBatchRejectsTamperedRecords(t *testing.T) {
	signer, err := NewSigner("", "")
	require.NoError(t, err)

	records := sampleRecords()
	token, err := signer.SignBatch(records)
	require.NoError(t, err)

	records[0].AfterNuRaw = 0.1
	ok, err := signer.VerifyBatch(token, records)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyBatchRejectsWrongSigner(t *testing.T) {
	signerA, err := NewSigner("", "")
	require.NoError(t, err)
	signerB, err := NewSigner("", "")
	require.NoError(t, err)

	records := sampleRecords()
	token, err := signerA.SignBatch(records)
	require.NoError(t, err)

	_, err = signerB.VerifyBatch(token, records)
	assert.Error(t, err)
}

func TestSealOpenRoundTrips(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("refinement trace export")

	sealed, err := Seal(key, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := Open(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	key := make([]byte, 32)
	sealed, err := Seal(key, []byte("data"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xFF

	_, err = Open(key, sealed)
	assert.Error(t, err)
}
