package cas

import (
	"encoding/hex"
	"testing"

	"github.com/zeebo/blake3"
)

func TestHash(t *testing.T) {
	data := []byte("Solver 1 :: Reference Norm = 1.0")
	sum := blake3.Sum256(data)
	want := hex.EncodeToString(sum[:])

	if got := Hash(data); got != want {
		t.Errorf("Hash() = %s, want %s", got, want)
	}
	if got := HashString(string(data)); got != want {
		t.Errorf("HashString() = %s, want %s", got, want)
	}
	if !isValidHash(want) {
		t.Errorf("isValidHash(%s) = false", want)
	}
}

func TestShortID(t *testing.T) {
	id := ShortID("cases/heat/case.sif")
	if len(id) != ShortIDLen {
		t.Fatalf("len(ShortID()) = %d, want %d", len(id), ShortIDLen)
	}
	if id != HashString("cases/heat/case.sif")[:ShortIDLen] {
		t.Errorf("ShortID() = %s is not a digest prefix", id)
	}
	if ShortID("cases/flow/case.sif") == id {
		t.Error("different keys gave the same short id")
	}
	if ShortID("cases/heat/case.sif") != id {
		t.Error("ShortID() is not deterministic")
	}
}

func TestVerify(t *testing.T) {
	data := []byte("End")
	if !Verify(data, Hash(data)) {
		t.Error("Verify() = false for matching hash")
	}
	if Verify([]byte("end"), Hash(data)) {
		t.Error("Verify() = true for different content")
	}
}
