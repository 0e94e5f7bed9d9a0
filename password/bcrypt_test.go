package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	b, err := NewBcrypt(Config{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("new bcrypt: %v", err)
	}

	hash, err := b.Hash("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatal("hash equals plaintext")
	}

	ok, err := b.Verify("correct horse battery", hash)
	if err != nil || !ok {
		t.Fatalf("verify correct = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = b.Verify("wrong password!", hash)
	if err != nil {
		t.Fatalf("verify wrong returned error: %v", err)
	}
	if ok {
		t.Fatal("verify accepted wrong password")
	}
}

func TestHashesAreSalted(t *testing.T) {
	b, _ := NewBcrypt(Config{Cost: bcrypt.MinCost})

	h1, err := b.Hash("same password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := b.Hash("same password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestHashRejectsShortPassword(t *testing.T) {
	b, _ := NewBcrypt(Config{Cost: bcrypt.MinCost})

	if _, err := b.Hash("short"); err == nil {
		t.Fatal("accepted password under 8 bytes")
	}
}

func TestVerifyGarbageHash(t *testing.T) {
	b, _ := NewBcrypt(Config{Cost: bcrypt.MinCost})

	if _, err := b.Verify("whatever pass", "not-a-bcrypt-hash"); err == nil {
		t.Fatal("garbage hash produced no error")
	}
}

func TestRawBytesNoNormalization(t *testing.T) {
	b, _ := NewBcrypt(Config{Cost: bcrypt.MinCost})

	// NFC vs NFD spellings of the same visible string: distinct byte
	// sequences must not verify against each other.
	nfc := "caf\u00e9-padding"
	nfd := "cafe\u0301-padding"

	hash, err := b.Hash(nfc)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := b.Verify(nfd, hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("normalized variant verified; passwords must be raw bytes")
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, _ := NewBcrypt(Config{Cost: bcrypt.MinCost})
	strong, _ := NewBcrypt(Config{Cost: bcrypt.MinCost + 2})

	hash, err := weak.Hash("some password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	upgrade, err := strong.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("needs upgrade: %v", err)
	}
	if !upgrade {
		t.Fatal("low-cost hash not flagged for upgrade")
	}

	upgrade, err = weak.NeedsUpgrade(hash)
	if err != nil {
		t.Fatalf("needs upgrade: %v", err)
	}
	if upgrade {
		t.Fatal("matching-cost hash flagged for upgrade")
	}
}

func TestNewBcryptValidatesCost(t *testing.T) {
	if _, err := NewBcrypt(Config{Cost: bcrypt.MaxCost + 1}); err == nil {
		t.Fatal("accepted cost above maximum")
	}

	b, err := NewBcrypt(Config{})
	if err != nil {
		t.Fatalf("zero cost rejected: %v", err)
	}
	hash, err := b.Hash(strings.Repeat("p", 16))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Fatalf("cost = %d, want default %d", cost, bcrypt.DefaultCost)
	}
}
