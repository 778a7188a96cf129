package roster

import "testing"

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewPasswordHasher()

	hash, err := hasher.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Error("hash must not equal the plaintext password")
	}

	if !hasher.Verify("correct horse battery staple", hash) {
		t.Error("Verify() = false for the correct password")
	}
	if hasher.Verify("wrong password", hash) {
		t.Error("Verify() = true for a wrong password")
	}
}

func TestPasswordHasher_HashesDiffer(t *testing.T) {
	hasher := NewPasswordHasher()

	h1, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := hasher.Hash("same password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	// bcrypt salts every hash, so two hashes of one password differ.
	if h1 == h2 {
		t.Error("expected distinct hashes for the same password")
	}
}
