package cryptox

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatal(err)
	}
	key := DeriveKey([]byte("passphrase"), salt)

	ciphertext, nonce, err := Seal([]byte("api-token-value"), key)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(ciphertext, []byte("api-token-value")) {
		t.Error("ciphertext leaks plaintext")
	}

	plain, err := Open(ciphertext, nonce, key)
	if err != nil {
		t.Fatal(err)
	}
	if string(plain) != "api-token-value" {
		t.Errorf("plaintext = %q", plain)
	}
}

func TestOpenWrongKey(t *testing.T) {
	salt, _ := NewSalt()
	key := DeriveKey([]byte("right"), salt)
	wrong := DeriveKey([]byte("wrong"), salt)

	ciphertext, nonce, err := Seal([]byte("secret"), key)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Open(ciphertext, nonce, wrong); !errors.Is(err, ErrDecrypt) {
		t.Errorf("err = %v, want ErrDecrypt", err)
	}
}

func TestOpenTamperedCiphertext(t *testing.T) {
	salt, _ := NewSalt()
	key := DeriveKey([]byte("pass"), salt)

	ciphertext, nonce, err := Seal([]byte("secret"), key)
	if err != nil {
		t.Fatal(err)
	}
	ciphertext[0] ^= 0xFF
	if _, err := Open(ciphertext, nonce, key); !errors.Is(err, ErrDecrypt) {
		t.Errorf("err = %v, want ErrDecrypt", err)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt, _ := NewSalt()
	k1 := DeriveKey([]byte("p"), salt)
	k2 := DeriveKey([]byte("p"), salt)
	if !bytes.Equal(k1, k2) {
		t.Error("same inputs should derive the same key")
	}
	if len(k1) != 32 {
		t.Errorf("key length = %d, want 32", len(k1))
	}

	otherSalt, _ := NewSalt()
	if bytes.Equal(k1, DeriveKey([]byte("p"), otherSalt)) {
		t.Error("different salts should derive different keys")
	}
}
