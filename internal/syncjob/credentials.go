package syncjob

import (
	"fmt"

	"github.com/ykovtun/declsync/internal/cryptox"
	"github.com/ykovtun/declsync/internal/gateway"
	"github.com/ykovtun/declsync/internal/store"
)

// Credentials seals and opens company API tokens with a key derived from
// the configured passphrase.
type Credentials struct {
	key []byte
}

// NewCredentials derives the sealing key from passphrase and salt.
func NewCredentials(passphrase string, salt []byte) *Credentials {
	return &Credentials{key: cryptox.DeriveKey([]byte(passphrase), salt)}
}

// Seal encrypts a plaintext token for storage.
func (c *Credentials) Seal(token string) (cipher, nonce []byte, err error) {
	return cryptox.Seal([]byte(token), c.key)
}

// Open recovers the scope credential for a company. A failure here is a
// hard precondition failure: no job may start without a decrypted
// credential.
func (c *Credentials) Open(company *store.Company) (gateway.Credential, error) {
	if len(company.TokenCipher) == 0 {
		return gateway.Credential{}, fmt.Errorf("company %s has no stored credential", company.ID)
	}
	token, err := cryptox.Open(company.TokenCipher, company.TokenNonce, c.key)
	if err != nil {
		return gateway.Credential{}, fmt.Errorf("company %s: %w", company.ID, err)
	}
	return gateway.Credential{CliCode: company.CliCode, Token: string(token)}, nil
}
