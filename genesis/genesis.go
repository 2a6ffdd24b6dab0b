// Package genesis describes the accounts a fresh chain starts with.
package genesis

import (
	"errors"
	"fmt"
	"math/big"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/govm-net/enginetest-support/keys"
)

const (
	DefaultChainName = "casper-execution-engine-testing"
	// DefaultTimestamp is the genesis time in milliseconds
	DefaultTimestamp uint64 = 0
)

var (
	// DefaultAccountSeed is the secret key seed of the default account
	DefaultAccountSeed = [keys.SeedSize]byte{
		199, 199, 199, 199, 199, 199, 199, 199,
		199, 199, 199, 199, 199, 199, 199, 199,
		199, 199, 199, 199, 199, 199, 199, 199,
		199, 199, 199, 199, 199, 199, 199, 199,
	}
	// DefaultAccountBalance is 10^16 motes
	DefaultAccountBalance = new(big.Int).Exp(big.NewInt(10), big.NewInt(16), nil)
)

var (
	ErrNoAccounts       = errors.New("genesis requires at least one account")
	ErrDuplicateAccount = errors.New("duplicate genesis account")
	ErrInvalidBalance   = errors.New("invalid genesis balance")
)

// Account is an account created at genesis
type Account struct {
	PublicKey keys.PublicKey
	Balance   *big.Int
}

// Request configures a genesis run
type Request struct {
	ChainName string
	Timestamp uint64
	Accounts  []Account
}

// Validate checks the request can be applied to an empty state
func (r Request) Validate() error {
	if len(r.Accounts) == 0 {
		return ErrNoAccounts
	}
	seen := make(map[string]bool, len(r.Accounts))
	for _, a := range r.Accounts {
		if a.Balance != nil && a.Balance.Sign() < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidBalance, a.Balance)
		}
		h := a.PublicKey.AccountHash().String()
		if seen[h] {
			return fmt.Errorf("%w: %s", ErrDuplicateAccount, a.PublicKey)
		}
		seen[h] = true
	}
	return nil
}

// DefaultAccountPublicKey returns the public key of the default account
func DefaultAccountPublicKey() keys.PublicKey {
	sk, err := keys.Ed25519FromBytes(DefaultAccountSeed[:])
	if err != nil {
		panic(fmt.Errorf("failed to create default account key: %w", err))
	}
	return keys.PublicKeyFrom(sk)
}

// DefaultRequest funds the default account
func DefaultRequest() Request {
	return Request{
		ChainName: DefaultChainName,
		Timestamp: DefaultTimestamp,
		Accounts: []Account{{
			PublicKey: DefaultAccountPublicKey(),
			Balance:   new(big.Int).Set(DefaultAccountBalance),
		}},
	}
}

// Config is the YAML form of a Request
type Config struct {
	ChainName string          `yaml:"chain_name"`
	Timestamp uint64          `yaml:"timestamp"`
	Accounts  []AccountConfig `yaml:"accounts"`
}

// AccountConfig is one account entry of Config
type AccountConfig struct {
	PublicKey string `yaml:"public_key"` // tag byte followed by the raw key, hex
	Balance   string `yaml:"balance"`    // decimal motes
}

// Request converts the config into a genesis request
func (c Config) Request() (Request, error) {
	req := Request{ChainName: c.ChainName, Timestamp: c.Timestamp}
	if req.ChainName == "" {
		req.ChainName = DefaultChainName
	}
	for i, a := range c.Accounts {
		pk, err := keys.ParsePublicKeyHex(a.PublicKey)
		if err != nil {
			return Request{}, fmt.Errorf("account %d: %w", i, err)
		}
		balance := new(big.Int)
		if a.Balance != "" {
			if _, ok := balance.SetString(a.Balance, 10); !ok {
				return Request{}, fmt.Errorf("account %d: %w: %q", i, ErrInvalidBalance, a.Balance)
			}
		}
		req.Accounts = append(req.Accounts, Account{PublicKey: pk, Balance: balance})
	}
	return req, req.Validate()
}

// ParseConfig decodes a YAML genesis config
func ParseConfig(data []byte) (Request, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Request{}, fmt.Errorf("failed to parse genesis config: %w", err)
	}
	return c.Request()
}

// LoadConfig reads a YAML genesis config from path
func LoadConfig(path string) (Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Request{}, fmt.Errorf("failed to read genesis config: %w", err)
	}
	return ParseConfig(data)
}
