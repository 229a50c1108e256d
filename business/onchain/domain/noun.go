package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Account is a chain address as reported by the subgraph (lowercase hex).
type Account struct {
	ID string `json:"id"`
}

// Address returns the account as a checksummed address.
func (a Account) Address() common.Address {
	return common.HexToAddress(a.ID)
}

// Equal compares accounts case-insensitively.
func (a Account) Equal(b Account) bool {
	return strings.EqualFold(a.ID, b.ID)
}

// Seed holds the trait indices that render a Noun. Bounds against the
// trait catalogs are checked by the renderer, not here.
type Seed struct {
	Background int `json:"background"`
	Body       int `json:"body"`
	Accessory  int `json:"accessory"`
	Head       int `json:"head"`
	Glasses    int `json:"glasses"`
}

// Noun is an on-chain Noun token.
type Noun struct {
	ID    string  `json:"id"`
	Owner Account `json:"owner"`
	Seed  Seed    `json:"seed"`
}

// Name is the display name, e.g. "Noun 106".
func (n Noun) Name() string {
	return "Noun " + n.ID
}

// Equal reports whether two snapshots describe the same token state.
func (n Noun) Equal(o Noun) bool {
	return n.ID == o.ID && n.Owner.Equal(o.Owner) && n.Seed == o.Seed
}
