package chain

import "github.com/trinity-chain/trinitynode/pkg/types"

// State holds the current chain tip state that isn't derivable by reading a
// single block: how much reward area has been minted so far, and how much
// accumulated proof-of-work sits behind the tip (tracked only; fork choice
// compares branch heights).
type State struct {
	Height               uint64
	TipHash              types.Hash
	TipTimestamp         int64
	Supply               uint64
	CumulativeDifficulty uint64
}

// IsGenesis reports whether no blocks have been processed yet.
func (s *State) IsGenesis() bool {
	return s.Height == 0 && s.TipHash.IsZero()
}
