package chain

// Reward schedule: the block subsidy halves every RewardHalvingInterval
// blocks, the same geometric decay Bitcoin popularized, stopping mint
// entirely once MaxHalvings has elapsed. Values are reward-area units (the
// same unit Coinbase.RewardArea is denominated in), not wei or satoshis.
const (
	InitialReward         = 1000
	RewardHalvingInterval = 210_000
	MaxHalvings           = 64
	MaxSupply             = InitialReward * RewardHalvingInterval * 2
)

// BlockReward returns the maximum coinbase reward area a block at height may
// mint, before transaction fees are added on top. It halves every
// RewardHalvingInterval blocks and drops to zero once the reward has halved
// MaxHalvings times (the point at which InitialReward>>halvings underflows
// to 0 anyway, but the explicit cap keeps the intent obvious).
func BlockReward(height uint64) uint64 {
	halvings := height / RewardHalvingInterval
	if halvings >= MaxHalvings {
		return 0
	}
	return InitialReward >> halvings
}

// HalvingEra returns which halving period a height falls in (0 = first era).
func HalvingEra(height uint64) uint64 {
	return height / RewardHalvingInterval
}

// BlocksUntilNextHalving returns how many blocks remain before the next
// subsidy halving, as seen from height.
func BlocksUntilNextHalving(height uint64) uint64 {
	return RewardHalvingInterval - (height % RewardHalvingInterval)
}
