package rates

// Voice pricing is expressed in provider-agnostic credits. A tier carries an
// integer credit-per-minute multiplier; BLOCKED means the destination cannot
// be called at all.
//
// Tiers are configuration-like and immutable. No code outside this package
// should construct a Tier.

type TierID string

const (
	TierStandard TierID = "STANDARD"
	TierPremium  TierID = "PREMIUM"
	TierUltra    TierID = "ULTRA"
	TierBlocked  TierID = "BLOCKED"
)

type Tier struct {
	ID         TierID `json:"id"`
	Multiplier int64  `json:"multiplier"`
}

var tiers = map[TierID]Tier{
	TierStandard: {ID: TierStandard, Multiplier: 1},
	TierPremium:  {ID: TierPremium, Multiplier: 5},
	TierUltra:    {ID: TierUltra, Multiplier: 10},
	TierBlocked:  {ID: TierBlocked, Multiplier: 0},
}

// Blocked reports whether calls to this tier are forbidden.
func (t Tier) Blocked() bool { return t.ID == TierBlocked }
