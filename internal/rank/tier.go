// Package rank models competitive rank snapshots and the derived values the
// reports are built from: the ordinal encoding, rank deltas and win/loss
// records.
package rank

import (
	"fmt"
	"strconv"
	"strings"
)

// Tier is one of the ten ordered competitive bands, lowest first.
type Tier int

const (
	Iron Tier = iota
	Bronze
	Silver
	Gold
	Platinum
	Emerald
	Diamond
	Master
	Grandmaster
	Challenger
)

// TierCount is the number of valid tiers.
const TierCount = 10

var tierNames = [TierCount]string{
	"IRON", "BRONZE", "SILVER", "GOLD", "PLATINUM",
	"EMERALD", "DIAMOND", "MASTER", "GRANDMASTER", "CHALLENGER",
}

var tierCodes = [TierCount]string{"I", "B", "S", "G", "P", "E", "D", "M", "GM", "C"}

func (t Tier) Valid() bool { return t >= Iron && t <= Challenger }

// Apex reports whether the tier carries no division.
func (t Tier) Apex() bool { return t >= Master && t <= Challenger }

func (t Tier) String() string {
	if !t.Valid() {
		return "UNKNOWN"
	}
	return tierNames[t]
}

// Code is the compact label used in table cells ("P", "GM", ...).
func (t Tier) Code() string {
	if !t.Valid() {
		return "?"
	}
	return tierCodes[t]
}

// ParseTier accepts provider spellings case-insensitively.
func ParseTier(s string) (Tier, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range tierNames {
		if u == n {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("rank: unknown tier %q", s)
}

// Division is the in-game division number: 1 (I, highest) to 4 (IV, lowest).
// NoDivision is used for apex tiers.
type Division int

const (
	NoDivision Division = 0
	DivI       Division = 1
	DivII      Division = 2
	DivIII     Division = 3
	DivIV      Division = 4
)

var divisionNames = [...]string{"", "I", "II", "III", "IV"}

func (d Division) Valid() bool { return d >= DivI && d <= DivIV }

func (d Division) String() string {
	if !d.Valid() {
		return ""
	}
	return divisionNames[d]
}

// weight orders divisions inside a tier: IV=0 ... I=3.
func (d Division) weight() int {
	if !d.Valid() {
		return 0
	}
	return int(DivIV - d)
}

// ParseDivision accepts roman ("III") or arabic ("3") spellings. Empty input
// yields NoDivision.
func ParseDivision(s string) (Division, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	if u == "" {
		return NoDivision, nil
	}
	for i := 1; i < len(divisionNames); i++ {
		if u == divisionNames[i] {
			return Division(i), nil
		}
	}
	if n, err := strconv.Atoi(u); err == nil && n >= 1 && n <= 4 {
		return Division(n), nil
	}
	return NoDivision, fmt.Errorf("rank: unknown division %q", s)
}
