package rank

import "strconv"

const (
	tierSpan     = 400
	divisionSpan = 100
)

// Encode maps (tier, division, lp) onto one comparable integer:
//
//	tier*400 + weight(division)*100 + lp   non-apex, weight IV=0..I=3
//	tier*400 + lp                          apex
//
// Apex LP is unbounded, so a large apex LP can spill into the next tier's
// band. Ordering among apex snapshots is therefore approximate.
func Encode(t Tier, d Division, lp int) int {
	if t.Apex() {
		return int(t)*tierSpan + lp
	}
	return int(t)*tierSpan + d.weight()*divisionSpan + lp
}

// Decode is the lossy inverse of Encode, used to label chart axis ticks.
// The tier index is clamped to the valid range; apex values yield only the
// tier name.
func Decode(v int) string {
	idx := v / tierSpan
	if v < 0 {
		idx = 0
	}
	if idx >= TierCount {
		idx = TierCount - 1
	}
	t := Tier(idx)
	if t.Apex() {
		return t.String()
	}
	rem := v % tierSpan
	if rem < 0 {
		rem = 0
	}
	w := rem / divisionSpan
	return t.String() + " " + (DivIV - Division(w)).String()
}

// Code renders the compact tier+division label, e.g. "PIII" or "GM".
func Code(t Tier, d Division) string {
	if t.Apex() {
		return t.Code()
	}
	return t.Code() + d.String()
}

// Short renders a snapshot's rank as a table cell, e.g. "PIII 72LP".
func Short(s Snapshot) string {
	return Code(s.Tier, s.Division) + " " + strconv.Itoa(s.LP) + "LP"
}

// Long renders a snapshot's rank in full, e.g. "PLATINUM III 72LP".
func Long(s Snapshot) string {
	if s.Tier.Apex() {
		return s.Tier.String() + " " + strconv.Itoa(s.LP) + "LP"
	}
	return s.Tier.String() + " " + s.Division.String() + " " + strconv.Itoa(s.LP) + "LP"
}
