package rank

import "fmt"

// DeltaKind classifies the outcome of comparing two snapshots.
type DeltaKind int

const (
	// DeltaMissing: there is no "to" snapshot, nothing to compare.
	DeltaMissing DeltaKind = iota
	// DeltaNoHistory: "to" exists but "from" does not.
	DeltaNoHistory
	// DeltaNoChange: same tier, division and LP.
	DeltaNoChange
	// DeltaLP: same tier and division, LP moved.
	DeltaLP
	// DeltaTransition: tier or division changed.
	DeltaTransition
)

const (
	TextMissing   = "-"
	TextNoHistory = "no history"
	TextNoChange  = "no change, ±0 LP"
)

// Delta is the structured result of Diff.
type Delta struct {
	Kind DeltaKind
	From string // compact rank code of the older snapshot
	To   string // compact rank code of the newer snapshot
	// LP is the signed change. For transitions it is the ordinal difference,
	// since a promotion or demotion resets the provider's LP baseline.
	LP int
}

// Diff compares an older snapshot with a newer one. Either may be nil.
func Diff(from, to *Snapshot) Delta {
	if to == nil {
		return Delta{Kind: DeltaMissing}
	}
	toCode := Code(to.Tier, to.Division)
	if from == nil {
		return Delta{Kind: DeltaNoHistory, To: toCode}
	}
	d := Delta{From: Code(from.Tier, from.Division), To: toCode}
	if from.Tier == to.Tier && from.Division == to.Division {
		d.LP = to.LP - from.LP
		if d.LP == 0 {
			d.Kind = DeltaNoChange
		} else {
			d.Kind = DeltaLP
		}
		return d
	}
	d.Kind = DeltaTransition
	d.LP = to.Ordinal() - from.Ordinal()
	return d
}

// Text renders the bare delta, e.g. "+12 LP" or "DII⇒DI, +56 LP".
func (d Delta) Text() string {
	switch d.Kind {
	case DeltaMissing:
		return TextMissing
	case DeltaNoHistory:
		return TextNoHistory
	case DeltaNoChange:
		return TextNoChange
	case DeltaLP:
		return signedLP(d.LP)
	default:
		return d.From + "⇒" + d.To + ", " + signedLP(d.LP)
	}
}

// Format renders the delta with an optional leading label, e.g.
// "vs prev day: +12 LP". An empty label yields the bare text. The missing
// placeholder is never labeled.
func (d Delta) Format(label string) string {
	if label == "" || d.Kind == DeltaMissing {
		return d.Text()
	}
	return label + ": " + d.Text()
}

func signedLP(n int) string {
	if n == 0 {
		return "±0 LP"
	}
	return fmt.Sprintf("%+d LP", n)
}
