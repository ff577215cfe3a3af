package tzbaker

import (
	"fmt"
	"log/slog"
)

// ChainContext selects which watermark record a chain is tracked under.
type ChainContext int

const (
	ChainMain ChainContext = iota
	ChainTest
)

func (c ChainContext) String() string {
	if c == ChainMain {
		return "main"
	}
	return "test"
}

// IsValidLevel reports whether level fits the 31 bit range of block levels.
func IsValidLevel(level uint32) bool {
	return level&0x80000000 == 0
}

// Permits reports whether signing at (level, round) keeps the watermark
// strictly increasing. A block and an attestation may share one
// (level, round), the attestation coming second.
func (w HighWatermark) Permits(level, round uint32, isAttestation bool) bool {
	switch {
	case level > w.HighestLevel:
		return true
	case level < w.HighestLevel:
		return false
	case round > w.HighestRound:
		return true
	case round < w.HighestRound:
		return false
	default:
		return isAttestation && !w.HadAttestation
	}
}

// Guard owns the persisted security state. It is the only writer of the
// baking key and the watermarks.
type Guard struct {
	store Store
	state Nvram
}

func NewGuard(store Store) (*Guard, error) {
	state, err := store.Load()
	if err != nil {
		return nil, err
	}
	return &Guard{store: store, state: state}, nil
}

// State returns a copy of the persisted state.
func (g *Guard) State() Nvram {
	return g.state.clone()
}

func (g *Guard) BakingKey() PathWithCurve {
	return g.state.BakingKey.Clone()
}

func (g *Guard) MainChainID() ChainID {
	return g.state.MainChainID
}

// ContextFor maps a chain id to its watermark record. Operations on the
// main chain, or on any chain while no main chain is set, use main.
func (g *Guard) ContextFor(id ChainID) ChainContext {
	if g.state.MainChainID == 0 || g.state.MainChainID == id {
		return ChainMain
	}
	return ChainTest
}

func (g *Guard) Watermark(ctx ChainContext) HighWatermark {
	if ctx == ChainMain {
		return g.state.HWM.Main
	}
	return g.state.HWM.Test
}

// update applies fn to a copy of the state, persists the copy and only then
// makes it current. A failed write leaves the previous state in place.
func (g *Guard) update(fn func(n *Nvram)) error {
	next := g.state.clone()
	fn(&next)

	if err := g.store.Save(next); err != nil {
		return err
	}

	g.state = next
	return nil
}

// Authorize makes key the baking key. Callers must only reach this after the
// user accepted the authorization prompt.
func (g *Guard) Authorize(key PathWithCurve) error {
	if !key.IsSet() {
		return fmt.Errorf("%w: cannot authorize %s", ErrWrongLength, key)
	}

	slog.Debug("Authorize baking", "Key", key.String())

	return g.update(func(n *Nvram) {
		n.BakingKey = key.Clone()
	})
}

func (g *Guard) Deauthorize() error {
	slog.Debug("Deauthorize baking")

	return g.update(func(n *Nvram) {
		n.BakingKey = PathWithCurve{}
	})
}

// Reset sets both watermarks to (level, 0) with no attestation. It is the only
// way a watermark goes down and must only run after user confirmation.
func (g *Guard) Reset(level uint32) error {
	if !IsValidLevel(level) {
		return fmt.Errorf("%w: invalid level %d", ErrParse, level)
	}

	slog.Debug("Reset watermarks", "Level", level)

	return g.update(func(n *Nvram) {
		n.HWM.Main = HighWatermark{HighestLevel: level}
		n.HWM.Test = HighWatermark{HighestLevel: level}
	})
}

// Setup stores the main chain id, both watermark levels and the baking key
// in one write.
func (g *Guard) Setup(chain ChainID, mainLevel, testLevel uint32, key PathWithCurve) error {
	if !IsValidLevel(mainLevel) || !IsValidLevel(testLevel) {
		return fmt.Errorf("%w: invalid level", ErrParse)
	}
	if !key.IsSet() {
		return fmt.Errorf("%w: cannot authorize %s", ErrWrongLength, key)
	}

	slog.Debug("Setup baking", "Chain", chain.String(), "Main", mainLevel, "Test", testLevel, "Key", key.String())

	return g.update(func(n *Nvram) {
		n.MainChainID = chain
		n.BakingKey = key.Clone()
		n.HWM.Main = HighWatermark{HighestLevel: mainLevel}
		n.HWM.Test = HighWatermark{HighestLevel: testLevel}
	})
}

// ValidateAndAdvance is the anti-equivocation check. On success the record
// is persisted at (level, round) before the caller may sign; on failure the
// record is untouched and ErrEquivocationRisk is returned.
func (g *Guard) ValidateAndAdvance(ctx ChainContext, level, round uint32, isAttestation bool) error {
	current := g.Watermark(ctx)

	if !current.Permits(level, round, isAttestation) {
		slog.Debug("Watermark refused",
			"Chain", ctx.String(),
			"Level", level, "Round", round, "Attestation", isAttestation,
			"HighestLevel", current.HighestLevel, "HighestRound", current.HighestRound,
			"HadAttestation", current.HadAttestation)
		return fmt.Errorf("%w: %s at %d/%d", ErrEquivocationRisk, ctx, level, round)
	}

	next := HighWatermark{
		HighestLevel:   level,
		HighestRound:   round,
		HadAttestation: isAttestation,
	}

	return g.update(func(n *Nvram) {
		if ctx == ChainMain {
			n.HWM.Main = next
		} else {
			n.HWM.Test = next
		}
	})
}
