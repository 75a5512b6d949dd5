package syntaxmgr

import "time"

// Tier selects parse/debounce/retention parameters by document byte size.
type Tier uint8

const (
	TierS Tier = iota
	TierM
	TierL
)

func (t Tier) String() string {
	switch t {
	case TierS:
		return "S"
	case TierM:
		return "M"
	case TierL:
		return "L"
	default:
		return "unknown"
	}
}

// Tier byte-size boundaries, inclusive.
const (
	sMaxBytesInclusive = 256 * 1024
	mMaxBytesInclusive = 1024 * 1024
)

// TierForBytes classifies a document by its byte size.
func TierForBytes(bytes int) Tier {
	switch {
	case bytes <= sMaxBytesInclusive:
		return TierS
	case bytes <= mMaxBytesInclusive:
		return TierM
	default:
		return TierL
	}
}

// Hotness drives whether a hidden document is still worth parsing.
type Hotness uint8

const (
	Visible Hotness = iota
	Warm
	Cold
)

// InjectionPolicy controls whether embedded-language injections are parsed.
type InjectionPolicy uint8

const (
	InjectionEager InjectionPolicy = iota
	InjectionDisabled
)

// RetentionKind tags a RetentionPolicy variant.
type RetentionKind uint8

const (
	RetentionKeep RetentionKind = iota
	RetentionDropWhenHidden
	RetentionDropAfter
)

// RetentionPolicy governs when a hidden document's tree is evicted.
type RetentionPolicy struct {
	Kind RetentionKind
	TTL  time.Duration // only meaningful when Kind == RetentionDropAfter
}

// TierCfg holds one size tier's tuning knobs.
type TierCfg struct {
	ParseTimeout        time.Duration
	Debounce            time.Duration
	CooldownOnTimeout   time.Duration
	CooldownOnError     time.Duration
	Injections          InjectionPolicy
	RetentionHidden     RetentionPolicy
	ParseWhenHidden     bool
	SyncBootstrapTimeout time.Duration // 0 means "no sync bootstrap attempt"
}

// catchUpSyncTimeout is the flat timeout TryCatchUp uses when retrying a
// pending incremental window in the background catch-up path (TryCatchUp
// does not run against a partial tree). It is distinct from the tier's
// SyncBootstrapTimeout, which bounds the synchronous attempt
// NoteEditIncremental makes on each edit.
const catchUpSyncTimeout = 10 * time.Millisecond

// Policy holds the tier table. Zero value is invalid; use DefaultPolicy.
type Policy struct {
	S, M, L TierCfg
}

// DefaultPolicy returns the standard tier table.
func DefaultPolicy() Policy {
	return Policy{
		S: TierCfg{
			ParseTimeout:         500 * time.Millisecond,
			Debounce:             80 * time.Millisecond,
			CooldownOnTimeout:    400 * time.Millisecond,
			CooldownOnError:      150 * time.Millisecond,
			Injections:           InjectionEager,
			RetentionHidden:      RetentionPolicy{Kind: RetentionKeep},
			ParseWhenHidden:      false,
			SyncBootstrapTimeout: 5 * time.Millisecond,
		},
		M: TierCfg{
			ParseTimeout:         1200 * time.Millisecond,
			Debounce:             140 * time.Millisecond,
			CooldownOnTimeout:    2 * time.Second,
			CooldownOnError:      250 * time.Millisecond,
			Injections:           InjectionEager,
			RetentionHidden:      RetentionPolicy{Kind: RetentionDropAfter, TTL: 60 * time.Second},
			ParseWhenHidden:      false,
			SyncBootstrapTimeout: 3 * time.Millisecond,
		},
		L: TierCfg{
			ParseTimeout:         3 * time.Second,
			Debounce:             250 * time.Millisecond,
			CooldownOnTimeout:    10 * time.Second,
			CooldownOnError:      2 * time.Second,
			Injections:           InjectionDisabled,
			RetentionHidden:      RetentionPolicy{Kind: RetentionDropWhenHidden},
			ParseWhenHidden:      false,
			SyncBootstrapTimeout: 0,
		},
	}
}

// Cfg returns the TierCfg for tier.
func (p Policy) Cfg(tier Tier) TierCfg {
	switch tier {
	case TierS:
		return p.S
	case TierM:
		return p.M
	default:
		return p.L
	}
}
