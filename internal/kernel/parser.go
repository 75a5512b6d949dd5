package kernel

import (
	"hash/fnv"
	"time"

	"github.com/xeno-editor/kernel/internal/rope"
)

// textParser is the syntaxmgr.Parser wired by default when Config.Parser
// is nil. Grammar fetch/build lives outside this process, so the kernel
// carries no grammar engine of its own; textParser stands in for whatever
// grammar backend a caller eventually plugs in via Config.Parser, letting
// the scheduler's debounce/retention/completion-ordering machinery run
// end-to-end against a trivial always-succeeds grammar in the meantime.
type textParser struct{}

func (textParser) TryParseIncremental(_, _ []rune, _ rope.Transaction, _ time.Duration) (ok, partial bool, err error) {
	return true, false, nil
}

// fingerprint computes the shared-state (hash64, lenChars) pair for text.
// FNV-64a is enough for a narrow internal fingerprint like this one; the
// collaborating sides only ever compare values computed the same way.
func fingerprint(text []rune) (hash64, lenChars uint64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(text)))
	return h.Sum64(), uint64(len(text))
}
