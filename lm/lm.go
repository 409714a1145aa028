// Package lm defines the language-model contract the decoder scores against,
// and a word-level backoff n-gram implementation of it.
package lm

// State is an opaque language-model context (for an n-gram model, the
// trailing word history). States are immutable values from the decoder's
// point of view: Score and Finish always return a new State and never
// modify their input. Hypotheses share States freely by reference.
type State any

// Model is the complete capability contract between the decoder and a
// language model. Implementations must be deterministic and safe for
// concurrent Score/Finish/CompareState calls from independent decoders.
//
// A backend must never fail on an out-of-vocabulary word id; it scores it
// through its own floor probability and the decoder separately applies its
// unknown-word penalty.
type Model interface {
	// Start produces the initial context. startWithNothing yields a context
	// without a leading sentence marker.
	Start(startWithNothing bool) State

	// Score advances the context by one word id and returns the new context
	// together with the incremental log-probability of that word.
	Score(s State, word int) (State, float64)

	// Finish applies end-of-sequence scoring. The decoder calls it exactly
	// once per surviving hypothesis at the end of an utterance.
	Finish(s State) (State, float64)

	// CompareState is a total order over states. States comparing equal are
	// interchangeable for hypothesis merging; the order also fixes a
	// canonical beam iteration order so decoding is deterministic.
	CompareState(a, b State) int
}

// ZeroModel is a trivial Model that scores everything zero and carries no
// context. Useful for lexicon-only decoding and tests.
type ZeroModel struct{}

type zeroState struct{}

var sharedZeroState = &zeroState{}

func (ZeroModel) Start(bool) State { return sharedZeroState }

func (ZeroModel) Score(s State, _ int) (State, float64) { return s, 0 }

func (ZeroModel) Finish(s State) (State, float64) { return s, 0 }

func (ZeroModel) CompareState(a, b State) int { return 0 }
