package decoder

import "github.com/ieee0824/lexdecode-go/internal/mathutil"

// CriterionType selects how per-frame acoustic scores are interpreted.
type CriterionType int

const (
	// ASG has no blank symbol; repeated tokens model duration and every
	// frame's token contributes directly, with a learned token-transition
	// matrix added from the second frame on.
	ASG CriterionType = iota
	// CTC treats the blank symbol as non-emitting and collapses consecutive
	// repeats of a token unless a blank separates them.
	CTC
)

func (c CriterionType) String() string {
	switch c {
	case ASG:
		return "asg"
	case CTC:
		return "ctc"
	}
	return "unknown"
}

// Options holds beam search parameters. The value is copied at construction
// and never modified by the decoder.
type Options struct {
	BeamSize      int     // maximum number of live hypotheses after a step
	BeamThreshold float64 // prune hypotheses more than this below the best
	LMWeight      float64 // language model scaling factor
	WordScore     float64 // bonus added when a lexicon word completes
	UnkScore      float64 // replaces the LM score on the unknown-word path;
	// LogZero disables the path entirely
	LogAdd    bool // log-add merged hypothesis scores instead of max;
	// applies to merge-time combination only
	SilWeight float64 // adjustment when the silence token is consumed
	Criterion CriterionType
}

// DefaultOptions returns reasonable default parameters. The unknown-word
// path is disabled by default.
func DefaultOptions() Options {
	return Options{
		BeamSize:      200,
		BeamThreshold: 25.0,
		LMWeight:      1.0,
		WordScore:     0.0,
		UnkScore:      mathutil.LogZero,
		LogAdd:        false,
		SilWeight:     0.0,
		Criterion:     ASG,
	}
}
