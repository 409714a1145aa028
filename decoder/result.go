package decoder

// Result holds one ranked decoding hypothesis. For ASG, Tokens has one
// entry per decoded frame (the raw alignment); for CTC, blanks are removed
// and repeats collapsed per the criterion. Words lists emitted word ids in
// order; unknown-word emissions carry the decoder's unk id. A Result is
// immutable once returned.
type Result struct {
	Score  float64
	Words  []int
	Tokens []int
}

// traceback walks the back-pointer chain from a hypothesis to the seed and
// reconstructs the token and word sequences in forward order.
func (d *Decoder) traceback(n *node) Result {
	depth := 0
	for cur := n; cur != nil; cur = cur.parent {
		depth++
	}

	tokens := make([]int, 0, depth)
	words := make([]int, 0, depth)
	for cur := n; cur != nil; cur = cur.parent {
		if cur.token >= 0 {
			tokens = append(tokens, cur.token)
		}
		if cur.word >= 0 {
			words = append(words, cur.word)
		}
	}
	reverseInts(tokens)
	reverseInts(words)

	if d.opts.Criterion == CTC {
		tokens = collapseCTC(tokens, d.blank)
	}

	return Result{Score: n.score, Words: words, Tokens: tokens}
}

// collapseCTC merges consecutive repeats and drops blanks, in place.
func collapseCTC(tokens []int, blank int) []int {
	out := tokens[:0]
	prev := -1
	for _, tok := range tokens {
		repeat := tok == prev
		prev = tok
		if repeat || tok == blank {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func reverseInts(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
