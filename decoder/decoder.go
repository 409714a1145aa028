// Package decoder implements lexicon-constrained, frame-synchronous beam
// search over acoustic emission scores. Legal token transitions come from a
// prefix trie over the vocabulary; word transitions are scored by an
// external language model through the lm.Model contract.
package decoder

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ieee0824/lexdecode-go/internal/mathutil"
	"github.com/ieee0824/lexdecode-go/lm"
	"github.com/ieee0824/lexdecode-go/trie"
)

// ErrNotDecoding is returned when DecodeStep, DecodeEnd or Prune is called
// outside a DecodeBegin/DecodeEnd window.
var ErrNotDecoding = errors.New("decoder: not decoding, call DecodeBegin first")

// node is one hypothesis in the beam. Back-pointers form a chain from the
// current frame to the seed; traceback over it reconstructs the token and
// word sequences.
type node struct {
	score     float64
	lmState   lm.State
	lex       trie.NodeID
	parent    *node
	token     int // token consumed at this frame; -1 at seed and end nodes
	word      int // word emitted entering this node; -1 if none
	prevBlank bool
}

type runState int

const (
	stateIdle runState = iota
	stateDecoding
	stateDone
)

// Decoder runs beam search over one utterance at a time. A Decoder instance
// is not safe for concurrent use; independent instances may share the same
// (smeared, read-only) trie and language model.
type Decoder struct {
	opts        Options
	trie        *trie.Trie
	lm          lm.Model
	sil         int       // silence token index
	blank       int       // CTC blank token index; -1 when unused
	unk         int       // word id used on the unknown-word path
	transitions []float32 // N x N ASG token transition matrix; nil = zeros

	state          runState
	hyp            [][]node // beam per decoded frame; hyp[0] is the seed
	nDecodedFrames int

	// candidate buffers, reused across frames
	cand     []node
	candPtrs []*node
	candBest float64
}

// New creates a decoder over a smeared trie and a language model. sil is the
// silence token index, blank the CTC blank index (ignored for ASG), unk the
// word id charged on the unknown-word path. transitions is the row-major
// N x N ASG transition matrix, indexed [current*N + previous]; nil means no
// transition scores.
func New(opts Options, tr *trie.Trie, model lm.Model, sil, blank, unk int, transitions []float32) (*Decoder, error) {
	n := tr.MaxChildren()
	if sil < 0 || sil >= n {
		return nil, fmt.Errorf("decoder: silence index %d out of range [0, %d)", sil, n)
	}
	if opts.Criterion == CTC && (blank < 0 || blank >= n) {
		return nil, fmt.Errorf("decoder: blank index %d out of range [0, %d)", blank, n)
	}
	if transitions != nil && len(transitions) != n*n {
		return nil, fmt.Errorf("decoder: transitions length %d, want %d", len(transitions), n*n)
	}
	if opts.BeamSize <= 0 {
		return nil, fmt.Errorf("decoder: beam size %d, want > 0", opts.BeamSize)
	}
	return &Decoder{
		opts:        opts,
		trie:        tr,
		lm:          model,
		sil:         sil,
		blank:       blank,
		unk:         unk,
		transitions: transitions,
	}, nil
}

// DecodeBegin resets the beam to a single hypothesis at the trie root with
// the language model's start state. It is always legal and discards any
// in-flight decode.
func (d *Decoder) DecodeBegin() {
	seed := node{
		lmState: d.lm.Start(false),
		lex:     d.trie.Root(),
		token:   -1,
		word:    -1,
	}
	d.hyp = d.hyp[:0]
	d.hyp = append(d.hyp, []node{seed})
	d.nDecodedFrames = 0
	d.state = stateDecoding
}

// DecodeStep consumes T emission frames of N scores each from the caller's
// row-major buffer. The buffer is only read, never retained. N must equal
// the trie's alphabet size.
func (d *Decoder) DecodeStep(emissions []float32, T, N int) error {
	if d.state != stateDecoding {
		return ErrNotDecoding
	}
	if N != d.trie.MaxChildren() {
		return fmt.Errorf("decoder: alphabet size %d, trie expects %d", N, d.trie.MaxChildren())
	}
	if T < 0 || len(emissions) < T*N {
		return fmt.Errorf("decoder: emissions buffer has %d scores, want at least %d (T=%d, N=%d)",
			len(emissions), T*N, T, N)
	}

	for t := 0; t < T; t++ {
		frame := emissions[t*N : (t+1)*N]
		d.resetCandidates()
		prevBeam := d.hyp[len(d.hyp)-1]
		for i := range prevBeam {
			d.expand(&prevBeam[i], frame, N)
		}
		d.hyp = append(d.hyp, d.storeCandidates(false))
		d.nDecodedFrames++
	}
	return nil
}

// expand generates all frame-t successors of one hypothesis.
func (d *Decoder) expand(prev *node, frame []float32, N int) {
	root := d.trie.Root()
	prevLex := d.trie.Node(prev.lex)
	prevTok := prev.token
	if prevTok < 0 {
		prevTok = d.sil // the seed starts in silence
	}
	lexMax := prevLex.MaxScore
	if prev.lex == root {
		lexMax = 0
	}
	useTrans := d.nDecodedFrames > 0 && d.opts.Criterion == ASG && d.transitions != nil

	// (1) Follow trie children: consume a new token. Under CTC a repeat of
	// the last consumed token is only a new emission after a blank; the gate
	// applies across word boundaries too, so a completed word cannot restart
	// on the same frame-repeated token.
	for n, child := range prevLex.Children {
		if child == trie.NoNode {
			continue
		}
		if d.opts.Criterion == CTC && n == prevTok && !prev.prevBlank {
			continue
		}
		cn := d.trie.Node(child)
		score := prev.score + float64(frame[n])
		if useTrans {
			score += float64(d.transitions[n*N+prevTok])
		}
		if n == d.sil {
			score += d.opts.SilWeight
		}

		// Deeper into the trie, carrying the smeared LM lookahead delta.
		if cn.HasChildren() {
			d.addCandidate(prev.lmState, child, prev,
				score+d.opts.LMWeight*(cn.MaxScore-lexMax), n, -1, false)
		}

		// Completed lexicon words: back to the root, true LM score replaces
		// the lookahead.
		for _, w := range cn.Labels {
			nextState, lmScore := d.lm.Score(prev.lmState, w)
			d.addCandidate(nextState, root, prev,
				score+d.opts.LMWeight*(lmScore-lexMax)+d.opts.WordScore, n, w, false)
		}

		// Unknown-word path: the token path spells no lexicon word; UnkScore
		// substitutes the LM contribution. The LM state still advances so
		// later history stays consistent.
		if cn.NLabel() == 0 && d.opts.UnkScore > mathutil.LogZero {
			nextState, _ := d.lm.Score(prev.lmState, d.unk)
			d.addCandidate(nextState, root, prev,
				score-d.opts.LMWeight*lexMax+d.opts.UnkScore, n, d.unk, false)
		}
	}

	// (2) Stay on the current node: repeat the node's own token (or idle in
	// silence at the root). Under CTC a blank must not precede a repeat.
	if d.opts.Criterion != CTC || !prev.prevBlank {
		n := prevLex.Idx
		score := prev.score + float64(frame[n])
		if useTrans {
			score += float64(d.transitions[n*N+prevTok])
		}
		if n == d.sil {
			score += d.opts.SilWeight
		}
		d.addCandidate(prev.lmState, prev.lex, prev, score, n, -1, false)
	}

	// (3) CTC blank: non-emitting, position unchanged.
	if d.opts.Criterion == CTC {
		score := prev.score + float64(frame[d.blank])
		d.addCandidate(prev.lmState, prev.lex, prev, score, d.blank, -1, true)
	}
}

// DecodeEnd applies the language model's Finish to every live hypothesis,
// exactly once each, and stores the finalized beam sorted by score.
func (d *Decoder) DecodeEnd() error {
	if d.state != stateDecoding {
		return ErrNotDecoding
	}
	d.resetCandidates()
	prevBeam := d.hyp[len(d.hyp)-1]
	for i := range prevBeam {
		prev := &prevBeam[i]
		nextState, lmEnd := d.lm.Finish(prev.lmState)
		d.addCandidate(nextState, prev.lex, prev, prev.score+d.opts.LMWeight*lmEnd, -1, -1, false)
	}
	d.hyp = append(d.hyp, d.storeCandidates(true))
	d.state = stateDone
	return nil
}

// Decode is the single-shot composition of DecodeBegin, one DecodeStep over
// all T frames and DecodeEnd, returning all final hypotheses in descending
// score order.
func (d *Decoder) Decode(emissions []float32, T, N int) ([]Result, error) {
	d.DecodeBegin()
	if err := d.DecodeStep(emissions, T, N); err != nil {
		return nil, err
	}
	if err := d.DecodeEnd(); err != nil {
		return nil, err
	}
	return d.GetAllFinalHypothesis()
}

// Prune drops per-frame beam history older than lookBack frames. Scores and
// future search are unaffected; abandoned branches become collectable.
func (d *Decoder) Prune(lookBack int) error {
	if d.state != stateDecoding {
		return ErrNotDecoding
	}
	if lookBack < 0 {
		lookBack = 0
	}
	keep := lookBack + 1 // current beam plus lookBack frames of history
	if keep >= len(d.hyp) {
		return nil
	}
	d.hyp = append(d.hyp[:0:0], d.hyp[len(d.hyp)-keep:]...)
	return nil
}

// GetBestHypothesis returns the single top-scoring hypothesis, live during
// decoding or finalized after DecodeEnd.
func (d *Decoder) GetBestHypothesis() (Result, error) {
	if d.state == stateIdle {
		return Result{}, ErrNotDecoding
	}
	beam := d.hyp[len(d.hyp)-1]
	if len(beam) == 0 {
		return Result{}, errors.New("decoder: empty beam")
	}
	best := &beam[0]
	for i := 1; i < len(beam); i++ {
		if beam[i].score > best.score {
			best = &beam[i]
		}
	}
	return d.traceback(best), nil
}

// GetAllFinalHypothesis returns every hypothesis in the current beam sorted
// by descending score.
func (d *Decoder) GetAllFinalHypothesis() ([]Result, error) {
	if d.state == stateIdle {
		return nil, ErrNotDecoding
	}
	beam := d.hyp[len(d.hyp)-1]
	ptrs := make([]*node, len(beam))
	for i := range beam {
		ptrs[i] = &beam[i]
	}
	d.sortByScore(ptrs)
	results := make([]Result, len(ptrs))
	for i, p := range ptrs {
		results[i] = d.traceback(p)
	}
	return results, nil
}

// NumHypothesis returns the number of live hypotheses in the current beam.
func (d *Decoder) NumHypothesis() int {
	if len(d.hyp) == 0 {
		return 0
	}
	return len(d.hyp[len(d.hyp)-1])
}

func (d *Decoder) resetCandidates() {
	d.cand = d.cand[:0]
	d.candBest = mathutil.LogZero
}

// addCandidate records a successor hypothesis unless it already falls more
// than BeamThreshold below the best candidate seen this frame.
func (d *Decoder) addCandidate(state lm.State, lex trie.NodeID, parent *node, score float64, token, word int, prevBlank bool) {
	if score > d.candBest {
		d.candBest = score
	}
	if score >= d.candBest-d.opts.BeamThreshold {
		d.cand = append(d.cand, node{
			score:     score,
			lmState:   state,
			lex:       lex,
			parent:    parent,
			token:     token,
			word:      word,
			prevBlank: prevBlank,
		})
	}
}

// storeCandidates filters the frame's candidates against the final
// threshold, merges hypotheses that share (trie node, LM state), cuts to
// BeamSize and returns the surviving beam. Merge order is canonical so
// decoding is deterministic.
func (d *Decoder) storeCandidates(returnSorted bool) []node {
	thr := d.candBest - d.opts.BeamThreshold
	ptrs := d.candPtrs[:0]
	for i := range d.cand {
		if d.cand[i].score >= thr {
			ptrs = append(ptrs, &d.cand[i])
		}
	}
	d.candPtrs = ptrs
	if len(ptrs) == 0 {
		return nil
	}

	// Group duplicates: LM state order, then trie node, then score
	// descending, so the head of each group carries the best back-pointer.
	sort.Slice(ptrs, func(i, j int) bool {
		if c := d.lm.CompareState(ptrs[i].lmState, ptrs[j].lmState); c != 0 {
			return c < 0
		}
		if ptrs[i].lex != ptrs[j].lex {
			return ptrs[i].lex < ptrs[j].lex
		}
		return ptrs[i].score > ptrs[j].score
	})

	merged := ptrs[:1]
	for _, p := range ptrs[1:] {
		head := merged[len(merged)-1]
		if p.lex == head.lex && d.lm.CompareState(p.lmState, head.lmState) == 0 {
			if d.opts.LogAdd {
				head.score = mathutil.LogAdd(head.score, p.score)
			}
			// Max merge keeps the head's score; the group is sorted so the
			// head is already the higher-scoring hypothesis.
		} else {
			merged = append(merged, p)
		}
	}

	if returnSorted || len(merged) > d.opts.BeamSize {
		d.sortByScore(merged)
		if len(merged) > d.opts.BeamSize {
			merged = merged[:d.opts.BeamSize]
		}
	}

	beam := make([]node, len(merged))
	for i, p := range merged {
		beam[i] = *p
	}
	return beam
}

// sortByScore orders hypotheses by descending score, breaking ties by the
// canonical LM state order and trie node id for determinism.
func (d *Decoder) sortByScore(ptrs []*node) {
	sort.Slice(ptrs, func(i, j int) bool {
		if ptrs[i].score != ptrs[j].score {
			return ptrs[i].score > ptrs[j].score
		}
		if c := d.lm.CompareState(ptrs[i].lmState, ptrs[j].lmState); c != 0 {
			return c < 0
		}
		return ptrs[i].lex < ptrs[j].lex
	})
}
