// Package lexdecode assembles a lexicon, a token alphabet and an ARPA
// language model into a ready-to-run beam-search decoder for acoustic
// emission scores.
package lexdecode

import (
	"fmt"
	"math"

	"github.com/ieee0824/lexdecode-go/decoder"
	"github.com/ieee0824/lexdecode-go/lexicon"
	"github.com/ieee0824/lexdecode-go/lm"
	"github.com/ieee0824/lexdecode-go/trie"
)

const unkWord = "<unk>"

// Engine bundles the loaded models with a built, smeared trie. An Engine is
// read-only after construction and safe to share; each decode runs on its
// own decoder instance.
type Engine struct {
	Lexicon *lexicon.Lexicon
	Tokens  *lexicon.TokenSet
	LM      lm.Model
	Trie    *trie.Trie

	DecOpts    decoder.Options
	Smearing   trie.SmearingMode
	SilToken   string
	BlankToken string
	OOVLogProb float64 // OOV unigram log10 probability (e.g. -5.0). 0 = disable.

	sil         int
	blank       int
	transitions []float32
}

// Option configures an Engine.
type Option func(*Engine)

// WithDecoderOptions sets custom beam-search parameters.
func WithDecoderOptions(opts decoder.Options) Option {
	return func(e *Engine) {
		e.DecOpts = opts
	}
}

// WithSmearing sets the trie score-smearing mode.
func WithSmearing(mode trie.SmearingMode) Option {
	return func(e *Engine) {
		e.Smearing = mode
	}
}

// WithSilenceToken names the silence token in the alphabet. Default "|".
func WithSilenceToken(tok string) Option {
	return func(e *Engine) {
		e.SilToken = tok
	}
}

// WithBlankToken names the CTC blank token in the alphabet. Defaults to the
// silence token.
func WithBlankToken(tok string) Option {
	return func(e *Engine) {
		e.BlankToken = tok
	}
}

// WithOOVLogProb sets the OOV unigram probability in log10 (e.g. -5.0).
func WithOOVLogProb(log10prob float64) Option {
	return func(e *Engine) {
		e.OOVLogProb = log10prob
	}
}

// WithTransitions sets the N x N ASG token transition matrix, indexed
// [current*N + previous].
func WithTransitions(transitions []float32) Option {
	return func(e *Engine) {
		e.transitions = transitions
	}
}

// NewEngine loads the lexicon, token list and ARPA language model from
// files and builds the decoding trie.
func NewEngine(lexiconPath, lmPath, tokensPath string, opts ...Option) (*Engine, error) {
	lex, err := lexicon.LoadFile(lexiconPath)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	toks, err := lexicon.LoadTokensFile(tokensPath)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}
	model, err := lm.LoadARPAFile(lmPath)
	if err != nil {
		return nil, fmt.Errorf("load language model: %w", err)
	}
	return buildEngine(lex, toks, model, opts)
}

// NewEngineFromModels builds an Engine from pre-loaded models.
func NewEngineFromModels(lex *lexicon.Lexicon, toks *lexicon.TokenSet, model lm.Model, opts ...Option) (*Engine, error) {
	return buildEngine(lex, toks, model, opts)
}

func buildEngine(lex *lexicon.Lexicon, toks *lexicon.TokenSet, model lm.Model, opts []Option) (*Engine, error) {
	e := &Engine{
		Lexicon:  lex,
		Tokens:   toks,
		LM:       model,
		DecOpts:  decoder.DefaultOptions(),
		Smearing: trie.SmearMax,
		SilToken: "|",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.BlankToken == "" {
		e.BlankToken = e.SilToken
	}

	// The decoder addresses words by lexicon id; rebind the model's id
	// space before any scoring happens.
	if ngram, ok := model.(*lm.NGramModel); ok {
		if e.OOVLogProb != 0 {
			ngram.OOVLogProb = e.OOVLogProb * math.Ln10 // convert log10 to natural log
		}
		ngram.SetVocabulary(lex.Words())
	}

	sil, ok := toks.Index(e.SilToken)
	if !ok {
		return nil, fmt.Errorf("silence token %q not in alphabet", e.SilToken)
	}
	e.sil = sil
	blank, ok := toks.Index(e.BlankToken)
	if !ok {
		return nil, fmt.Errorf("blank token %q not in alphabet", e.BlankToken)
	}
	e.blank = blank

	tr, err := lexicon.BuildTrie(lex, toks, model, sil)
	if err != nil {
		return nil, fmt.Errorf("build trie: %w", err)
	}
	tr.Smear(e.Smearing)
	e.Trie = tr
	return e, nil
}

// UnkWordID returns the word id the decoder emits on the unknown-word path:
// one past the lexicon's last id.
func (e *Engine) UnkWordID() int {
	return e.Lexicon.NumWords()
}

// NewDecoder creates a fresh decoder over the engine's models. Decoders are
// single-utterance state machines; create one per concurrent stream.
func (e *Engine) NewDecoder() (*decoder.Decoder, error) {
	return decoder.New(e.DecOpts, e.Trie, e.LM, e.sil, e.blank, e.UnkWordID(), e.transitions)
}

// Transcript is a decoded hypothesis with ids resolved back to strings.
type Transcript struct {
	Score  float64
	Words  []string
	Tokens []string
}

// Decode runs a full decode over T frames of N emission scores and returns
// the best transcript.
func (e *Engine) Decode(emissions []float32, T, N int) (*Transcript, error) {
	results, err := e.DecodeAll(emissions, T, N)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("decode: no hypotheses survived the beam")
	}
	return &results[0], nil
}

// DecodeAll runs a full decode and returns every surviving transcript in
// descending score order.
func (e *Engine) DecodeAll(emissions []float32, T, N int) ([]Transcript, error) {
	d, err := e.NewDecoder()
	if err != nil {
		return nil, err
	}
	results, err := d.Decode(emissions, T, N)
	if err != nil {
		return nil, err
	}
	out := make([]Transcript, len(results))
	for i, r := range results {
		out[i] = e.resolve(r)
	}
	return out, nil
}

// resolve maps a raw result's ids to word and token strings.
func (e *Engine) resolve(r decoder.Result) Transcript {
	tr := Transcript{
		Score:  r.Score,
		Words:  make([]string, len(r.Words)),
		Tokens: make([]string, len(r.Tokens)),
	}
	unk := e.UnkWordID()
	for i, w := range r.Words {
		if w == unk {
			tr.Words[i] = unkWord
			continue
		}
		tr.Words[i] = e.Lexicon.Word(w)
	}
	for i, tok := range r.Tokens {
		tr.Tokens[i] = e.Tokens.Token(tok)
	}
	return tr
}
