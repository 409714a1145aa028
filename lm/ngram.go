package lm

import "github.com/ieee0824/lexdecode-go/internal/mathutil"

// Sentence markers used by ARPA-format models.
const (
	sentenceStart = "<s>"
	sentenceEnd   = "</s>"
	unkWord       = "<unk>"
)

// NGramModel is a word-level backoff n-gram language model implementing
// Model. The decoder addresses words by integer id; ids are assigned in
// unigram order when loading (see LoadARPA) and can be resolved with Index.
type NGramModel struct {
	Order    int // 2 for bigram, 3 for trigram
	Unigrams map[string]ngramEntry
	Bigrams  map[[2]string]ngramEntry
	Trigrams map[[3]string]ngramEntry

	// OOVLogProb is the natural-log probability assigned to words missing
	// from the unigram table. Zero means "use the LogZero floor".
	OOVLogProb float64

	vocab []string
	index map[string]int
}

type ngramEntry struct {
	LogProb    float64
	LogBackoff float64
}

// NewNGramModel creates an empty n-gram model.
func NewNGramModel(order int) *NGramModel {
	return &NGramModel{
		Order:    order,
		Unigrams: make(map[string]ngramEntry),
		Bigrams:  make(map[[2]string]ngramEntry),
		Trigrams: make(map[[3]string]ngramEntry),
		index:    make(map[string]int),
	}
}

// addWord registers a word in the id space if not already present.
func (m *NGramModel) addWord(w string) {
	if _, ok := m.index[w]; !ok {
		m.index[w] = len(m.vocab)
		m.vocab = append(m.vocab, w)
	}
}

// SetVocabulary rebinds the model's word-id space to the caller's word
// list, replacing the ids assigned while loading. The decoder addresses
// words by lexicon id, so bind the lexicon's word list here before
// building a trie or decoding. Words missing from the unigram table score
// through the OOV floor.
func (m *NGramModel) SetVocabulary(words []string) {
	m.vocab = append([]string{}, words...)
	m.index = make(map[string]int, len(words))
	for i, w := range words {
		m.index[w] = i
	}
}

// Index returns the integer id for a word.
func (m *NGramModel) Index(word string) (int, bool) {
	id, ok := m.index[word]
	return id, ok
}

// Word returns the word for an id, or "<unk>" if the id is out of range.
func (m *NGramModel) Word(id int) string {
	if id < 0 || id >= len(m.vocab) {
		return unkWord
	}
	return m.vocab[id]
}

// NumWords returns the vocabulary size.
func (m *NGramModel) NumWords() int {
	return len(m.vocab)
}

// LogProb returns the natural-log probability of a word given its history,
// backing off when the exact n-gram is not found.
func (m *NGramModel) LogProb(history []string, word string) float64 {
	if m.Order >= 3 && len(history) >= 2 {
		key := [3]string{history[len(history)-2], history[len(history)-1], word}
		if e, ok := m.Trigrams[key]; ok {
			return e.LogProb
		}
		// Backoff to bigram
		biKey := [2]string{history[len(history)-2], history[len(history)-1]}
		if e, ok := m.Bigrams[biKey]; ok {
			return e.LogBackoff + m.logProbBigram(history[len(history)-1], word)
		}
	}

	if m.Order >= 2 && len(history) >= 1 {
		return m.logProbBigram(history[len(history)-1], word)
	}

	return m.logProbUnigram(word)
}

func (m *NGramModel) logProbBigram(prev, word string) float64 {
	key := [2]string{prev, word}
	if e, ok := m.Bigrams[key]; ok {
		return e.LogProb
	}
	// Backoff to unigram
	if e, ok := m.Unigrams[prev]; ok {
		return e.LogBackoff + m.logProbUnigram(word)
	}
	return m.logProbUnigram(word)
}

func (m *NGramModel) logProbUnigram(word string) float64 {
	if e, ok := m.Unigrams[word]; ok {
		return e.LogProb
	}
	if m.OOVLogProb != 0 {
		return m.OOVLogProb
	}
	return mathutil.LogZero
}

// ngramState is the trailing word history, most recent word last. States are
// built once and never mutated, so hypotheses can share them.
type ngramState struct {
	hist []string
}

// Start implements Model.
func (m *NGramModel) Start(startWithNothing bool) State {
	if startWithNothing {
		return &ngramState{}
	}
	return &ngramState{hist: []string{sentenceStart}}
}

// Score implements Model. The word id is resolved against the model
// vocabulary; unknown ids fall through to the OOV floor.
func (m *NGramModel) Score(s State, word int) (State, float64) {
	st := s.(*ngramState)
	w := m.Word(word)
	lp := m.LogProb(st.hist, w)

	keep := m.Order - 1
	next := make([]string, 0, keep)
	if n := len(st.hist); keep > 1 && n > 0 {
		start := n - (keep - 1)
		if start < 0 {
			start = 0
		}
		next = append(next, st.hist[start:]...)
	}
	next = append(next, w)
	return &ngramState{hist: next}, lp
}

// Finish implements Model, scoring the end-of-sentence transition.
func (m *NGramModel) Finish(s State) (State, float64) {
	st := s.(*ngramState)
	lp := m.LogProb(st.hist, sentenceEnd)
	next := append(append([]string{}, st.hist...), sentenceEnd)
	return &ngramState{hist: next}, lp
}

// CompareState implements Model with a lexicographic order over histories.
func (m *NGramModel) CompareState(a, b State) int {
	sa := a.(*ngramState)
	sb := b.(*ngramState)
	na, nb := len(sa.hist), len(sb.hist)
	n := na
	if nb < n {
		n = nb
	}
	for i := 0; i < n; i++ {
		if sa.hist[i] != sb.hist[i] {
			if sa.hist[i] < sb.hist[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case na < nb:
		return -1
	case na > nb:
		return 1
	}
	return 0
}
