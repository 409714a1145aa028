// Package lexicon maps words to token-index spellings and builds the
// decoder's vocabulary trie from them.
package lexicon

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ieee0824/lexdecode-go/lm"
	"github.com/ieee0824/lexdecode-go/trie"
)

// Entry represents a single spelling for a word.
type Entry struct {
	Word   string
	Tokens []string // acoustic token sequence, e.g. graphemes or subwords
}

// Lexicon holds word-to-spelling mappings and owns the word-id space used
// throughout decoding: ids are assigned in first-seen order.
type Lexicon struct {
	Entries []Entry

	words []string
	index map[string]int
}

// NewLexicon creates an empty lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{index: make(map[string]int)}
}

// Add adds a spelling entry. Adding the same word again records an
// alternative spelling under the same word id.
func (l *Lexicon) Add(word string, tokens []string) {
	if _, ok := l.index[word]; !ok {
		l.index[word] = len(l.words)
		l.words = append(l.words, word)
	}
	l.Entries = append(l.Entries, Entry{Word: word, Tokens: tokens})
}

// Load reads a lexicon from a tab-separated file.
// Format: word<TAB>token1 token2 token3 ...
// Lines starting with # and blank lines are skipped.
func Load(r io.Reader) (*Lexicon, error) {
	l := NewLexicon()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("line %d: expected 2 tab-separated fields, got %d", lineNum, len(parts))
		}

		word := parts[0]
		tokens := strings.Fields(parts[1])
		if len(tokens) == 0 {
			return nil, fmt.Errorf("line %d: word %q has an empty spelling", lineNum, word)
		}
		l.Add(word, tokens)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return l, nil
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// WordID returns the id assigned to a word.
func (l *Lexicon) WordID(word string) (int, bool) {
	id, ok := l.index[word]
	return id, ok
}

// Word returns the word for an id.
func (l *Lexicon) Word(id int) string {
	if id < 0 || id >= len(l.words) {
		return ""
	}
	return l.words[id]
}

// Words returns all words in id order.
func (l *Lexicon) Words() []string {
	return l.words
}

// NumWords returns the vocabulary size.
func (l *Lexicon) NumWords() int {
	return len(l.words)
}

// TokenSet is the acoustic alphabet: a bidirectional token-string to
// token-index mapping. Index order is the emission column order.
type TokenSet struct {
	tokens []string
	index  map[string]int
}

// NewTokenSet builds a token set from an ordered token list.
func NewTokenSet(tokens []string) (*TokenSet, error) {
	ts := &TokenSet{index: make(map[string]int, len(tokens))}
	for _, tok := range tokens {
		if _, ok := ts.index[tok]; ok {
			return nil, fmt.Errorf("duplicate token %q", tok)
		}
		ts.index[tok] = len(ts.tokens)
		ts.tokens = append(ts.tokens, tok)
	}
	return ts, nil
}

// LoadTokens reads a token set from a file with one token per line.
func LoadTokens(r io.Reader) (*TokenSet, error) {
	var tokens []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		tok := strings.TrimSpace(scanner.Text())
		if tok == "" || strings.HasPrefix(tok, "#") {
			continue
		}
		tokens = append(tokens, tok)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return NewTokenSet(tokens)
}

// LoadTokensFile is a convenience wrapper that opens a file path.
func LoadTokensFile(path string) (*TokenSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadTokens(f)
}

// Index returns the index of a token.
func (ts *TokenSet) Index(tok string) (int, bool) {
	i, ok := ts.index[tok]
	return i, ok
}

// Token returns the token at an index.
func (ts *TokenSet) Token(i int) string {
	if i < 0 || i >= len(ts.tokens) {
		return ""
	}
	return ts.tokens[i]
}

// Size returns the alphabet size.
func (ts *TokenSet) Size() int {
	return len(ts.tokens)
}

// BuildTrie inserts every lexicon entry into a fresh, unsmeared trie whose
// branching factor is the alphabet size and whose root carries silIdx.
// Labels use the lexicon's word ids; each insertion is scored with the
// language model's start-state probability of the word, which a subsequent
// Smear propagates for lookahead pruning. Bind the lexicon vocabulary to
// the model first (see lm.NGramModel.SetVocabulary).
func BuildTrie(l *Lexicon, ts *TokenSet, model lm.Model, silIdx int) (*trie.Trie, error) {
	tr := trie.New(ts.Size(), silIdx)
	start := model.Start(false)
	for _, e := range l.Entries {
		indices := make([]int, len(e.Tokens))
		for i, tok := range e.Tokens {
			idx, ok := ts.Index(tok)
			if !ok {
				return nil, fmt.Errorf("word %q: token %q not in alphabet", e.Word, tok)
			}
			indices[i] = idx
		}
		id, _ := l.WordID(e.Word)
		_, score := model.Score(start, id)
		if _, err := tr.Insert(indices, id, score); err != nil {
			return nil, fmt.Errorf("word %q: %w", e.Word, err)
		}
	}
	return tr, nil
}
