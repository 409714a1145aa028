package lexicon

import (
	"strings"
	"testing"

	"github.com/ieee0824/lexdecode-go/lm"
	"github.com/ieee0824/lexdecode-go/trie"
)

const testLexicon = `# test lexicon
hello	h e l l o
world	w o r l d
hello	h e l o

the	t h e
`

func TestLoad(t *testing.T) {
	l, err := Load(strings.NewReader(testLexicon))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if len(l.Entries) != 4 {
		t.Errorf("len(Entries) = %d, want 4", len(l.Entries))
	}
	// "hello" appears twice but owns a single id.
	if l.NumWords() != 3 {
		t.Errorf("NumWords = %d, want 3", l.NumWords())
	}
	if id, ok := l.WordID("hello"); !ok || id != 0 {
		t.Errorf("WordID(hello) = %d, %v, want 0, true", id, ok)
	}
	if id, ok := l.WordID("the"); !ok || id != 2 {
		t.Errorf("WordID(the) = %d, %v, want 2, true", id, ok)
	}
	if l.Word(1) != "world" {
		t.Errorf("Word(1) = %q, want world", l.Word(1))
	}

	if got := l.Entries[2].Tokens; len(got) != 4 || got[3] != "o" {
		t.Errorf("alternative spelling tokens = %v, want [h e l o]", got)
	}
}

func TestLoad_Malformed(t *testing.T) {
	if _, err := Load(strings.NewReader("justaword\n")); err == nil {
		t.Error("line without tab: want error")
	}
	if _, err := Load(strings.NewReader("word\t  \n")); err == nil {
		t.Error("empty spelling: want error")
	}
}

func TestTokenSet(t *testing.T) {
	ts, err := NewTokenSet([]string{"a", "b", "|"})
	if err != nil {
		t.Fatalf("NewTokenSet error: %v", err)
	}
	if ts.Size() != 3 {
		t.Errorf("Size = %d, want 3", ts.Size())
	}
	if i, ok := ts.Index("b"); !ok || i != 1 {
		t.Errorf("Index(b) = %d, %v, want 1, true", i, ok)
	}
	if ts.Token(2) != "|" {
		t.Errorf("Token(2) = %q, want |", ts.Token(2))
	}
	if _, ok := ts.Index("z"); ok {
		t.Error("Index(z) should not exist")
	}

	if _, err := NewTokenSet([]string{"a", "a"}); err == nil {
		t.Error("duplicate token: want error")
	}
}

func TestLoadTokens(t *testing.T) {
	ts, err := LoadTokens(strings.NewReader("# alphabet\na\nb\n\n|\n"))
	if err != nil {
		t.Fatalf("LoadTokens error: %v", err)
	}
	if ts.Size() != 3 {
		t.Errorf("Size = %d, want 3", ts.Size())
	}
}

func TestBuildTrie(t *testing.T) {
	l := NewLexicon()
	l.Add("ab", []string{"a", "b"})
	l.Add("ac", []string{"a", "c"})
	ts, _ := NewTokenSet([]string{"a", "b", "c", "|"})

	tr, err := BuildTrie(l, ts, lm.ZeroModel{}, 3)
	if err != nil {
		t.Fatalf("BuildTrie error: %v", err)
	}
	if tr.MaxChildren() != 4 {
		t.Errorf("MaxChildren = %d, want 4", tr.MaxChildren())
	}

	id := tr.Search([]int{0, 1})
	if id == trie.NoNode {
		t.Fatal("trie is missing the path for ab")
	}
	wantID, _ := l.WordID("ab")
	if n := tr.Node(id); n.NLabel() != 1 || n.Labels[0] != wantID {
		t.Errorf("labels at [0 1] = %v, want [%d]", tr.Node(id).Labels, wantID)
	}
}

func TestBuildTrie_UnknownToken(t *testing.T) {
	l := NewLexicon()
	l.Add("xy", []string{"x", "y"})
	ts, _ := NewTokenSet([]string{"a", "b"})

	if _, err := BuildTrie(l, ts, lm.ZeroModel{}, 0); err == nil {
		t.Error("spelling with token outside the alphabet: want error")
	}
}
