package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	lexdecode "github.com/ieee0824/lexdecode-go"
	"github.com/ieee0824/lexdecode-go/decoder"
	"github.com/ieee0824/lexdecode-go/trie"
)

func main() {
	lexPath := flag.String("lexicon", "", "path to lexicon file (word<TAB>token spelling)")
	lmPath := flag.String("lm", "", "path to language model (ARPA format)")
	tokPath := flag.String("tokens", "", "path to token list, one token per line")
	emPath := flag.String("emissions", "", "path to emission scores, T lines of N floats (- for stdin)")
	criterion := flag.String("criterion", "asg", "acoustic criterion: asg or ctc")
	silTok := flag.String("sil", "|", "silence token")
	blankTok := flag.String("blank", "", "CTC blank token (default: silence token)")
	beamSize := flag.Int("beam-size", 200, "maximum hypotheses kept per frame")
	beamThreshold := flag.Float64("beam-threshold", 25.0, "score window below the frame best")
	lmWeight := flag.Float64("lm-weight", 1.0, "language model weight")
	wordScore := flag.Float64("word-score", 0.0, "per-word insertion score")
	unkScore := flag.Float64("unk-score", 0, "unknown-word score (0=disable the unknown path)")
	silWeight := flag.Float64("sil-weight", 0.0, "silence insertion score")
	logAdd := flag.Bool("log-add", false, "log-add merged hypotheses instead of max")
	smearing := flag.String("smearing", "max", "trie smearing: none, max or logadd")
	oovProb := flag.Float64("oov-prob", 0, "OOV unigram log10 probability (e.g. -5.0, 0=disable)")
	nbest := flag.Int("n", 1, "number of hypotheses to print")
	verbose := flag.Bool("v", false, "verbose output")

	flag.Parse()

	if *lexPath == "" || *lmPath == "" || *tokPath == "" || *emPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: lexdecode -lexicon LEX -lm LM -tokens TOKENS -emissions SCORES")
		flag.PrintDefaults()
		os.Exit(1)
	}

	opts := decoder.DefaultOptions()
	opts.BeamSize = *beamSize
	opts.BeamThreshold = *beamThreshold
	opts.LMWeight = *lmWeight
	opts.WordScore = *wordScore
	opts.SilWeight = *silWeight
	opts.LogAdd = *logAdd
	if *unkScore != 0 {
		opts.UnkScore = *unkScore
	}
	switch *criterion {
	case "asg":
		opts.Criterion = decoder.ASG
	case "ctc":
		opts.Criterion = decoder.CTC
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown criterion %q\n", *criterion)
		os.Exit(1)
	}

	var smear trie.SmearingMode
	switch *smearing {
	case "none":
		smear = trie.SmearNone
	case "max":
		smear = trie.SmearMax
	case "logadd":
		smear = trie.SmearLogAdd
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown smearing mode %q\n", *smearing)
		os.Exit(1)
	}

	engineOpts := []lexdecode.Option{
		lexdecode.WithDecoderOptions(opts),
		lexdecode.WithSmearing(smear),
		lexdecode.WithSilenceToken(*silTok),
		lexdecode.WithOOVLogProb(*oovProb),
	}
	if *blankTok != "" {
		engineOpts = append(engineOpts, lexdecode.WithBlankToken(*blankTok))
	}

	engine, err := lexdecode.NewEngine(*lexPath, *lmPath, *tokPath, engineOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	em, T, N, err := readEmissions(*emPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if N != engine.Tokens.Size() {
		fmt.Fprintf(os.Stderr, "Error: emissions have %d columns, alphabet has %d tokens\n", N, engine.Tokens.Size())
		os.Exit(1)
	}

	results, err := engine.DecodeAll(em, T, N)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *nbest < len(results) {
		results = results[:*nbest]
	}

	for _, r := range results {
		fmt.Println(strings.Join(r.Words, " "))
		if *verbose {
			fmt.Fprintf(os.Stderr, "Score: %.4f\n", r.Score)
			fmt.Fprintf(os.Stderr, "Tokens: %s\n", strings.Join(r.Tokens, " "))
		}
	}
}

// readEmissions reads T lines of N whitespace-separated scores. Every line
// must have the same number of columns.
func readEmissions(path string) ([]float32, int, int, error) {
	var in *os.File
	if path == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, 0, err
		}
		defer f.Close()
		in = f
	}

	var em []float32
	T, N := 0, 0
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if N == 0 {
			N = len(fields)
		} else if len(fields) != N {
			return nil, 0, 0, fmt.Errorf("line %d: %d columns, want %d", T+1, len(fields), N)
		}
		for _, fv := range fields {
			v, err := strconv.ParseFloat(fv, 32)
			if err != nil {
				return nil, 0, 0, fmt.Errorf("line %d: parse %q: %w", T+1, fv, err)
			}
			em = append(em, float32(v))
		}
		T++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, 0, err
	}
	return em, T, N, nil
}
