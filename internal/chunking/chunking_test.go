package chunking

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dooshek/polyvoice/internal/generation"
	"github.com/dooshek/polyvoice/internal/types"
)

type echoGenerator struct {
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	texts    []string
}

// GenerateAudio echoes the text back as audio. Earlier chunks take longer so
// concurrent runs finish out of order.
func (g *echoGenerator) GenerateAudio(_ context.Context, req generation.Request) generation.Result {
	n := g.calls.Add(1)
	cur := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		prev := g.maxSeen.Load()
		if cur <= prev || g.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}

	g.mu.Lock()
	g.texts = append(g.texts, req.GenText)
	g.mu.Unlock()

	time.Sleep(time.Duration(10-min(n, 10)) * 3 * time.Millisecond)
	return generation.Result{Success: true, AudioBase64: req.GenText, Provider: generation.ProviderVoiceClone}
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "w" + string(rune('a'+i%26))
	}
	return strings.Join(w, " ")
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxWords int
		want     []string
	}{
		{"blank", "   \n\t", 15, []string{}},
		{"short", "one two three", 15, []string{"one two three"}},
		{"exact multiple", "a b c d", 2, []string{"a b", "c d"}},
		{"remainder", "a b c d e", 2, []string{"a b", "c d", "e"}},
		{"collapses whitespace", "a\n\nb   c", 5, []string{"a b c"}},
		{"default size", words(31), 0, []string{words(15), strings.Join(strings.Fields(words(30))[15:], " "), "we"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.maxWords)
			if len(got) != len(tt.want) {
				t.Fatalf("Split() = %q, want %q", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSplitNeverExceedsMaxWords(t *testing.T) {
	for _, n := range []int{1, 14, 15, 16, 44, 45, 46} {
		for _, chunk := range Split(words(n), 15) {
			if c := len(strings.Fields(chunk)); c > 15 || c == 0 {
				t.Errorf("n=%d: chunk has %d words", n, c)
			}
		}
	}
}

func TestChunksOnlySplitsCloningMode(t *testing.T) {
	r := NewRunner(&echoGenerator{}, types.ChunkingConfig{MaxWords: 3})

	if got := r.Chunks(generation.Request{GenText: "a b c d e", Mode: types.ModeStandard}); len(got) != 1 {
		t.Errorf("standard mode chunks = %q", got)
	}
	if got := r.Chunks(generation.Request{GenText: "a b c d e", Mode: types.ModeCloning}); len(got) != 2 {
		t.Errorf("cloning mode chunks = %q", got)
	}
}

func TestRunPreservesOrderUnderConcurrency(t *testing.T) {
	gen := &echoGenerator{}
	r := NewRunner(gen, types.ChunkingConfig{MaxWords: 1, Concurrency: 4})

	text := "zero one two three four five six seven eight nine"
	results, err := r.Run(context.Background(), generation.Request{GenText: text, Mode: types.ModeCloning})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := strings.Fields(text)
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, res := range results {
		if res.Index != i || res.Text != want[i] || res.Result.AudioBase64 != want[i] {
			t.Errorf("result %d = %+v", i, res)
		}
	}
	if m := gen.maxSeen.Load(); m > 4 {
		t.Errorf("%d chunks in flight, limit is 4", m)
	}
}

func TestRunSequentialByDefault(t *testing.T) {
	gen := &echoGenerator{}
	r := NewRunner(gen, types.ChunkingConfig{MaxWords: 1})

	results, err := r.Run(context.Background(), generation.Request{GenText: "a b c", Mode: types.ModeCloning})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %+v", results)
	}
	if m := gen.maxSeen.Load(); m != 1 {
		t.Errorf("max in flight = %d, want 1", m)
	}
	if strings.Join(gen.texts, " ") != "a b c" {
		t.Errorf("call order = %v", gen.texts)
	}
}

func TestSeqIsLazyAndRestartable(t *testing.T) {
	gen := &echoGenerator{}
	r := NewRunner(gen, types.ChunkingConfig{MaxWords: 1})
	seq := r.Seq(context.Background(), generation.Request{GenText: "a b c d", Mode: types.ModeCloning})

	if n := gen.calls.Load(); n != 0 {
		t.Fatalf("Seq() generated %d chunks before ranging", n)
	}

	for res := range seq {
		if res.Index == 1 {
			break
		}
	}
	if n := gen.calls.Load(); n != 2 {
		t.Errorf("after early break calls = %d, want 2", n)
	}

	var texts []string
	for res := range seq {
		texts = append(texts, res.Text)
	}
	if strings.Join(texts, "") != "abcd" {
		t.Errorf("second range = %v", texts)
	}
	if n := gen.calls.Load(); n != 6 {
		t.Errorf("total calls = %d, want 6", n)
	}
}

func TestSeqStopsOnCancel(t *testing.T) {
	gen := &echoGenerator{}
	r := NewRunner(gen, types.ChunkingConfig{MaxWords: 1})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	count := 0
	for range r.Seq(ctx, generation.Request{GenText: "a b c d", Mode: types.ModeCloning}) {
		count++
		cancel()
	}
	if count != 1 {
		t.Errorf("yielded %d chunks after cancel, want 1", count)
	}
}
