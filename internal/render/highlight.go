package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// maxWorkers bounds concurrent background highlighting.
const maxWorkers = 4

// engine is the per-theme highlighting state. It is built once per theme
// and shared by every block rendered with that theme.
type engine struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

type highlighter struct {
	engines sync.Map // theme -> *engine
	built   atomic.Int32
	cache   *blockCache
	sync    bool
	onReady func()
	sem     chan struct{}

	mu       sync.Mutex
	inflight map[string]struct{}
	changed  chan struct{}
}

func newHighlighter(cacheSize int, synchronous bool, onReady func()) *highlighter {
	return &highlighter{
		cache:    newBlockCache(cacheSize),
		sync:     synchronous,
		onReady:  onReady,
		sem:      make(chan struct{}, maxWorkers),
		inflight: make(map[string]struct{}),
		changed:  make(chan struct{}),
	}
}

func (h *highlighter) engine(theme string) *engine {
	if e, ok := h.engines.Load(theme); ok {
		return e.(*engine)
	}
	e := &engine{
		style:     styles.Get(theme),
		formatter: chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4)),
	}
	actual, loaded := h.engines.LoadOrStore(theme, e)
	if !loaded {
		h.built.Add(1)
	}
	return actual.(*engine)
}

func blockKey(theme, lang, code string) string {
	sum := sha256.Sum256([]byte(theme + "\x00" + lang + "\x00" + code))
	return hex.EncodeToString(sum[:])
}

// Lookup returns highlighted HTML for the block if it is ready. Otherwise it
// schedules the work and reports false; the caller shows a plain block in
// the meantime.
func (h *highlighter) Lookup(theme, lang, code string) (string, bool) {
	key := blockKey(theme, lang, code)
	if html, ok := h.cache.Get(key); ok {
		return html, true
	}
	if h.sync {
		html, err := h.highlight(theme, lang, code)
		if err != nil {
			return "", false
		}
		h.cache.Put(key, html)
		return html, true
	}
	h.schedule(key, theme, lang, code)
	return "", false
}

func (h *highlighter) schedule(key, theme, lang, code string) {
	h.mu.Lock()
	if _, ok := h.inflight[key]; ok {
		h.mu.Unlock()
		return
	}
	h.inflight[key] = struct{}{}
	h.mu.Unlock()

	go func() {
		h.sem <- struct{}{}
		html, err := h.highlight(theme, lang, code)
		<-h.sem
		if err == nil {
			h.cache.Put(key, html)
		}

		h.mu.Lock()
		delete(h.inflight, key)
		close(h.changed)
		h.changed = make(chan struct{})
		h.mu.Unlock()

		if err == nil && h.onReady != nil {
			h.onReady()
		}
	}()
}

func (h *highlighter) highlight(theme, lang, code string) (string, error) {
	e := h.engine(theme)
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenise %s: %w", lang, err)
	}
	var buf strings.Builder
	if err := e.formatter.Format(&buf, e.style, iterator); err != nil {
		return "", fmt.Errorf("format %s: %w", lang, err)
	}
	return buf.String(), nil
}

// Pending reports how many blocks are still being highlighted.
func (h *highlighter) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.inflight)
}

// Wait blocks until no highlighting is in flight or ctx is done.
func (h *highlighter) Wait(ctx context.Context) error {
	for {
		h.mu.Lock()
		n := len(h.inflight)
		ch := h.changed
		h.mu.Unlock()
		if n == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
