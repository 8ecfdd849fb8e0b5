// Package datasheet provides keyword retrieval over product reference
// documents. It is the local counterpart of the hosted file-search tool: the
// datasheet is split into chunks at load time, queries are scored by token
// overlap, and the best chunks are handed to the model as tool output.
package datasheet

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/contoso/salesagent/core"
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// chunk is the internal representation of an indexed document fragment.
type chunk struct {
	id       string
	content  string
	tokens   map[string]int
	metadata map[string]any
}

// Index is an in-process core.DocumentStore. Concurrency is protected by an
// RWMutex; scoring is bag-of-words overlap which is plenty for a single
// datasheet. Swap for a vector index when the corpus grows.
type Index struct {
	mu     sync.RWMutex
	chunks []chunk
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{}
}

// LoadFile reads a text/markdown document, splits it into paragraph chunks
// and adds them to the index. The source file name is recorded as metadata.
func (ix *Index) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read datasheet %s: %w", path, err)
	}
	return ix.LoadText(path, string(data))
}

// LoadText splits raw document text into paragraph chunks and indexes them.
// Returns the number of chunks added.
func (ix *Index) LoadText(source, text string) (int, error) {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return 0, fmt.Errorf("document %s contains no indexable text", source)
	}

	added := 0
	for i, p := range paragraphs {
		id := fmt.Sprintf("%s#%d", source, i)
		if err := ix.Add(id, p, map[string]any{"source": source, "chunk": i}); err != nil {
			return added, err
		}
		added++
	}
	return added, nil
}

// Add indexes a single content chunk. Implements core.DocumentStore.
func (ix *Index) Add(id, content string, metadata map[string]any) error {
	tokens := tokenize(content)
	if len(tokens) == 0 {
		return fmt.Errorf("chunk %s contains no indexable tokens", id)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.chunks = append(ix.chunks, chunk{id: id, content: content, tokens: tokens, metadata: metadata})
	return nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// Search scores every chunk against the query by token overlap and returns
// the best matches, highest score first. A zero-score chunk is never
// returned. Implements core.DocumentStore.
func (ix *Index) Search(query string, limit int) ([]core.SearchResult, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return []core.SearchResult{}, nil
	}
	if limit <= 0 {
		limit = 3
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	results := make([]core.SearchResult, 0, len(ix.chunks))
	for _, c := range ix.chunks {
		score := overlapScore(queryTokens, c.tokens)
		if score == 0 {
			continue
		}
		md := make(map[string]any, len(c.metadata))
		for k, v := range c.metadata {
			md[k] = v
		}
		results = append(results, core.SearchResult{ID: c.id, Content: c.content, Score: score, Metadata: md})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// splitParagraphs breaks a document into blank-line separated blocks,
// keeping markdown headings attached to the paragraph that follows them.
func splitParagraphs(text string) []string {
	blocks := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")

	var out []string
	var pendingHeading string
	for _, b := range blocks {
		b = strings.TrimSpace(b)
		if b == "" {
			continue
		}
		if strings.HasPrefix(b, "#") && !strings.Contains(b, "\n") {
			pendingHeading = b
			continue
		}
		if pendingHeading != "" {
			b = pendingHeading + "\n" + b
			pendingHeading = ""
		}
		out = append(out, b)
	}
	if pendingHeading != "" {
		out = append(out, pendingHeading)
	}
	return out
}

// tokenize lowercases and extracts alphanumeric tokens with counts.
func tokenize(text string) map[string]int {
	tokens := map[string]int{}
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < 2 {
			continue
		}
		tokens[tok]++
	}
	return tokens
}

// overlapScore counts how many query tokens appear in the chunk, normalized
// by query size so longer queries do not automatically score higher.
func overlapScore(query, doc map[string]int) float64 {
	matched := 0
	for tok := range query {
		if _, ok := doc[tok]; ok {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	return float64(matched) / float64(len(query))
}
