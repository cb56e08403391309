// Package content resolves workflow content references into the source text
// handed to the planning and writing passes.
package content

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	// MaxTotalChars bounds the resolved source text as a whole.
	MaxTotalChars = 100_000
	// MaxItemChars bounds each individual item before concatenation.
	MaxItemChars = 15_000
)

var ErrContentNotFound = errors.New("content not found")

// Resolver turns a content reference into source text. Implementations apply
// the content budgets so no prompt ever carries unbounded input.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (string, error)
}

// Item is one titled piece of source material.
type Item struct {
	Title string
	Text  string
}

// Library resolves references against an in-memory collection of items. A
// reference selects items by title prefix; an empty reference selects
// everything.
type Library struct {
	items []Item
}

func NewLibrary(items []Item) *Library {
	return &Library{items: items}
}

func (l *Library) Resolve(_ context.Context, ref string) (string, error) {
	var selected []Item

	for _, item := range l.items {
		if ref == "" || strings.HasPrefix(item.Title, ref) {
			selected = append(selected, item)
		}
	}

	if len(selected) == 0 {
		return "", fmt.Errorf("no items match reference %q: %w", ref, ErrContentNotFound)
	}

	return Assemble(selected), nil
}

// Assemble concatenates titled items into one bounded text block. Each item is
// clipped to MaxItemChars and assembly stops once MaxTotalChars is reached, so
// earlier items win under pressure.
func Assemble(items []Item) string {
	var b strings.Builder

	for _, item := range items {
		text := clip(item.Text, MaxItemChars)

		block := text
		if item.Title != "" {
			block = "## " + item.Title + "\n\n" + text
		}

		if b.Len() > 0 {
			block = "\n\n" + block
		}

		remaining := MaxTotalChars - b.Len()
		if remaining <= 0 {
			break
		}

		b.WriteString(clip(block, remaining))
	}

	return b.String()
}

// FileResolver reads content from files on disk, used by the API binary for
// file:// style references.
type FileResolver struct{}

func NewFileResolver() *FileResolver {
	return &FileResolver{}
}

func (r *FileResolver) Resolve(_ context.Context, ref string) (string, error) {
	path := strings.TrimPrefix(ref, "file://")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("content file %s: %w", path, ErrContentNotFound)
		}

		return "", fmt.Errorf("failed to read content file %s: %w", path, err)
	}

	return clip(string(data), MaxTotalChars), nil
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max]
}
