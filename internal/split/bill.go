// Package split partitions a snapshot of a cart into a main bill and a bounded
// number of split bills. Moves relocate one unit at a time, so the total
// quantity of every product across all buckets never changes.
package split

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rasapos/backend/internal/domain"
)

const DefaultMaxSplits = 3

var (
	ErrTooManySplits   = errors.New("split bill limit reached")
	ErrUnknownBucket   = errors.New("unknown split bucket")
	ErrItemNotInBucket = errors.New("item not in bucket")
)

// Bucket addresses the main bill (Main) or a split by zero-based index.
type Bucket int

const Main Bucket = -1

func (b Bucket) String() string {
	if b == Main {
		return "main"
	}
	return strconv.Itoa(int(b))
}

func ParseBucket(raw string) (Bucket, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "main" {
		return Main, nil
	}
	idx, err := strconv.Atoi(raw)
	if err != nil || idx < 0 {
		return Main, fmt.Errorf("%w: %q", ErrUnknownBucket, raw)
	}
	return Bucket(idx), nil
}

type Bill struct {
	main      []domain.CartItem
	splits    [][]domain.CartItem
	maxSplits int
}

func New(cart []domain.CartItem, maxSplits int) *Bill {
	if maxSplits < 1 {
		maxSplits = DefaultMaxSplits
	}
	return &Bill{main: copyItems(cart), maxSplits: maxSplits}
}

func (b *Bill) AddSplit() (Bucket, error) {
	if len(b.splits) >= b.maxSplits {
		return Main, ErrTooManySplits
	}
	b.splits = append(b.splits, nil)
	return Bucket(len(b.splits) - 1), nil
}

// Move relocates exactly one unit of productID from one bucket to another.
func (b *Bill) Move(productID string, from Bucket, to Bucket) error {
	if from == to {
		return nil
	}
	src, err := b.bucket(from)
	if err != nil {
		return err
	}
	dst, err := b.bucket(to)
	if err != nil {
		return err
	}

	idx := indexOf(*src, productID)
	if idx < 0 {
		return fmt.Errorf("%w: %s in %s", ErrItemNotInBucket, productID, from)
	}

	line := (*src)[idx]
	(*src)[idx].Quantity--
	if (*src)[idx].Quantity <= 0 {
		*src = append((*src)[:idx], (*src)[idx+1:]...)
	}

	if j := indexOf(*dst, productID); j >= 0 {
		(*dst)[j].Quantity++
		return nil
	}
	line.Quantity = 1
	*dst = append(*dst, line)
	return nil
}

func (b *Bill) Items(bucket Bucket) ([]domain.CartItem, error) {
	items, err := b.bucket(bucket)
	if err != nil {
		return nil, err
	}
	return copyItems(*items), nil
}

// Empty drops every line in a bucket after it has been paid. The bucket
// itself stays addressable.
func (b *Bill) Empty(bucket Bucket) error {
	items, err := b.bucket(bucket)
	if err != nil {
		return err
	}
	*items = nil
	return nil
}

func (b *Bill) SplitCount() int {
	return len(b.splits)
}

// Quantities sums every product across main and all splits.
func (b *Bill) Quantities() map[string]int {
	totals := make(map[string]int)
	for _, item := range b.main {
		totals[item.ID] += item.Quantity
	}
	for _, bucket := range b.splits {
		for _, item := range bucket {
			totals[item.ID] += item.Quantity
		}
	}
	return totals
}

func (b *Bill) IsEmpty() bool {
	for _, qty := range b.Quantities() {
		if qty > 0 {
			return false
		}
	}
	return true
}

type View struct {
	Main   []domain.CartItem   `json:"main"`
	Splits [][]domain.CartItem `json:"splits"`
	Max    int                 `json:"max_splits"`
}

func (b *Bill) View() View {
	splits := make([][]domain.CartItem, 0, len(b.splits))
	for _, bucket := range b.splits {
		splits = append(splits, copyItems(bucket))
	}
	return View{Main: copyItems(b.main), Splits: splits, Max: b.maxSplits}
}

func (b *Bill) bucket(bucket Bucket) (*[]domain.CartItem, error) {
	if bucket == Main {
		return &b.main, nil
	}
	if bucket < 0 || int(bucket) >= len(b.splits) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	return &b.splits[bucket], nil
}

func indexOf(items []domain.CartItem, productID string) int {
	for i, item := range items {
		if item.ID == productID {
			return i
		}
	}
	return -1
}

func copyItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		out = append(out, item)
	}
	return out
}
