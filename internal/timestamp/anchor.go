package timestamp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var anchorRegex = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(\d{2})(\d{2})_(.+)$`)

// GenerateAnchor builds a comment anchor: the UTC date as YYYYMMDDHHmm,
// followed by "_" and the author with spaces replaced by underscores.
func GenerateAnchor(date time.Time, author string) string {
	date = date.UTC()
	anchor := fmt.Sprintf("%04d%02d%02d%02d%02d",
		date.Year(), int(date.Month()), date.Day(), date.Hour(), date.Minute())
	if author != "" {
		anchor += "_" + strings.ReplaceAll(author, " ", "_")
	}
	return anchor
}

// ParseAnchor extracts the date and author from a comment anchor.
func ParseAnchor(anchor string) (time.Time, string, bool) {
	m := anchorRegex.FindStringSubmatch(anchor)
	if m == nil {
		return time.Time{}, "", false
	}
	n := make([]int, 5)
	for i := range n {
		n[i], _ = strconv.Atoi(m[i+1])
	}
	date := time.Date(n[0], time.Month(n[1]), n[2], n[3], n[4], 0, 0, time.UTC)
	return date, m[6], true
}

// AnchorRegistry keeps the anchors issued during one page parse so that
// colliding anchors get a numeric suffix. Use one registry per parse, or
// Reset it between parses.
type AnchorRegistry struct {
	mu      sync.Mutex
	anchors map[string]struct{}
}

func NewAnchorRegistry() *AnchorRegistry {
	return &AnchorRegistry{anchors: make(map[string]struct{})}
}

// Register records an anchor as taken. Empty anchors are ignored.
func (r *AnchorRegistry) Register(anchor string) {
	if anchor == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anchors[anchor] = struct{}{}
}

// Resolve generates the anchor for date and author, appending "_2", "_3", …
// if it is already taken, and registers the result.
func (r *AnchorRegistry) Resolve(date time.Time, author string) string {
	base := GenerateAnchor(date, author)

	r.mu.Lock()
	defer r.mu.Unlock()

	anchor := base
	for n := 2; r.has(anchor); n++ {
		anchor = base + "_" + strconv.Itoa(n)
	}
	r.anchors[anchor] = struct{}{}
	return anchor
}

// Has reports whether anchor is registered.
func (r *AnchorRegistry) Has(anchor string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.has(anchor)
}

func (r *AnchorRegistry) has(anchor string) bool {
	_, ok := r.anchors[anchor]
	return ok
}

// Reset empties the registry.
func (r *AnchorRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.anchors = make(map[string]struct{})
}
