package move

import (
	"fmt"
	"sort"
	"sync"
)

// MarkerData is what a marker strategy may put into its markers.
type MarkerData struct {
	// SourceWikilink and TargetWikilink are "Page#Section" link targets.
	SourceWikilink string
	TargetWikilink string
	// Signature is the code the server replaces with the user's signature.
	Signature string
	// Timestamp is the first timestamp of the moved section, so that
	// archiving bots treat the source marker as dated by the discussion.
	Timestamp string
}

// MarkerStrategy produces the code left on both pages of a move.
type MarkerStrategy interface {
	// TargetMarkers returns code wrapped around the moved section's content
	// on the target page. Either part may be empty. A pair with a non-empty
	// end is joined to the content with line breaks; a lone begin is
	// inserted as is and carries its own line break.
	TargetMarkers(d MarkerData) (begin, end string)
	// SourceMarker returns the code that replaces the section's content on
	// the source page, or "" to remove the section entirely.
	SourceMarker(d MarkerData) string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]MarkerStrategy{
		"none":            noMarkers{},
		"moved-templates": templateMarkers{},
		"discussion-box":  boxMarkers{},
	}
)

// RegisterMarkerStrategy makes a strategy selectable by name, replacing any
// strategy registered under the same name.
func RegisterMarkerStrategy(name string, s MarkerStrategy) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = s
}

// LookupMarkerStrategy returns the strategy registered under name. An empty
// name selects "none".
func LookupMarkerStrategy(name string) (MarkerStrategy, error) {
	if name == "" {
		name = "none"
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown move marker strategy %q (known: %v)", name, markerNames())
	}
	return s, nil
}

func markerNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type noMarkers struct{}

func (noMarkers) TargetMarkers(MarkerData) (string, string) { return "", "" }
func (noMarkers) SourceMarker(MarkerData) string            { return "" }

// templateMarkers uses the {{Moved from}} and {{Moved to}} templates.
type templateMarkers struct{}

func (templateMarkers) TargetMarkers(d MarkerData) (string, string) {
	return fmt.Sprintf("{{Moved from|[[%s]]|%s}}\n", d.SourceWikilink, d.Signature), ""
}

func (templateMarkers) SourceMarker(d MarkerData) string {
	return fmt.Sprintf("{{Moved to|[[%s]]|%s}} <small>%s</small>", d.TargetWikilink, d.Signature, d.Timestamp)
}

// boxMarkers closes the moved discussion in a box on the target page.
type boxMarkers struct{}

func (boxMarkers) TargetMarkers(d MarkerData) (string, string) {
	return fmt.Sprintf("{{Discussion top|Moved from [[%s]]. %s}}", d.SourceWikilink, d.Signature), "{{Discussion bottom}}"
}

func (boxMarkers) SourceMarker(d MarkerData) string {
	return fmt.Sprintf("Moved to [[%s]]. %s <small>%s</small>", d.TargetWikilink, d.Signature, d.Timestamp)
}
