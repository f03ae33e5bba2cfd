package filter

import "github.com/harun/moltguard/pkg/reputation"

// Author is the normalized identity extracted from a content item.
type Author struct {
	Name string
}

// Known reports whether the author can be tracked and blocked. Empty
// and sentinel-unknown authors are neither.
func (a Author) Known() bool {
	return a.Name != "" && a.Name != reputation.UnknownAuthor
}

// ExtractAuthor normalizes the author identity from the shapes the
// upstream API produces:
//
//	{"author": {"name": "alice", ...}}  nested object
//	{"author": "alice"}                 plain string
//	{"author_name": "alice"}            flat field
//
// Anything else resolves to the unknown sentinel. Callers never inspect
// the raw shapes directly.
func ExtractAuthor(item map[string]any) Author {
	switch author := item["author"].(type) {
	case map[string]any:
		if name, ok := author["name"].(string); ok && name != "" {
			return Author{Name: name}
		}
		return Author{Name: reputation.UnknownAuthor}
	case string:
		if author != "" {
			return Author{Name: author}
		}
	}

	if name, ok := item["author_name"].(string); ok && name != "" {
		return Author{Name: name}
	}

	return Author{Name: reputation.UnknownAuthor}
}
