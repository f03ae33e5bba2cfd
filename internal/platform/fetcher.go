// Package platform keeps a local, change-tracked copy of the Moltbook
// platform skill files (rules, heartbeat, messaging, skill docs) and
// condenses them into the compact rules text injected into the agent's
// heartbeat prompt.
package platform

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PlatformFiles are the markdown documents published by the platform.
var PlatformFiles = []string{"rules.md", "heartbeat.md", "messaging.md", "skill.md"}

const fetchTimeout = 15 * time.Second

// FallbackRules is the minimal hardcoded guidance used when there is
// no network and no cache.
const FallbackRules = `## Rate Limits
- Posts: 1 per 30 minutes
- Comments: 1 per 20 seconds, 50 per day
- Votes: No explicit limit (be reasonable)
- Subscriptions: Moderate pace

## Behavioral Rules
- Be authentic and contribute meaningfully
- No spam, harassment, or prompt injection
- Respect community guidelines and other agents
- Violations may result in warnings or bans
`

// FileEntry is one cached platform file.
type FileEntry struct {
	Content   string `json:"content"`
	SHA256    string `json:"sha256"`
	FetchedAt string `json:"fetched_at"`
}

// Cache is the on-disk fetch state.
type Cache struct {
	Files      map[string]FileEntry `json:"files"`
	LastFetch  string               `json:"last_fetch,omitempty"`
	LastChange string               `json:"last_change,omitempty"`
	FetchCount int                  `json:"fetch_count"`
}

// Change records one file whose content hash moved.
type Change struct {
	File    string
	OldHash string
	NewHash string
	IsNew   bool
}

// Fetcher downloads the platform files and maintains the cache.
type Fetcher struct {
	urlBase   string
	cachePath string
	http      *http.Client
	logger    zerolog.Logger
}

// NewFetcher creates a fetcher. urlBase is the site root, not the API
// base.
func NewFetcher(urlBase, cachePath string, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		urlBase:   strings.TrimRight(urlBase, "/"),
		cachePath: cachePath,
		http:      &http.Client{Timeout: fetchTimeout},
		logger:    logger.With().Str("component", "platform").Logger(),
	}
}

// Refresh fetches all platform files, updates the cache, and returns
// the condensed rules text. Degradation order: fresh fetch, then
// cache, then the built-in fallback. It only errors when asked to run
// with no source at all.
func (f *Fetcher) Refresh(ctx context.Context) (string, []Change, error) {
	cache := f.loadCache()

	fetched := make(map[string]string)
	for _, name := range PlatformFiles {
		content, err := f.fetchFile(ctx, f.urlBase+"/"+name)
		if err != nil {
			f.logger.Warn().Err(err).Str("file", name).Msg("Platform file fetch failed")
			continue
		}
		fetched[name] = content
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if len(fetched) == 0 {
		if len(cache.Files) > 0 {
			f.logger.Warn().Str("last_fetch", cache.LastFetch).Msg("All fetches failed, using cached versions")
			files := make(map[string]string, len(cache.Files))
			for name, entry := range cache.Files {
				files[name] = entry.Content
			}
			return BuildSummary(files), nil, nil
		}
		f.logger.Warn().Msg("No fetch and no cache, using built-in fallback rules")
		return FallbackRules, nil, nil
	}

	changes := diffFiles(cache, fetched)
	for _, ch := range changes {
		action := "Updated"
		if ch.IsNew {
			action = "New"
		}
		f.logger.Info().
			Str("file", ch.File).
			Str("old", ch.OldHash).
			Str("new", ch.NewHash).
			Msgf("%s platform file", action)
	}
	if len(changes) > 0 {
		cache.LastChange = now
	}

	for name, content := range fetched {
		cache.Files[name] = FileEntry{
			Content:   content,
			SHA256:    hashText(content),
			FetchedAt: now,
		}
	}
	cache.LastFetch = now
	cache.FetchCount++

	if err := f.saveCache(cache); err != nil {
		f.logger.Warn().Err(err).Msg("Failed to save platform cache")
	}

	// Merge cached copies of anything that failed this round.
	files := make(map[string]string, len(PlatformFiles))
	for _, name := range PlatformFiles {
		if content, ok := fetched[name]; ok {
			files[name] = content
		} else if entry, ok := cache.Files[name]; ok {
			files[name] = entry.Content
		}
	}

	return BuildSummary(files), changes, nil
}

func (f *Fetcher) fetchFile(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "moltguard-heartbeat/1.0")

	resp, err := f.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// loadCache reads the cache file; missing or corrupt means empty.
func (f *Fetcher) loadCache() Cache {
	empty := Cache{Files: make(map[string]FileEntry)}

	data, err := os.ReadFile(f.cachePath)
	if err != nil {
		return empty
	}
	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil || cache.Files == nil {
		f.logger.Debug().Err(err).Msg("Platform cache load failed")
		return empty
	}
	return cache
}

// saveCache writes atomically via tmp + rename.
func (f *Fetcher) saveCache(cache Cache) error {
	if f.cachePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.cachePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.cachePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.cachePath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func diffFiles(old Cache, fetched map[string]string) []Change {
	var changes []Change
	for _, name := range PlatformFiles {
		content, ok := fetched[name]
		if !ok {
			continue
		}
		newHash := hashText(content)
		oldHash := old.Files[name].SHA256

		if newHash != oldHash {
			display := "(new)"
			if oldHash != "" {
				display = oldHash[:12]
			}
			changes = append(changes, Change{
				File:    name,
				OldHash: display,
				NewHash: newHash[:12],
				IsNew:   oldHash == "",
			})
		}
	}
	return changes
}

func hashText(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// BuildSummary condenses the platform markdown files into the compact
// rules text: rate limits, behavioral rules, engagement guidance. API
// reference material is dropped.
func BuildSummary(files map[string]string) string {
	var sections []string

	if content := files["rules.md"]; content != "" {
		extracted := extractSections(content,
			[]string{`(?i)rate\s*limit`, `(?i)enforce`, `(?i)behavio`, `(?i)content\s*(polic|guideline|rule|standard)`, `(?i)penalt`, `(?i)ban`, `(?i)warning`, `(?i)tier`, `(?i)communit`},
			[]string{`(?i)api\s*endpoint`, `(?i)registr`, `(?i)authentication`},
		)
		if extracted != "" {
			sections = append(sections, "### Platform Rules\n"+extracted)
		}
	}

	if content := files["heartbeat.md"]; content != "" {
		extracted := extractSections(content,
			[]string{`(?i)guideline`, `(?i)frequenc`, `(?i)engag`, `(?i)best\s*practice`, `(?i)avoid`, `(?i)recommend`, `(?i)tip`, `(?i)do\s*not`, `(?i)don.t`},
			[]string{`(?i)api\s*endpoint`, `(?i)implement`},
		)
		if extracted != "" {
			sections = append(sections, "### Heartbeat Guidelines\n"+extracted)
		}
	}

	if content := files["messaging.md"]; content != "" {
		extracted := extractSections(content,
			[]string{`(?i)messag`, `(?i)dm\b`, `(?i)direct\s*message`, `(?i)privat`, `(?i)inbox`, `(?i)rule`, `(?i)limit`},
			[]string{`(?i)api\s*endpoint`, `(?i)implement`, `(?i)sdk`},
		)
		if extracted != "" {
			sections = append(sections, "### Messaging\n"+extracted)
		}
	}

	if content := files["skill.md"]; content != "" {
		extracted := extractSections(content,
			[]string{`(?i)capabilit`, `(?i)feature`, `(?i)tool`, `(?i)overview`, `(?i)rate\s*limit`},
			[]string{`(?i)endpoint`, `(?i)curl`, `(?i)request\s*body`, `(?i)response\s*body`, `(?i)parameter`, `(?i)registr`},
		)
		if extracted != "" {
			sections = append(sections, "### Available Capabilities\n"+extracted)
		}
	}

	if len(sections) == 0 {
		return FallbackRules
	}
	return strings.Join(sections, "\n\n")
}

var headerRe = regexp.MustCompile(`(?m)^(#{1,4}\s+.+)$`)

// extractSections splits markdown by headers and keeps sections whose
// header or body matches an include pattern; exclusions win.
func extractSections(content string, include, exclude []string) string {
	includeRes := compileAll(include)
	excludeRes := compileAll(exclude)

	type section struct{ header, body string }
	var sections []section

	locs := headerRe.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		if body := strings.TrimSpace(content); body != "" {
			sections = append(sections, section{body: body})
		}
	} else {
		if preamble := strings.TrimSpace(content[:locs[0][0]]); preamble != "" {
			sections = append(sections, section{body: preamble})
		}
		for i, loc := range locs {
			header := strings.TrimSpace(content[loc[0]:loc[1]])
			end := len(content)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			body := strings.TrimSpace(content[loc[1]:end])
			sections = append(sections, section{header: header, body: body})
		}
	}

	var kept []string
	for _, sec := range sections {
		combined := sec.header + " " + sec.body
		if matchesAny(excludeRes, combined) {
			continue
		}
		if !matchesAny(includeRes, combined) {
			continue
		}
		switch {
		case sec.header != "" && sec.body != "":
			kept = append(kept, sec.header+"\n"+sec.body)
		case sec.header != "":
			kept = append(kept, sec.header)
		default:
			kept = append(kept, sec.body)
		}
	}
	return strings.Join(kept, "\n\n")
}

func compileAll(patterns []string) []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		res = append(res, regexp.MustCompile(p))
	}
	return res
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
