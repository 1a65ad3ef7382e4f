package content

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"notebook-navigator/internal/settings"
	"notebook-navigator/internal/store"
	"notebook-navigator/internal/vault"
)

// Inline tags start a word with '#' and allow nested segments like
// #project/home. Pure-numeric tags are not tags.
var inlineTagRe = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_/-]+)`)

// TagsProvider collects a note's tags from inline #tags and, optionally,
// the frontmatter tags list.
type TagsProvider struct {
	vault *vault.Vault
}

func NewTagsProvider(v *vault.Vault) *TagsProvider {
	return &TagsProvider{vault: v}
}

func (p *TagsProvider) Kind() string { return store.KindTags }

func (p *TagsProvider) RelevantSettings() []string {
	return []string{settings.FieldFrontmatterTags}
}

func (p *TagsProvider) NeedsProcessing(rec *store.Record, file *vault.File, s settings.Settings) bool {
	return stale(store.KindTags, rec, file)
}

func (p *TagsProvider) ProcessFile(ctx context.Context, file *vault.File, rec *store.Record, s settings.Settings) (*store.ContentUpdate, bool, error) {
	note, err := readNote(ctx, p.vault, file)
	if err != nil {
		return nil, false, err
	}

	fm, body := parseFrontmatter(note)
	body = codeFenceRe.ReplaceAllString(body, " ")
	body = inlineCodeRe.ReplaceAllString(body, " ")

	seen := make(map[string]struct{})
	var tags []string
	add := func(tag string) {
		tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		tag = strings.Trim(tag, "/")
		if tag == "" || isNumeric(tag) {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}

	for _, m := range inlineTagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}
	if s.FrontmatterTags {
		for _, t := range frontmatterList(fm, "tags") {
			add(t)
		}
	}

	sort.Strings(tags)
	if tags == nil {
		tags = []string{}
	}
	return &store.ContentUpdate{Tags: &tags}, true, nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
