package content

import (
	"regexp"
	"strings"
)

var (
	codeFenceRe  = regexp.MustCompile("(?ms)^(```|~~~).*?^(```|~~~)[ \t]*$")
	inlineCodeRe = regexp.MustCompile("`([^`\n]*)`")
	wikiEmbedRe  = regexp.MustCompile(`!\[\[([^\]|]+)(?:\|[^\]]*)?\]\]`)
	mdImageRe    = regexp.MustCompile(`!\[[^\]]*\]\(\s*([^)\s]+)[^)]*\)`)
	mdLinkRe     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	wikiLinkRe   = regexp.MustCompile(`\[\[(?:[^\]|]*\|)?([^\]]*)\]\]`)
	headingRe    = regexp.MustCompile(`(?m)^#{1,6}[ \t]+`)
	blockquoteRe = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	listMarkerRe = regexp.MustCompile(`(?m)^[ \t]*(?:[-*+]|\d+[.)])[ \t]+`)
	emphasisRe   = regexp.MustCompile(`\*\*|__|~~|[*_]`)
	hruleRe      = regexp.MustCompile(`(?m)^[ \t]*(?:-{3,}|\*{3,}|_{3,})[ \t]*$`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// previewText reduces a note body to plain leading text of at most length
// runes. Markdown structure is stripped, link text is kept, embeds are
// dropped.
func previewText(body string, length int, skipCodeBlocks bool) string {
	if skipCodeBlocks {
		body = codeFenceRe.ReplaceAllString(body, " ")
	}
	body = wikiEmbedRe.ReplaceAllString(body, " ")
	body = mdImageRe.ReplaceAllString(body, " ")
	body = mdLinkRe.ReplaceAllString(body, "$1")
	body = wikiLinkRe.ReplaceAllString(body, "$1")
	body = headingRe.ReplaceAllString(body, "")
	body = blockquoteRe.ReplaceAllString(body, "")
	body = listMarkerRe.ReplaceAllString(body, "")
	body = hruleRe.ReplaceAllString(body, " ")
	body = inlineCodeRe.ReplaceAllString(body, "$1")
	body = emphasisRe.ReplaceAllString(body, "")
	body = strings.TrimSpace(spaceRe.ReplaceAllString(body, " "))

	if length <= 0 {
		return body
	}
	runes := []rune(body)
	if len(runes) <= length {
		return body
	}
	return strings.TrimSpace(string(runes[:length]))
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".bmp": true,
}

func isImageRef(ref string) bool {
	if strings.Contains(ref, "://") {
		return false
	}
	dot := strings.LastIndexByte(ref, '.')
	if dot < 0 {
		return false
	}
	return imageExts[strings.ToLower(ref[dot:])]
}

// firstEmbeddedImage returns the first local image referenced by the body,
// through either a wiki embed or a markdown image, whichever appears first.
// Embeds of non-image targets (other notes, PDFs, remote URLs) are ignored.
func firstEmbeddedImage(body string) string {
	best := ""
	bestIdx := -1
	for _, re := range []*regexp.Regexp{wikiEmbedRe, mdImageRe} {
		for _, loc := range re.FindAllStringSubmatchIndex(body, -1) {
			ref := strings.TrimSpace(body[loc[2]:loc[3]])
			if !isImageRef(ref) {
				continue
			}
			if bestIdx < 0 || loc[0] < bestIdx {
				best, bestIdx = ref, loc[0]
			}
			break
		}
	}
	return best
}
