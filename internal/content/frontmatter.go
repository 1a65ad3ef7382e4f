package content

import (
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// splitFrontmatter separates a leading YAML frontmatter block from the note
// body. The block must open with a bare "---" on the first line and close
// with "---" or "...". An unterminated block is treated as body text.
func splitFrontmatter(note string) (block string, body string) {
	firstNL := strings.IndexByte(note, '\n')
	if firstNL < 0 {
		return "", note
	}
	if strings.TrimRight(note[:firstNL], " \r") != "---" {
		return "", note
	}

	rest := note[firstNL+1:]
	offset := 0
	for {
		nl := strings.IndexByte(rest[offset:], '\n')
		var line string
		next := len(rest)
		if nl >= 0 {
			line = rest[offset : offset+nl]
			next = offset + nl + 1
		} else {
			line = rest[offset:]
		}
		switch strings.TrimRight(line, " \r") {
		case "---", "...":
			return rest[:offset], rest[next:]
		}
		if nl < 0 {
			return "", note
		}
		offset = next
	}
}

// parseFrontmatter returns the decoded frontmatter mapping (nil when absent
// or malformed) and the note body.
func parseFrontmatter(note string) (map[string]any, string) {
	block, body := splitFrontmatter(note)
	if block == "" {
		return nil, body
	}
	var m map[string]any
	if err := yaml.Unmarshal([]byte(block), &m); err != nil {
		return nil, body
	}
	return m, body
}

// frontmatterString reads a scalar frontmatter value as a string. YAML
// decodes unquoted timestamps into time.Time, so those are normalized.
func frontmatterString(fm map[string]any, key string) string {
	if fm == nil || key == "" {
		return ""
	}
	switch v := fm[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case int, int64, float64:
		b, err := yaml.Marshal(v)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
	return ""
}

// frontmatterList reads a frontmatter value as a list of strings, accepting
// both YAML sequences and comma-separated scalars.
func frontmatterList(fm map[string]any, key string) []string {
	if fm == nil || key == "" {
		return nil
	}
	var out []string
	switch v := fm[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
