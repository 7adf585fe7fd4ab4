package notification

import (
	"regexp"
	"strings"
)

var (
	mentionPattern = regexp.MustCompile(`(^|[^\w])@([a-zA-Z0-9._-]{2,50})`)
	hashtagPattern = regexp.MustCompile(`(^|[^\w])#([a-zA-Z0-9_]{2,50})`)
)

// ParseMentions returns the distinct @handles in text, in order of first
// appearance. Handles are compared case-insensitively; an @ preceded by a
// word character (an email address) is not a mention, and trailing dots or
// dashes are sentence punctuation.
func ParseMentions(text string) []string {
	return distinctMatches(mentionPattern, text)
}

// ParseHashtags returns the distinct #tags in text.
func ParseHashtags(text string) []string {
	return distinctMatches(hashtagPattern, text)
}

func distinctMatches(re *regexp.Regexp, text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		tag := strings.TrimRight(m[2], ".-")
		if len(tag) < 2 {
			continue
		}
		key := strings.ToLower(tag)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tag)
	}
	return out
}
