package opgg

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseProfileURL extracts the Riot id and region from an op.gg profile URL
// such as https://www.op.gg/summoners/jp/Name-Tag or
// https://op.gg/lol/summoners/kr/Hide%20on%20bush-KR1. The tag is split off
// the last hyphen.
func ParseProfileURL(raw string) (displayID, region string, err error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", "", fmt.Errorf("opgg: bad url: %w", err)
	}
	if !strings.HasSuffix(strings.ToLower(u.Hostname()), "op.gg") {
		return "", "", fmt.Errorf("opgg: %q is not an op.gg url", raw)
	}
	parts := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i, p := range parts {
		if p != "summoners" || i+2 >= len(parts) {
			continue
		}
		region = strings.ToLower(parts[i+1])
		nameTag, err := url.PathUnescape(parts[i+2])
		if err != nil {
			return "", "", fmt.Errorf("opgg: bad profile path: %w", err)
		}
		cut := strings.LastIndexByte(nameTag, '-')
		if cut <= 0 || cut == len(nameTag)-1 {
			return "", "", fmt.Errorf("opgg: cannot split name and tag from %q", nameTag)
		}
		return nameTag[:cut] + "#" + nameTag[cut+1:], region, nil
	}
	return "", "", fmt.Errorf("opgg: %q is not a summoner profile url", raw)
}

// IsProfileURL reports whether s looks like an op.gg link.
func IsProfileURL(s string) bool {
	return strings.Contains(strings.ToLower(s), "op.gg/")
}
