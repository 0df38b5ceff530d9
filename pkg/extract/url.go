package extract

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind is the shape of a source page
type Kind int

const (
	KindUnknown Kind = iota
	KindProfile
	KindOrganization
)

func (k Kind) String() string {
	switch k {
	case KindProfile:
		return "profile"
	case KindOrganization:
		return "organization"
	default:
		return "unknown"
	}
}

// ActivityURL maps a source URL onto its recent-activity surface:
// /in/<slug> gains recent-activity/all/, /company/<slug> gains posts/.
// URLs already on the activity surface are only normalised.
func ActivityURL(sourceURL string) (string, Kind, error) {
	u, err := url.Parse(strings.TrimSpace(sourceURL))
	if err != nil {
		return "", KindUnknown, fmt.Errorf("invalid source URL %q: %w", sourceURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", KindUnknown, fmt.Errorf("source URL %q must be absolute", sourceURL)
	}

	u.RawQuery = ""
	u.Fragment = ""
	segments := splitPath(u.Path)

	kind := KindUnknown
	var suffix []string
	for i, seg := range segments {
		if i+1 >= len(segments) {
			break
		}
		switch strings.ToLower(seg) {
		case "in":
			kind = KindProfile
			segments = segments[:i+2]
			rest := splitPath(u.Path)[i+2:]
			if len(rest) > 0 && strings.EqualFold(rest[0], "recent-activity") {
				suffix = rest
			} else {
				suffix = []string{"recent-activity", "all"}
			}
		case "company", "school", "showcase":
			kind = KindOrganization
			segments = segments[:i+2]
			rest := splitPath(u.Path)[i+2:]
			if len(rest) > 0 && strings.EqualFold(rest[0], "posts") {
				suffix = rest
			} else {
				suffix = []string{"posts"}
			}
		default:
			continue
		}
		break
	}

	if kind == KindUnknown {
		return u.String(), kind, nil
	}

	u.Path = "/" + strings.Join(append(segments, suffix...), "/") + "/"
	return u.String(), kind, nil
}

func splitPath(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// canonicalize resolves href against base and drops query and fragment
func canonicalize(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme == "" || abs.Host == "" {
		return ""
	}
	abs.RawQuery = ""
	abs.Fragment = ""
	return abs.String()
}
