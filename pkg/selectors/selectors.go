// Package selectors holds the ordered CSS selector lists used to recognise an
// authenticated page and to pull posts out of rendered activity pages.
// Every list is tried in order; earlier entries win. A YAML file can replace
// any list without touching extraction logic.
package selectors

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Session lists the markers of the post-login heuristic and the login form
type Session struct {
	Navigation []string `yaml:"navigation"`
	Profile    []string `yaml:"profile"`
	Search     []string `yaml:"search"`
	Messaging  []string `yaml:"messaging"`
	Feed       []string `yaml:"feed"`

	LoginIdentifier []string `yaml:"login_identifier"`
	LoginSecret     []string `yaml:"login_secret"`
	LoginSubmit     []string `yaml:"login_submit"`
}

// Extract lists the candidate locations for each post field
type Extract struct {
	Containers     []string `yaml:"containers"`
	Content        []string `yaml:"content"`
	Timestamp      []string `yaml:"timestamp"`
	TimestampAttrs []string `yaml:"timestamp_attrs"`
	Permalink      []string `yaml:"permalink"`
	ActivityLink   []string `yaml:"activity_link"`
	RenderIDAttrs  []string `yaml:"render_id_attrs"`
	Engagement     []string `yaml:"engagement"`
	MediaImage     []string `yaml:"media_image"`
	MediaVideo     []string `yaml:"media_video"`
}

// Set is the full selector configuration
type Set struct {
	Session Session `yaml:"session"`
	Extract Extract `yaml:"extract"`
}

// Default returns the compiled-in selector lists
func Default() *Set {
	return &Set{
		Session: Session{
			Navigation: []string{"nav.global-nav", "#global-nav", "header nav[aria-label]"},
			Profile:    []string{".global-nav__me", "img.global-nav__me-photo", `a[href*="/in/"][data-control-name="identity_welcome_message"]`},
			Search:     []string{"input.search-global-typeahead__input", `input[placeholder*="Search"]`, `input[aria-label*="Search"]`},
			Messaging:  []string{`a[href*="/messaging/"]`, "#msg-overlay"},
			Feed:       []string{".feed-shared-update-v2", `[data-urn*="urn:li:activity"]`, ".scaffold-finite-scroll__content"},

			LoginIdentifier: []string{"#username", `input[name="session_key"]`, `input[autocomplete="username"]`},
			LoginSecret:     []string{"#password", `input[name="session_password"]`, `input[type="password"]`},
			LoginSubmit:     []string{`button[type="submit"]`, `button[data-litms-control-urn="login-submit"]`, `input[type="submit"]`},
		},
		Extract: Extract{
			Containers: []string{
				"div.feed-shared-update-v2",
				`div[data-urn*="urn:li:activity"]`,
				"li.profile-creator-shared-feed-update__container",
				"div.occludable-update",
				"article",
			},
			Content: []string{
				".feed-shared-update-v2__description",
				".update-components-text",
				".feed-shared-text",
				".feed-shared-inline-show-more-text",
				`span[dir="ltr"]`,
				".break-words",
			},
			Timestamp:      []string{"time[datetime]", "[data-datetime]", "time"},
			TimestampAttrs: []string{"datetime", "data-datetime"},
			Permalink:      []string{`a[href*="/feed/update/"]`},
			ActivityLink:   []string{`a[href*="activity-"]`, `a[href*="urn:li:activity"]`, `a[href*="/posts/"]`},
			RenderIDAttrs:  []string{"data-urn", "data-id"},
			Engagement: []string{
				".social-details-social-counts__reactions-count",
				`button[aria-label*="reaction"]`,
				`button[aria-label*="like"]`,
				".social-details-social-counts__comments",
				`button[aria-label*="comment"]`,
				".social-details-social-counts__item",
			},
			MediaImage: []string{`img[src*="media"]`},
			MediaVideo: []string{"video"},
		},
	}
}

// Load reads path over the defaults; lists present in the file replace the
// compiled-in ones, absent lists keep their defaults. An empty path returns the defaults.
func Load(path string) (*Set, error) {
	set := Default()
	if path == "" {
		return set, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read selectors file: %w", err)
	}
	if err := yaml.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("failed to parse selectors file: %w", err)
	}
	if len(set.Extract.Containers) == 0 {
		return nil, fmt.Errorf("selectors file %s leaves no post container selectors", path)
	}
	return set, nil
}
