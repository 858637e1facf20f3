package pagination

// ControlType selects how a consumer pages through favorites.
type ControlType string

const (
	// ControlInfinity appends pages as the consumer scrolls.
	ControlInfinity ControlType = "infinity"

	// ControlPages shows discrete numbered pages.
	ControlPages ControlType = "pages"
)

// DefaultPageSize is used when settings carry no page size.
const DefaultPageSize = 10

// Settings are the consumer's pagination preferences.
type Settings struct {
	ControlType ControlType `yaml:"control_type" json:"control_type"`
	InitialPage int         `yaml:"initial_page" json:"initial_page"`
	PageSize    int         `yaml:"page_size" json:"page_size"`
}

// DefaultSettings mirrors an infinite list starting at page 1.
func DefaultSettings() Settings {
	return Settings{
		ControlType: ControlInfinity,
		InitialPage: 1,
		PageSize:    DefaultPageSize,
	}
}

// EffectivePageSize returns PageSize, or DefaultPageSize when unset.
func (s Settings) EffectivePageSize() int {
	if s.PageSize > 0 {
		return s.PageSize
	}
	return DefaultPageSize
}

// State is the server-reported pagination of the last loaded page. It is
// replaced wholesale on every successful fetch, never merged.
type State struct {
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
	TotalPages  int `json:"total_pages"`
	Total       int `json:"total"`
	From        int `json:"from"`
	To          int `json:"to"`

	// Known is false until the first page has been loaded.
	Known bool `json:"-"`
}

// Initial returns the state before any fetch. In pages mode with an
// explicit InitialPage the zero-based cursor starts at InitialPage-1.
func Initial(s Settings) State {
	cursor := 0
	if s.ControlType == ControlPages && s.InitialPage >= 1 {
		cursor = s.InitialPage - 1
	}
	return State{
		CurrentPage: cursor,
		PageSize:    s.EffectivePageSize(),
	}
}

// HasMore reports whether pages after CurrentPage remain.
func (s State) HasMore() bool {
	return !s.Known || s.CurrentPage < s.TotalPages
}

// NextPage returns the page after CurrentPage.
func (s State) NextPage() int {
	return s.CurrentPage + 1
}
