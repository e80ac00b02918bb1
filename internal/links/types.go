// Package links defines the request and response types shared by the
// classifiers, the resolver and the transport layers.
package links

// Action is what the user is expected to do with an option.
type Action string

const (
	ActionDirections Action = "directions"
	ActionReserve    Action = "reserve"
	ActionBuy        Action = "buy"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionDirections, ActionReserve, ActionBuy:
		return true
	}
	return false
}

// Vertical is the domain an option belongs to. The zero value means none.
type Vertical string

const (
	VerticalNone          Vertical = ""
	VerticalDining        Vertical = "dining"
	VerticalAccommodation Vertical = "accommodation"
	VerticalTravel        Vertical = "travel"
	VerticalAutomotive    Vertical = "automotive"
	VerticalSoftware      Vertical = "software"
)

// Verticals lists the known verticals in a stable order.
var Verticals = []Vertical{
	VerticalDining,
	VerticalAccommodation,
	VerticalTravel,
	VerticalAutomotive,
	VerticalSoftware,
}

// ParseVertical returns the vertical named s, or VerticalNone.
func ParseVertical(s string) (Vertical, bool) {
	for _, v := range Verticals {
		if string(v) == s {
			return v, true
		}
	}
	return VerticalNone, false
}

// Request asks for links for one option of a decision.
type Request struct {
	Option   string `json:"option"`
	Question string `json:"question,omitempty"`
	Language string `json:"language,omitempty"`
	Vertical string `json:"vertical,omitempty"`
}

// Link is an actionable web link.
type Link struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Domain string `json:"domain"`
}

// MapsLink points at a maps search for a physical place.
type MapsLink struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ResolvedLinks is the engine's answer for one option. Merchants holds at
// most two links and Maps is set only for ActionDirections.
type ResolvedLinks struct {
	Official   *Link     `json:"official,omitempty"`
	Merchants  []Link    `json:"merchants"`
	Maps       *MapsLink `json:"maps,omitempty"`
	ActionType Action    `json:"actionType"`
	Provider   string    `json:"provider"`
	FromCache  bool      `json:"fromCache"`
}

// FirstResult is the single best link for the info/shopping flow.
type FirstResult struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Provider  string `json:"provider"`
	FromCache bool   `json:"fromCache"`
}

// Clone returns a deep copy so cached values are never shared with callers.
func (r *ResolvedLinks) Clone() *ResolvedLinks {
	if r == nil {
		return nil
	}
	out := *r
	if r.Official != nil {
		o := *r.Official
		out.Official = &o
	}
	if r.Maps != nil {
		m := *r.Maps
		out.Maps = &m
	}
	out.Merchants = append([]Link(nil), r.Merchants...)
	if out.Merchants == nil {
		out.Merchants = []Link{}
	}
	return &out
}
