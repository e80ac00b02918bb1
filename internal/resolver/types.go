package resolver

import (
	"github.com/spherical-ai/spherical/libs/link-engine/internal/brand"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
)

// Candidate is a provider hit on its way to a ResolvedLinks. It is either
// an OfficialCandidate or a MerchantCandidate.
type Candidate interface {
	link() links.Link
}

// OfficialCandidate is a hit on one of the detected brand's domains.
type OfficialCandidate struct {
	Link     links.Link
	Position int
	// FromOfficialSearch is false for brand pages found by the merchant search.
	FromOfficialSearch bool
}

// MerchantCandidate is any other hit.
type MerchantCandidate struct {
	Link     links.Link
	Position int
}

func (c OfficialCandidate) link() links.Link { return c.Link }
func (c MerchantCandidate) link() links.Link { return c.Link }

// plan is the classified request the orchestrator works from.
type plan struct {
	Option   string
	Question string
	Language string
	Vertical links.Vertical
	Action   links.Action
	Rule     string
	City     string

	Brand    *brand.Match
	Query    string
	Official string

	ActionKey string
	SearchKey string
}

// split returns the candidates grouped by variant, keeping their order.
func split(cands []Candidate) (official []OfficialCandidate, merchant []MerchantCandidate) {
	for _, c := range cands {
		switch v := c.(type) {
		case OfficialCandidate:
			official = append(official, v)
		case MerchantCandidate:
			merchant = append(merchant, v)
		default:
			panic("resolver: unknown candidate type")
		}
	}
	return official, merchant
}
