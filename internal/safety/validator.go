// Package safety validates links against the domain and content policy
// before they are shown to a user.
package safety

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/metrics"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/monitoring"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/textnorm"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/urlx"
)

// ErrPolicyBlocked is wrapped by Verdict.Err for rejected links.
var ErrPolicyBlocked = errors.New("link blocked by safety policy")

// Reason names the rule that rejected a link.
type Reason string

const (
	ReasonInvalidURL       Reason = "invalid_url"
	ReasonHighRiskDomain   Reason = "high_risk_domain"
	ReasonDeniedDomain     Reason = "denied_domain"
	ReasonDeniedSubdomain  Reason = "denied_subdomain"
	ReasonNotAllowed       Reason = "not_allowed"
	ReasonSubdomainDepth   Reason = "subdomain_depth"
	ReasonAdSubdomain      Reason = "ad_subdomain"
	ReasonTrackingParam    Reason = "tracking_param"
	ReasonForbiddenKeyword Reason = "forbidden_keyword"
)

// BrandCategory is the allow-list category of domains owned by catalog brands.
const BrandCategory = "brand"

// Verdict is the outcome of validating one link.
type Verdict struct {
	Allowed  bool   `json:"allowed"`
	Reason   Reason `json:"reason,omitempty"`
	Category string `json:"category,omitempty"`
	HighRisk bool   `json:"highRisk,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Err returns nil for allowed links and an ErrPolicyBlocked wrap otherwise.
func (v Verdict) Err() error {
	if v.Allowed {
		return nil
	}
	if v.Detail != "" {
		return fmt.Errorf("%w: %s (%s)", ErrPolicyBlocked, v.Reason, v.Detail)
	}
	return fmt.Errorf("%w: %s", ErrPolicyBlocked, v.Reason)
}

func allow(category string) Verdict { return Verdict{Allowed: true, Category: category} }

func block(reason Reason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

// RiskLevel summarises a batch.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevelFor computes the batch risk: more than half blocked or more than
// two high-risk blocks is high; more than 30% blocked or any high-risk
// block is medium.
func RiskLevelFor(total, blocked, highRisk int) RiskLevel {
	if total <= 0 {
		return RiskLow
	}
	ratio := float64(blocked) / float64(total)
	switch {
	case ratio > 0.5 || highRisk > 2:
		return RiskHigh
	case ratio > 0.3 || highRisk > 0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// BlockedLink pairs a rejected link with its verdict.
type BlockedLink struct {
	Link    links.Link `json:"link"`
	Verdict Verdict    `json:"verdict"`
}

// BatchResult is the outcome of ValidateBatch.
type BatchResult struct {
	ValidLinks   []links.Link  `json:"validLinks"`
	BlockedLinks []BlockedLink `json:"blockedLinks"`
	RiskLevel    RiskLevel     `json:"riskLevel"`
}

// HighRiskCount returns the number of high-risk blocks.
func (r BatchResult) HighRiskCount() int {
	n := 0
	for _, b := range r.BlockedLinks {
		if b.Verdict.HighRisk {
			n++
		}
	}
	return n
}

// Recorder receives an audit event for every block.
type Recorder interface {
	RecordBlock(ctx context.Context, event monitoring.BlockEvent)
}

// BatchOptions annotates the audit events of a batch.
type BatchOptions struct {
	Option string
	Flow   string
}

// Validator applies the catalog's safety policy.
type Validator struct {
	src      catalog.Source
	logger   *observability.Logger
	recorder Recorder
}

// NewValidator creates a validator. logger and recorder may be nil.
func NewValidator(src catalog.Source, logger *observability.Logger, recorder Recorder) *Validator {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Validator{src: src, logger: logger.WithComponent("safety"), recorder: recorder}
}

// ValidateURL applies the domain policy and the URL structure checks.
func (v *Validator) ValidateURL(raw string) Verdict {
	return v.validateURL(v.src.Current(), raw)
}

// ValidateContent rejects links whose title or URL carries a forbidden keyword.
func (v *Validator) ValidateContent(title, raw string) Verdict {
	return v.validateContent(v.src.Current(), title, raw)
}

// Validate runs both policies on l.
func (v *Validator) Validate(l links.Link) Verdict {
	cat := v.src.Current()
	verdict := v.validateURL(cat, l.URL)
	if !verdict.Allowed {
		return verdict
	}
	if content := v.validateContent(cat, l.Title, l.URL); !content.Allowed {
		return content
	}
	return verdict
}

// ValidateBatch validates every link, records blocks and computes the risk level.
func (v *Validator) ValidateBatch(ctx context.Context, items []links.Link, opts BatchOptions) BatchResult {
	res := BatchResult{ValidLinks: []links.Link{}, BlockedLinks: []BlockedLink{}}
	for _, l := range items {
		verdict := v.Validate(l)
		if verdict.Allowed {
			res.ValidLinks = append(res.ValidLinks, l)
			continue
		}
		res.BlockedLinks = append(res.BlockedLinks, BlockedLink{Link: l, Verdict: verdict})
		v.record(ctx, l, verdict, opts)
	}
	res.RiskLevel = RiskLevelFor(len(items), len(res.BlockedLinks), res.HighRiskCount())
	metrics.BatchRiskTotal.WithLabelValues(string(res.RiskLevel)).Inc()

	if len(res.BlockedLinks) > 0 {
		v.logger.WithContext(ctx).Info().
			Str("option", opts.Option).
			Str("flow", opts.Flow).
			Int("total", len(items)).
			Int("blocked", len(res.BlockedLinks)).
			Int("high_risk", res.HighRiskCount()).
			Str("risk_level", string(res.RiskLevel)).
			Msg("Links blocked by safety policy")
	}
	return res
}

// Sanitize returns items with every blocked link replaced by a safe
// search-engine link for query (or the link title when query is empty).
func (v *Validator) Sanitize(ctx context.Context, items []links.Link, query, lang string, opts BatchOptions) []links.Link {
	out := make([]links.Link, 0, len(items))
	for _, l := range items {
		verdict := v.Validate(l)
		if verdict.Allowed {
			out = append(out, l)
			continue
		}
		v.record(ctx, l, verdict, opts)
		q := query
		if q == "" {
			q = l.Title
		}
		safe := v.SafeSearchURL(q, lang)
		out = append(out, links.Link{URL: safe, Title: l.Title, Domain: urlx.DomainOf(safe)})
	}
	return out
}

// SafeSearchURL returns a safe-search engine URL for query.
func (v *Validator) SafeSearchURL(query, lang string) string {
	cat := v.src.Current()
	if !cat.Supports(lang) {
		lang = cat.DefaultLanguage
	}
	r := strings.NewReplacer("{q}", url.QueryEscape(strings.TrimSpace(query)), "{lang}", lang)
	return r.Replace(cat.SafeSearchURL)
}

func (v *Validator) record(ctx context.Context, l links.Link, verdict Verdict, opts BatchOptions) {
	metrics.LinksBlockedTotal.WithLabelValues(string(verdict.Reason), strconv.FormatBool(verdict.HighRisk)).Inc()
	if v.recorder == nil {
		return
	}
	v.recorder.RecordBlock(ctx, monitoring.BlockEvent{
		Option:   opts.Option,
		URL:      l.URL,
		Title:    l.Title,
		Reason:   string(verdict.Reason),
		Category: verdict.Category,
		HighRisk: verdict.HighRisk,
		Flow:     opts.Flow,
	})
}

func (v *Validator) validateURL(cat *catalog.Catalog, raw string) Verdict {
	u, err := urlx.Parse(raw)
	if err != nil {
		return block(ReasonInvalidURL, raw)
	}
	host := u.Hostname()
	reg := urlx.RegistrableDomain(host)
	label := urlx.Label(reg)
	policy := cat.Safety

	if p, ok := matchAny(policy.HighRiskDeny, host, reg, label); ok {
		verdict := block(ReasonHighRiskDomain, p)
		verdict.HighRisk = true
		return verdict
	}
	if p, ok := matchAny(policy.Deny, host, reg, label); ok {
		return block(ReasonDeniedDomain, p)
	}
	subs := urlx.Subdomains(host)
	for _, s := range subs {
		if contains(policy.DeniedSubdomains, s) {
			return block(ReasonDeniedSubdomain, s)
		}
	}

	category, ok := allowCategory(cat, host, reg, label)
	if !ok {
		return block(ReasonNotAllowed, reg)
	}

	if depth := len(subs); depth > policy.MaxSubdomainDepth {
		return block(ReasonSubdomainDepth, strconv.Itoa(depth))
	}
	for _, s := range subs {
		if contains(policy.AdSubdomains, s) {
			return block(ReasonAdSubdomain, s)
		}
	}
	for key := range u.Query() {
		if isTrackingParam(policy.TrackingParams, key) {
			return block(ReasonTrackingParam, key)
		}
	}
	return allow(category)
}

func (v *Validator) validateContent(cat *catalog.Catalog, title, raw string) Verdict {
	text := textnorm.Fold(title) + " " + urlText(raw)
	for _, g := range cat.Forbidden() {
		if g.Matcher.Match(text) {
			verdict := block(ReasonForbiddenKeyword, g.Category)
			verdict.Category = g.Category
			verdict.HighRisk = g.HighRisk
			return verdict
		}
	}
	return Verdict{Allowed: true}
}

// allowCategory returns the allow-list category of a host. Categories are
// checked in name order so overlapping entries resolve deterministically.
func allowCategory(cat *catalog.Catalog, host, reg, label string) (string, bool) {
	names := make([]string, 0, len(cat.Safety.Allow))
	for name := range cat.Safety.Allow {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := matchAny(cat.Safety.Allow[name], host, reg, label); ok {
			return name, true
		}
	}
	for _, b := range cat.Brands {
		for _, d := range b.AllDomains() {
			if urlx.MatchesDomain(host, d) || reg == d {
				return BrandCategory, true
			}
		}
	}
	return "", false
}

// matchAny matches a host against policy patterns:
//
//	"example.com"  the domain and its subdomains
//	"amazon.*"     any registrable domain labelled amazon
//	"*.gouv.fr"    any host under the suffix
func matchAny(patterns []string, host, reg, label string) (string, bool) {
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case strings.HasPrefix(p, "*."):
			suffix := p[2:]
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return p, true
			}
		case strings.HasSuffix(p, ".*"):
			if label == strings.TrimSuffix(p, ".*") {
				return p, true
			}
		default:
			if urlx.MatchesDomain(host, p) || reg == p {
				return p, true
			}
		}
	}
	return "", false
}

func isTrackingParam(params []string, key string) bool {
	key = strings.ToLower(key)
	for _, p := range params {
		p = strings.ToLower(p)
		if strings.HasSuffix(p, "_") {
			if strings.HasPrefix(key, p) {
				return true
			}
			continue
		}
		if key == p {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// urlText turns a URL into folded words: separators become spaces and
// escapes are decoded.
func urlText(raw string) string {
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		raw = unescaped
	}
	raw = strings.Map(func(r rune) rune {
		switch r {
		case '/', '.', '-', '_', '?', '=', '&', '+', ':', '#', '%', ',':
			return ' '
		}
		return r
	}, raw)
	return textnorm.Fold(raw)
}
