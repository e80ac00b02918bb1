// Package resolver attaches action links to a decision option: it
// classifies the request, races the official and merchant searches under
// deadlines, filters and ranks the hits, and caches the outcome.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/action"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/brand"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/catalog"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/linkcache"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/locale"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/metrics"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/query"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/ranking"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/safety"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/search"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/urlx"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/verify"
)

const (
	kindOfficial = "official"
	kindMerchant = "merchant"

	flowBestLinks   = "best_links"
	flowFirstResult = "first_result"
)

// Config holds resolver configuration.
type Config struct {
	GlobalDeadline   time.Duration
	OfficialDeadline time.Duration
	MerchantDeadline time.Duration
	// MinOfficialBudget is the time that must remain before the official
	// search is attempted.
	MinOfficialBudget time.Duration
	NumResults        int
	MaxMerchants      int
	DefaultLanguage   string
}

// DefaultConfig returns the production deadlines and limits.
func DefaultConfig() Config {
	return Config{
		GlobalDeadline:    3500 * time.Millisecond,
		OfficialDeadline:  2500 * time.Millisecond,
		MerchantDeadline:  2500 * time.Millisecond,
		MinOfficialBudget: 500 * time.Millisecond,
		NumResults:        10,
		MaxMerchants:      2,
		DefaultLanguage:   "en",
	}
}

// Deps are the collaborators of a Resolver. Provider, Catalog and Caches
// are required.
type Deps struct {
	Catalog   catalog.Source
	Provider  search.Provider
	Verifier  verify.Verifier
	Caches    *linkcache.Caches
	Validator *safety.Validator
	Logger    *observability.Logger
}

// Resolver is the action-link resolution engine. It is safe for
// concurrent use.
type Resolver struct {
	cfg       Config
	src       catalog.Source
	locale    *locale.Classifier
	actions   *action.Classifier
	queries   *query.Builder
	brands    *brand.Detector
	scorer    *ranking.Scorer
	validator *safety.Validator
	provider  search.Provider
	verifier  verify.Verifier
	caches    *linkcache.Caches
	synth     *Synthesizer
	logger    *observability.Logger

	providerName string
}

// New creates a resolver.
func New(cfg Config, deps Deps) (*Resolver, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if deps.Provider == nil {
		return nil, fmt.Errorf("search provider is required")
	}
	if deps.Caches == nil {
		return nil, fmt.Errorf("caches are required")
	}

	def := DefaultConfig()
	if cfg.GlobalDeadline <= 0 {
		cfg.GlobalDeadline = def.GlobalDeadline
	}
	if cfg.OfficialDeadline <= 0 {
		cfg.OfficialDeadline = def.OfficialDeadline
	}
	if cfg.MerchantDeadline <= 0 {
		cfg.MerchantDeadline = def.MerchantDeadline
	}
	if cfg.MinOfficialBudget <= 0 {
		cfg.MinOfficialBudget = def.MinOfficialBudget
	}
	if cfg.NumResults <= 0 {
		cfg.NumResults = def.NumResults
	}
	if cfg.MaxMerchants <= 0 || cfg.MaxMerchants > 2 {
		cfg.MaxMerchants = def.MaxMerchants
	}

	logger := deps.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	validator := deps.Validator
	if validator == nil {
		validator = safety.NewValidator(deps.Catalog, logger, nil)
	}
	verifier := deps.Verifier
	if verifier == nil {
		verifier = verify.LocalVerifier{}
	}

	name := "search"
	if n, ok := deps.Provider.(interface{ Name() string }); ok {
		name = n.Name()
	}

	return &Resolver{
		cfg:          cfg,
		src:          deps.Catalog,
		locale:       locale.NewClassifier(deps.Catalog, cfg.DefaultLanguage),
		actions:      action.NewClassifier(deps.Catalog),
		queries:      query.NewBuilder(deps.Catalog),
		brands:       brand.NewDetector(deps.Catalog),
		scorer:       ranking.NewScorer(deps.Catalog),
		validator:    validator,
		provider:     deps.Provider,
		verifier:     verifier,
		caches:       deps.Caches,
		synth:        NewSynthesizer(deps.Catalog, cfg.MaxMerchants),
		logger:       logger.WithComponent("resolver"),
		providerName: name,
	}, nil
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config { return r.cfg }

// GetBestLinks resolves links for req. It never fails: timeouts, provider
// errors and empty results all degrade to a synthesized result.
func (r *Resolver) GetBestLinks(ctx context.Context, req links.Request) *links.ResolvedLinks {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.GlobalDeadline)
	defer cancel()

	p := r.prepare(req)
	log := r.logger.WithContext(ctx).With().
		Str("option", p.Option).
		Str("action", string(p.Action)).
		Str("vertical", string(p.Vertical)).
		Str("language", p.Language).
		Logger()

	if hit := r.lookup(ctx, p); hit != nil {
		r.observe("cache_hit", p.Action, start)
		log.Debug().Str("provider", hit.Provider).Msg("Links served from cache")
		return hit
	}

	type outcome struct {
		res      *links.ResolvedLinks
		official *links.Link
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		res, official, err := r.resolve(ctx, p)
		done <- outcome{res, official, err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-ctx.Done():
		o.err = fmt.Errorf("%w: global deadline of %s exceeded", ErrProviderTimeout, r.cfg.GlobalDeadline)
	}

	if o.err != nil {
		res := r.synth.Synthesize(p, o.official)
		r.observe("fallback", p.Action, start)
		log.Warn().
			Err(o.err).
			Str("reason", fallbackReason(o.err)).
			Dur("elapsed", time.Since(start)).
			Msg("Falling back to synthesized links")
		return res
	}

	r.store(ctx, p, o.res)
	r.observe("resolved", p.Action, start)
	log.Info().
		Str("provider", o.res.Provider).
		Bool("official", o.res.Official != nil).
		Int("merchants", len(o.res.Merchants)).
		Dur("elapsed", time.Since(start)).
		Msg("Links resolved")
	return o.res.Clone()
}

// GetFirstResultURL returns the single best verified link for req. It
// fails with ErrNoPertinentResults when no link survives the safety policy
// and verification.
func (r *Resolver) GetFirstResultURL(ctx context.Context, req links.Request) (*links.FirstResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.GlobalDeadline)
	defer cancel()

	p := r.prepare(req)
	log := r.logger.WithContext(ctx).With().Str("option", p.Option).Logger()

	var (
		candidates []links.Link
		provider   string
		fromCache  bool
	)
	if e, ok := r.caches.ActionLinks.Get(ctx, p.ActionKey); ok {
		if e.Value.Official != nil {
			candidates = append(candidates, *e.Value.Official)
		}
		candidates = append(candidates, e.Value.Merchants...)
		provider, fromCache = e.Provider, true
	}

	if len(candidates) == 0 {
		resp, err := r.search(ctx, kindMerchant, r.cfg.MerchantDeadline, search.Request{
			Query:      p.Query,
			Language:   p.Language,
			Vertical:   string(p.Vertical),
			NumResults: r.cfg.NumResults,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoPertinentResults, err)
		}
		provider = resp.Provider
		for _, res := range resp.Results {
			candidates = append(candidates, links.Link{URL: res.URL, Title: res.Title, Domain: urlx.DomainOf(res.URL)})
		}
	}

	batch := r.validator.ValidateBatch(ctx, candidates, safety.BatchOptions{Option: p.Option, Flow: flowFirstResult})
	if len(batch.ValidLinks) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoPertinentResults, ErrPolicyBlocked)
	}

	verifications := r.verify(ctx, batch.ValidLinks)
	for _, v := range verifications {
		if !v.Usable() {
			continue
		}
		target := v.Target()
		if target != v.URL && !r.validator.ValidateURL(target).Allowed {
			continue
		}
		log.Debug().Str("url", target).Bool("from_cache", fromCache).Msg("First result selected")
		return &links.FirstResult{URL: target, Title: v.Title, Provider: provider, FromCache: fromCache}, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrNoPertinentResults, ErrVerificationFailed)
}

// Classify exposes the classification of req without resolving it.
func (r *Resolver) Classify(req links.Request) Classification {
	p := r.prepare(req)
	c := Classification{
		Language: p.Language,
		Vertical: p.Vertical,
		Action:   p.Action,
		Rule:     p.Rule,
		City:     p.City,
		Query:    p.Query,
	}
	if p.Brand != nil {
		c.Brand = p.Brand.Brand.ID
		c.OfficialQuery = p.Official
	}
	return c
}

// Classification is the outcome of the classifiers for one request.
type Classification struct {
	Language      string         `json:"language"`
	Vertical      links.Vertical `json:"vertical"`
	Action        links.Action   `json:"action"`
	Rule          string         `json:"rule"`
	City          string         `json:"city,omitempty"`
	Brand         string         `json:"brand,omitempty"`
	Query         string         `json:"query"`
	OfficialQuery string         `json:"officialQuery,omitempty"`
}

func (r *Resolver) prepare(req links.Request) plan {
	option := strings.TrimSpace(req.Option)
	text := strings.TrimSpace(option + " " + req.Question)
	loc := r.locale.Classify(text, req.Language, req.Vertical)

	dec := r.actions.Classify(action.Input{
		Option:   option,
		Question: req.Question,
		Language: loc.Language,
		Vertical: loc.Vertical,
	})

	p := plan{
		Option:   option,
		Question: req.Question,
		Language: loc.Language,
		Vertical: loc.Vertical,
		Action:   dec.Action,
		Rule:     dec.Rule,
		City:     dec.City,
	}
	p.Query = r.queries.Merchant(option, p.Language, p.Vertical, p.Action, p.City)
	if m, ok := r.brands.Detect(option, p.Language); ok && len(m.Domains) > 0 {
		p.Brand = &m
		p.Official = r.queries.Official(option, p.Language, m.Brand)
	}
	p.ActionKey = linkcache.ActionLinkKey(option, string(p.Vertical), p.Language)
	p.SearchKey = linkcache.SearchKey(p.Query, string(p.Vertical))
	return p
}

// lookup checks the action-link tier, then the search tier.
func (r *Resolver) lookup(ctx context.Context, p plan) *links.ResolvedLinks {
	for _, tier := range []*linkcache.Tier[links.ResolvedLinks]{r.caches.ActionLinks, r.caches.Search} {
		if e, ok := tier.Get(ctx, cacheKey(tier, p)); ok {
			out := e.Value.Clone()
			out.FromCache = true
			return out
		}
	}
	return nil
}

func (r *Resolver) store(ctx context.Context, p plan, res *links.ResolvedLinks) {
	meta := linkcache.Meta{ActionType: string(res.ActionType), Provider: res.Provider}
	for _, tier := range []*linkcache.Tier[links.ResolvedLinks]{r.caches.ActionLinks, r.caches.Search} {
		if err := tier.Set(ctx, cacheKey(tier, p), *res.Clone(), meta); err != nil {
			r.logger.Warn().Err(err).Str("tier", tier.Name()).Msg("Failed to persist cache tier")
		}
	}
}

func cacheKey(tier *linkcache.Tier[links.ResolvedLinks], p plan) string {
	if tier.Name() == linkcache.TierSearch {
		return p.SearchKey
	}
	return p.ActionKey
}

// resolve runs both searches and assembles the result. On error the
// official link found so far, if any, is returned for the fallback.
func (r *Resolver) resolve(ctx context.Context, p plan) (*links.ResolvedLinks, *links.Link, error) {
	var (
		wg                    sync.WaitGroup
		officialResp          *search.Response
		merchantResp          *search.Response
		officialErr, merchErr error
	)

	if p.Brand != nil && r.budget(ctx) >= r.cfg.MinOfficialBudget {
		wg.Add(1)
		go func() {
			defer wg.Done()
			officialResp, officialErr = r.search(ctx, kindOfficial, r.cfg.OfficialDeadline, search.Request{
				Query:      p.Official,
				Language:   p.Language,
				Vertical:   string(p.Vertical),
				NumResults: r.cfg.NumResults,
				SiteBias:   p.Brand.Domains,
			})
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		merchantResp, merchErr = r.search(ctx, kindMerchant, r.cfg.MerchantDeadline, search.Request{
			Query:      p.Query,
			Language:   p.Language,
			Vertical:   string(p.Vertical),
			NumResults: r.cfg.NumResults,
		})
	}()
	wg.Wait()

	if officialErr != nil {
		r.logger.WithContext(ctx).Debug().Err(officialErr).Str("option", p.Option).Msg("Official search failed")
	}

	var cands []Candidate
	cands = append(cands, r.partition(p, officialResp, true)...)
	cands = append(cands, r.partition(p, merchantResp, false)...)
	official, merchants := split(r.validate(ctx, p, cands))

	officialLink := r.pickOfficial(p, official)
	if merchErr != nil {
		return nil, officialLink, merchErr
	}
	if ctx.Err() != nil {
		return nil, officialLink, fmt.Errorf("%w: %v", ErrProviderTimeout, ctx.Err())
	}

	chosen := r.rankMerchants(p, merchants, officialLink)
	if officialLink == nil && len(chosen) == 0 {
		return nil, nil, ErrNoResults
	}
	if officialLink == nil && p.Brand != nil {
		officialLink = r.brands.OfficialLink(*p.Brand, p.Language)
	}

	return &links.ResolvedLinks{
		Official:   officialLink,
		Merchants:  chosen,
		Maps:       mapsLink(r.src.Current(), p),
		ActionType: p.Action,
		Provider:   merchantResp.Provider,
	}, officialLink, nil
}

// budget is the time left before the global deadline.
func (r *Resolver) budget(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return r.cfg.GlobalDeadline
	}
	return time.Until(deadline)
}

// search calls the provider under its own sub-deadline. Whichever of the
// provider and the deadline settles first wins; the losing call is
// cancelled with its context.
func (r *Resolver) search(ctx context.Context, kind string, d time.Duration, req search.Request) (*search.Response, error) {
	sctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type answer struct {
		resp *search.Response
		err  error
	}
	ch := make(chan answer, 1)
	start := time.Now()
	go func() {
		resp, err := r.provider.Search(sctx, req)
		ch <- answer{resp, err}
	}()

	var a answer
	select {
	case a = <-ch:
	case <-sctx.Done():
		a.err = fmt.Errorf("%w: %s search after %s", ErrProviderTimeout, kind, time.Since(start).Round(time.Millisecond))
	}

	status := "ok"
	switch {
	case a.err != nil && errors.Is(a.err, ErrProviderTimeout):
		status = "timeout"
	case a.err != nil && sctx.Err() != nil:
		status = "timeout"
		a.err = fmt.Errorf("%w: %v", ErrProviderTimeout, a.err)
	case a.err != nil:
		status = "error"
		if !errors.Is(a.err, ErrProviderError) {
			a.err = fmt.Errorf("%w: %v", ErrProviderError, a.err)
		}
	case a.resp == nil || len(a.resp.Results) == 0:
		status = "empty"
		a.err = ErrNoResults
	}

	provider := r.providerName
	if a.resp != nil && a.resp.Provider != "" {
		provider = a.resp.Provider
	}
	metrics.ProviderCallsTotal.WithLabelValues(provider, kind, status).Inc()
	metrics.ProviderDurationSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if a.err != nil {
		return nil, a.err
	}
	if a.resp.Provider == "" {
		a.resp.Provider = r.providerName
	}
	return a.resp, nil
}

// partition tags provider hits: pages on the detected brand's domains are
// official candidates, everything else is a merchant candidate.
func (r *Resolver) partition(p plan, resp *search.Response, fromOfficial bool) []Candidate {
	if resp == nil {
		return nil
	}
	out := make([]Candidate, 0, len(resp.Results))
	for i, res := range resp.Results {
		l := links.Link{URL: strings.TrimSpace(res.URL), Title: strings.TrimSpace(res.Title), Domain: urlx.DomainOf(res.URL)}
		if l.Domain == "" {
			continue
		}
		if p.Brand != nil && r.brands.IsOfficialDomain(l.URL, p.Brand.Brand) {
			out = append(out, OfficialCandidate{Link: l, Position: i, FromOfficialSearch: fromOfficial})
			continue
		}
		if fromOfficial {
			// off-brand hits of the official search are not merchant material
			continue
		}
		out = append(out, MerchantCandidate{Link: l, Position: i})
	}
	return out
}

// validate drops candidates rejected by the safety policy.
func (r *Resolver) validate(ctx context.Context, p plan, cands []Candidate) []Candidate {
	if len(cands) == 0 {
		return nil
	}
	batch := make([]links.Link, len(cands))
	for i, c := range cands {
		batch[i] = c.link()
	}
	res := r.validator.ValidateBatch(ctx, batch, safety.BatchOptions{Option: p.Option, Flow: flowBestLinks})

	valid := make(map[string]bool, len(res.ValidLinks))
	for _, l := range res.ValidLinks {
		valid[l.URL] = true
	}
	out := cands[:0]
	for _, c := range cands {
		if valid[c.link().URL] {
			out = append(out, c)
		}
	}
	return out
}

// pickOfficial prefers hits of the official search, then brand pages found
// by the merchant search, in provider order. A bare homepage is turned into
// a product page guess.
func (r *Resolver) pickOfficial(p plan, cands []OfficialCandidate) *links.Link {
	if p.Brand == nil || len(cands) == 0 {
		return nil
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.FromOfficialSearch && !best.FromOfficialSearch {
			best = c
		}
	}
	l := best.Link
	l.URL = r.brands.ConstructProductPageURL(l.URL, p.Option, p.Brand.Brand, p.Vertical)
	l.Domain = urlx.DomainOf(l.URL)
	return &l
}

// rankMerchants scores the merchant candidates and keeps the best ones,
// one per domain and never on the official domain.
func (r *Resolver) rankMerchants(p plan, cands []MerchantCandidate, official *links.Link) []links.Link {
	items := make([]links.Link, len(cands))
	for i, c := range cands {
		items[i] = c.Link
	}
	ranked := r.scorer.Rank(items, ranking.Context{
		Action:   p.Action,
		Vertical: p.Vertical,
		Language: p.Language,
		City:     p.City,
	})

	seen := make(map[string]bool)
	if official != nil {
		seen[official.Domain] = true
	}
	deduped := ranked[:0]
	for _, s := range ranked {
		d := s.Link.Domain
		if d == "" {
			d = urlx.DomainOf(s.Link.URL)
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		deduped = append(deduped, s)
	}
	return ranking.Top(deduped, r.cfg.MaxMerchants)
}

// verify checks links with the verifier and falls back to the local format
// check when the verifier is unavailable.
func (r *Resolver) verify(ctx context.Context, items []links.Link) []verify.Verification {
	in := make([]verify.Link, len(items))
	for i, l := range items {
		in[i] = verify.Link{URL: l.URL, Title: l.Title}
	}
	out, err := r.verifier.Verify(ctx, in)
	if err != nil {
		r.logger.WithContext(ctx).Warn().Err(err).Msg("Verifier unavailable, using local format check")
		out, _ = verify.LocalVerifier{}.Verify(ctx, in)
	}
	return out
}

func (r *Resolver) observe(outcome string, a links.Action, start time.Time) {
	metrics.ResolutionsTotal.WithLabelValues(outcome, string(a)).Inc()
	metrics.ResolutionDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}
