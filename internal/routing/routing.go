// Package routing maps an application context and an optional query to a
// prompt template. Routing is data driven: an ordered rule table plus a
// handful of content detectors, so behavior changes are rule edits rather
// than code changes.
package routing

import (
	"fmt"
	"regexp"
	"sort"

	"glance/internal/logging"
	"glance/internal/perception"
	"glance/internal/template"
)

// Decision is the routing outcome for one request. Created per request,
// never persisted.
type Decision struct {
	Template   *template.Template
	Reason     string
	Confidence float64
	Variables  map[string]string
}

// Rule matches contexts to a template. A nil Condition matches on app type
// alone; a non-nil Condition must also hold.
type Rule struct {
	AppTypes   []perception.AppType
	Condition  func(*perception.ApplicationContext) bool
	TemplateID string
	Priority   int
	Reason     string
}

// matches reports whether the rule applies to the context.
func (r *Rule) matches(ctx *perception.ApplicationContext) bool {
	typeOK := false
	for _, at := range r.AppTypes {
		if at == ctx.Type {
			typeOK = true
			break
		}
	}
	if !typeOK {
		return false
	}
	return r.Condition == nil || r.Condition(ctx)
}

// explicitIntentPatterns short-circuit routing to the general assistant:
// the user is asking for a file operation, not about the screen content.
var explicitIntentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\brename\b.{0,40}\b(file|folder|them|these|this|it)\b`),
	regexp.MustCompile(`(?i)\borgani[sz]e\b.{0,40}\b(files?|folders?|downloads|desktop|them|these)\b`),
	regexp.MustCompile(`(?i)\b(sort|move|tidy( up)?)\b.{0,40}\b(files?|folders?|downloads)\b`),
	regexp.MustCompile(`(?i)\bclean up\b.{0,40}\b(folder|downloads|desktop)\b`),
}

// isExplicitIntent reports whether the query names a file operation
// directly.
func isExplicitIntent(query string) bool {
	if query == "" {
		return false
	}
	for _, re := range explicitIntentPatterns {
		if re.MatchString(query) {
			return true
		}
	}
	return false
}

// Router resolves templates from contexts via its rule table, pre-sorted
// descending by priority at construction.
type Router struct {
	registry *template.Registry
	rules    []Rule
}

// NewRouter builds a router over the registry with the default rule table.
func NewRouter(registry *template.Registry) *Router {
	r := &Router{registry: registry, rules: defaultRules()}
	r.sortRules()
	return r
}

// AddRule inserts a rule and re-sorts the table. Equal priorities keep
// insertion order.
func (r *Router) AddRule(rule Rule) {
	r.rules = append(r.rules, rule)
	r.sortRules()
}

func (r *Router) sortRules() {
	sort.SliceStable(r.rules, func(i, j int) bool {
		return r.rules[i].Priority > r.rules[j].Priority
	})
}

// Rules returns the rule table in evaluation order.
func (r *Router) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Route picks a template for the context and query. It is total: any
// well-formed context yields a decision, the general template backstopping
// everything. The returned error is assertion-grade only (a rule naming a
// template that is not registered) and is unreachable with the built-in
// table.
func (r *Router) Route(ctx *perception.ApplicationContext, query string) (*Decision, error) {
	if ctx == nil {
		ctx = perception.Unknown()
	}

	if isExplicitIntent(query) {
		return r.decide(ctx, template.General, "explicit intent override", 0.95)
	}

	for i := range r.rules {
		rule := &r.rules[i]
		if !rule.matches(ctx) {
			continue
		}
		priorityBonus := float64(rule.Priority) / 200
		if priorityBonus > 0.5 {
			priorityBonus = 0.5
		}
		conf := ctx.Confidence + priorityBonus
		if len(rule.AppTypes) == 1 {
			conf += 0.1
		}
		if rule.Condition != nil {
			conf += 0.15
		}
		return r.decide(ctx, rule.TemplateID, rule.Reason, clamp01(conf))
	}

	return r.decide(ctx, template.General, "no match", 0.5)
}

// decide resolves the template and assembles the decision.
func (r *Router) decide(ctx *perception.ApplicationContext, templateID, reason string, confidence float64) (*Decision, error) {
	tpl, err := r.registry.Get(templateID)
	if err != nil {
		return nil, fmt.Errorf("routing picked unregistered template %q: %w", templateID, err)
	}

	decision := &Decision{
		Template:   tpl,
		Reason:     reason,
		Confidence: confidence,
		Variables:  Variables(ctx),
	}
	logging.Routing("Routed %s -> %s (%s) conf=%.2f", ctx.Type, tpl.ID, reason, confidence)
	return decision, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
