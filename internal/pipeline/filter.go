package pipeline

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/mailsentry/internal/config"
	"github.com/sells-group/mailsentry/internal/graph"
	"github.com/sells-group/mailsentry/internal/model"
)

// Rules is a compiled set of case-insensitive patterns per field.
type Rules struct {
	Subject []*regexp.Regexp
	To      []*regexp.Regexp
	From    []*regexp.Regexp
}

// Empty reports whether no pattern is configured.
func (r Rules) Empty() bool {
	return len(r.Subject) == 0 && len(r.To) == 0 && len(r.From) == 0
}

// Filters are the include and exclude rule sets.
type Filters struct {
	Include Rules
	Exclude Rules
}

// CompileFilters compiles the configured filter patterns.
func CompileFilters(cfg config.FiltersConfig) (Filters, error) {
	var f Filters
	var err error
	compile := func(dst *[]*regexp.Regexp, patterns []string) {
		if err != nil {
			return
		}
		*dst, err = config.CompilePatterns(patterns)
	}
	compile(&f.Include.Subject, cfg.Include.Subject)
	compile(&f.Include.To, cfg.Include.To)
	compile(&f.Include.From, cfg.Include.From)
	compile(&f.Exclude.Subject, cfg.Exclude.Subject)
	compile(&f.Exclude.To, cfg.Exclude.To)
	compile(&f.Exclude.From, cfg.Exclude.From)
	return f, err
}

// Filter reasons.
const (
	ReasonDefaultInclude   = "Default Include"
	ReasonIncludeByDefault = "Default Include set to False since include filters are defined"
)

// match is one field the rules are checked against.
type match struct {
	field  string
	values []string
	rules  []*regexp.Regexp
}

func matches(msg *model.Message, r Rules) []match {
	return []match{
		{field: "subject", values: nonEmpty(msg.Subject), rules: r.Subject},
		{field: "to email", values: addressField(msg.To, false), rules: r.To},
		{field: "to name", values: addressField(msg.To, true), rules: r.To},
		{field: "from email", values: addressField(msg.From, false), rules: r.From},
		{field: "from name", values: addressField(msg.From, true), rules: r.From},
	}
}

func (m match) hit() bool {
	for _, re := range m.rules {
		for _, v := range m.values {
			if re.MatchString(v) {
				return true
			}
		}
	}
	return false
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func addressField(addrs []model.Address, name bool) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if name {
			out = append(out, a.Name)
		} else {
			out = append(out, a.Address)
		}
	}
	return out
}

type filterPhase struct{ s *stages }

func (p *filterPhase) Verify(in model.Context) graph.Verification {
	return requireKeys(in, model.KeyMessage)
}

// Execute applies the include rules and then the exclude rules, so an
// exclude match always wins.
func (p *filterPhase) Execute(_ context.Context, in model.Context) (model.Context, error) {
	include, reason := evaluate(in.Message, p.s.opts.Filters)
	zap.L().Debug("pipeline: filter",
		zap.String("file", in.File),
		zap.Bool("include", include),
		zap.String("reason", reason),
	)
	return model.Context{Keys: model.KeyInclude, Include: include, IncludeReason: reason}, nil
}

func evaluate(msg *model.Message, f Filters) (bool, string) {
	include, reason := true, ReasonDefaultInclude

	if !f.Include.Empty() {
		include, reason = false, ReasonIncludeByDefault
		for _, m := range matches(msg, f.Include) {
			if m.hit() {
				include, reason = true, "Include filter matched "+m.field+": "+strings.Join(m.values, ", ")
			}
		}
	}

	if !f.Exclude.Empty() {
		for _, m := range matches(msg, f.Exclude) {
			if m.hit() {
				include, reason = false, "Exclude filter matched "+m.field+": "+strings.Join(m.values, ", ")
			}
		}
	}
	return include, reason
}

// includeDecision routes included items on and terminates the rest.
func (s *stages) includeDecision(_ context.Context, out, _ model.Context) (graph.Route[model.Context], error) {
	switch {
	case !out.Include:
		return graph.Terminate[model.Context](TerminationFiltered), nil
	case s.opts.DryRun:
		return graph.Terminate[model.Context](TerminationDryRun), nil
	}
	return graph.Follow(graph.Connect[model.Context]("to_simplify", NodeSimplify)), nil
}
