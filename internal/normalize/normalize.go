// Package normalize maps raw question scores onto comparable scales.
//
// A Normalizer is immutable once built and safe for concurrent use. It never
// fetches reference data or logs; callers supply everything it needs and
// decide what to do with a ConfigError.
package normalize

import (
	"sort"
)

// CustomFunc is an application-supplied normalization. It receives the raw
// score and a copy of the question's parameters.
type CustomFunc func(raw float64, params Parameters) (float64, error)

type Option func(*Normalizer)

// WithCustom registers fn under name for use by method "custom".
func WithCustom(name string, fn CustomFunc) Option {
	return func(n *Normalizer) {
		if name != "" && fn != nil {
			n.custom[name] = fn
		}
	}
}

// WithCustomRegistry registers every entry of reg.
func WithCustomRegistry(reg map[string]CustomFunc) Option {
	return func(n *Normalizer) {
		for name, fn := range reg {
			WithCustom(name, fn)(n)
		}
	}
}

type Normalizer struct {
	custom map[string]CustomFunc
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{custom: map[string]CustomFunc{}}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Registered reports whether a custom function exists under name.
func (n *Normalizer) Registered(name string) bool {
	_, ok := n.custom[name]
	return ok
}

// Validate checks everything about cfg that does not depend on a reference
// distribution.
func (n *Normalizer) Validate(cfg Config) error {
	m := cfg.Resolved()
	req, known := required[m]
	if !known {
		return configErr(m, "", ReasonUnknownMethod)
	}
	for _, k := range req {
		if _, ok := cfg.Parameters[k]; !ok {
			return configErr(m, k, ReasonMissingParameter)
		}
	}
	if m != MethodCustom {
		if k := firstUnexpected(cfg.Parameters, req); k != "" {
			return configErr(m, k, ReasonUnexpectedParameter)
		}
	}

	switch m {
	case MethodZScore:
		if _, err := cfg.float(ParamMean); err != nil {
			return err
		}
		sd, err := cfg.float(ParamStdDev)
		if err != nil {
			return err
		}
		if sd == 0 {
			return configErr(m, ParamStdDev, ReasonInvalidRange)
		}
	case MethodMinMax:
		lo, err := cfg.float(ParamMin)
		if err != nil {
			return err
		}
		hi, err := cfg.float(ParamMax)
		if err != nil {
			return err
		}
		if hi <= lo {
			return configErr(m, ParamMax, ReasonInvalidRange)
		}
	case MethodCustom:
		name, ok := cfg.Parameters.String(ParamFunction)
		if !ok || name == "" {
			return configErr(m, ParamFunction, ReasonInvalidParameter)
		}
		if !n.Registered(name) {
			return configErr(m, ParamFunction, ReasonUnregisteredCustom)
		}
	}
	return nil
}

// Normalize applies cfg to raw. reference is only read for percentile.
func (n *Normalizer) Normalize(raw float64, cfg Config, reference []float64) (float64, error) {
	if err := n.Validate(cfg); err != nil {
		return 0, err
	}
	switch cfg.Resolved() {
	case MethodZScore:
		mean, _ := cfg.float(ParamMean)
		sd, _ := cfg.float(ParamStdDev)
		return (raw - mean) / sd, nil
	case MethodMinMax:
		lo, _ := cfg.float(ParamMin)
		hi, _ := cfg.float(ParamMax)
		return clamp01((raw - lo) / (hi - lo)), nil
	case MethodPercentile:
		return percentileRank(raw, reference)
	case MethodCustom:
		name, _ := cfg.Parameters.String(ParamFunction)
		return n.custom[name](raw, cfg.Parameters.Clone())
	default:
		return raw, nil
	}
}

// percentileRank counts reference scores below raw, with ties at half weight.
func percentileRank(raw float64, reference []float64) (float64, error) {
	if len(reference) == 0 {
		return 0, configErr(MethodPercentile, "reference", ReasonEmptyReference)
	}
	var below, ties int
	for _, v := range reference {
		switch {
		case v < raw:
			below++
		case v == raw:
			ties++
		}
	}
	return (float64(below) + 0.5*float64(ties)) / float64(len(reference)), nil
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

func firstUnexpected(p Parameters, allowed []string) string {
	var extra []string
	for k := range p {
		found := false
		for _, a := range allowed {
			if k == a {
				found = true
				break
			}
		}
		if !found {
			extra = append(extra, k)
		}
	}
	if len(extra) == 0 {
		return ""
	}
	sort.Strings(extra)
	return extra[0]
}
