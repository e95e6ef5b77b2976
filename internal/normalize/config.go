package normalize

import (
	"encoding/json"
	"maps"
	"math"
	"strconv"
	"strings"
)

type Method string

const (
	MethodNone       Method = "none"
	MethodZScore     Method = "zscore"
	MethodMinMax     Method = "minmax"
	MethodPercentile Method = "percentile"
	MethodCustom     Method = "custom"
)

// Parameter keys recognised by the built-in methods.
const (
	ParamMean     = "mean"
	ParamStdDev   = "std_dev"
	ParamMin      = "min"
	ParamMax      = "max"
	ParamFunction = "function"
)

// Parameters is the flat key/value map stored alongside a question.
// Values are JSON numbers or strings; custom methods may carry anything.
type Parameters map[string]any

// Config is a question's normalization method and its parameters.
type Config struct {
	Method     Method     `json:"method"`
	Parameters Parameters `json:"parameters,omitempty"`
}

// required lists the keys each method must carry. Custom accepts extra keys.
var required = map[Method][]string{
	MethodNone:       nil,
	MethodZScore:     {ParamMean, ParamStdDev},
	MethodMinMax:     {ParamMin, ParamMax},
	MethodPercentile: nil,
	MethodCustom:     {ParamFunction},
}

// Resolved returns the method with the empty string read as none.
func (c Config) Resolved() Method {
	if c.Method == "" {
		return MethodNone
	}
	return Method(strings.ToLower(string(c.Method)))
}

// Float reads a numeric parameter. ok is false when the key is absent;
// err is set when the key is present but not a number.
func (p Parameters) Float(key string) (v float64, ok bool, err error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch t := raw.(type) {
	case float64:
		return t, true, nil
	case float32:
		return float64(t), true, nil
	case int:
		return float64(t), true, nil
	case int64:
		return float64(t), true, nil
	case json.Number:
		f, err := t.Float64()
		return f, true, err
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, true, err
	default:
		return 0, true, strconv.ErrSyntax
	}
}

// String reads a string parameter.
func (p Parameters) String(key string) (string, bool) {
	raw, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

// Clone returns a shallow copy; nested values are shared.
func (p Parameters) Clone() Parameters {
	if p == nil {
		return Parameters{}
	}
	return maps.Clone(p)
}

func (c Config) float(key string) (float64, error) {
	m := c.Resolved()
	v, ok, err := c.Parameters.Float(key)
	switch {
	case !ok:
		return 0, configErr(m, key, ReasonMissingParameter)
	case err != nil:
		return 0, configErr(m, key, ReasonInvalidParameter)
	case math.IsNaN(v) || math.IsInf(v, 0):
		return 0, configErr(m, key, ReasonInvalidRange)
	}
	return v, nil
}
