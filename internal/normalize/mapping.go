package normalize

import (
	"strconv"
)

// ParamMapping holds the lookup table used by MappingFunc.
const ParamMapping = "mapping"

// MappingFunc is a CustomFunc that looks the raw score up in an explicit
// table, e.g. {"function": "mapping", "mapping": {"2": 4, "5": 7}}.
// Keys are raw scores in their shortest decimal form.
func MappingFunc(raw float64, params Parameters) (float64, error) {
	table, ok := params[ParamMapping].(map[string]any)
	if !ok {
		if _, present := params[ParamMapping]; !present {
			return 0, configErr(MethodCustom, ParamMapping, ReasonMissingParameter)
		}
		return 0, configErr(MethodCustom, ParamMapping, ReasonInvalidParameter)
	}
	key := strconv.FormatFloat(raw, 'f', -1, 64)
	if _, ok := table[key]; !ok {
		return 0, configErr(MethodCustom, ParamMapping+"."+key, ReasonMissingParameter)
	}
	v, _, err := Parameters(table).Float(key)
	if err != nil {
		return 0, configErr(MethodCustom, ParamMapping+"."+key, ReasonInvalidParameter)
	}
	return v, nil
}
