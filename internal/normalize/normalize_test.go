package normalize_test

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-grading/internal/normalize"
)

func reasonOf(t *testing.T, err error) normalize.Reason {
	t.Helper()
	ce, ok := normalize.AsConfigError(err)
	require.True(t, ok, "expected ConfigError, got %v", err)
	return ce.Reason
}

func TestNoneReturnsRaw(t *testing.T) {
	n := normalize.New()
	for _, r := range []float64{-3, 0, 0.25, 7, 1e9} {
		got, err := n.Normalize(r, normalize.Config{Method: normalize.MethodNone}, nil)
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	// empty method means none
	got, err := n.Normalize(4, normalize.Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)
}

func TestNoneRejectsParameters(t *testing.T) {
	_, err := normalize.New().Normalize(1, normalize.Config{
		Method:     normalize.MethodNone,
		Parameters: normalize.Parameters{"mean": 1.0},
	}, nil)
	assert.Equal(t, normalize.ReasonUnexpectedParameter, reasonOf(t, err))
}

func TestZScore(t *testing.T) {
	n := normalize.New()
	cases := []struct {
		raw, mean, sd float64
	}{
		{7, 5, 2},
		{2, 5, 2},
		{5, 5, 2},
		{0, -1, 0.5},
		{3, 1, -2},
	}
	for _, c := range cases {
		cfg := normalize.Config{Method: normalize.MethodZScore, Parameters: normalize.Parameters{
			"mean": c.mean, "std_dev": c.sd,
		}}
		got, err := n.Normalize(c.raw, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, (c.raw-c.mean)/c.sd, got)
	}
}

func TestZScoreNumericStrings(t *testing.T) {
	cfg := normalize.Config{Method: normalize.MethodZScore, Parameters: normalize.Parameters{
		"mean": "5", "std_dev": "2",
	}}
	got, err := normalize.New().Normalize(9, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got)
}

func TestZScoreErrors(t *testing.T) {
	n := normalize.New()

	_, err := n.Normalize(1, normalize.Config{Method: normalize.MethodZScore, Parameters: normalize.Parameters{
		"mean": 5.0, "std_dev": 0.0,
	}}, nil)
	assert.Equal(t, normalize.ReasonInvalidRange, reasonOf(t, err))
	assert.True(t, errors.Is(err, normalize.ErrInvalidRange))

	_, err = n.Normalize(1, normalize.Config{Method: normalize.MethodZScore, Parameters: normalize.Parameters{
		"mean": 5.0,
	}}, nil)
	ce, _ := normalize.AsConfigError(err)
	require.NotNil(t, ce)
	assert.Equal(t, normalize.ReasonMissingParameter, ce.Reason)
	assert.Equal(t, "std_dev", ce.Field)
	assert.Equal(t, normalize.MethodZScore, ce.Method)

	_, err = n.Normalize(1, normalize.Config{Method: normalize.MethodZScore, Parameters: normalize.Parameters{
		"mean": "five", "std_dev": 1.0,
	}}, nil)
	assert.Equal(t, normalize.ReasonInvalidParameter, reasonOf(t, err))

	_, err = n.Normalize(1, normalize.Config{Method: normalize.MethodZScore, Parameters: normalize.Parameters{
		"mean": 1.0, "std_dev": 1.0, "scale": 2.0,
	}}, nil)
	assert.Equal(t, normalize.ReasonUnexpectedParameter, reasonOf(t, err))
}

func TestMinMax(t *testing.T) {
	n := normalize.New()
	cfg := normalize.Config{Method: normalize.MethodMinMax, Parameters: normalize.Parameters{
		"min": 2.0, "max": 10.0,
	}}

	prev := -1.0
	for r := 2.0; r <= 10.0; r += 0.5 {
		got, err := n.Normalize(r, cfg, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
		assert.GreaterOrEqual(t, got, prev, "not monotonic at %v", r)
		prev = got
	}

	got, _ := n.Normalize(6, cfg, nil)
	assert.Equal(t, 0.5, got)
	got, _ = n.Normalize(-100, cfg, nil)
	assert.Equal(t, 0.0, got)
	got, _ = n.Normalize(100, cfg, nil)
	assert.Equal(t, 1.0, got)
}

func TestMinMaxInvalidRange(t *testing.T) {
	n := normalize.New()
	for _, p := range []normalize.Parameters{
		{"min": 5.0, "max": 5.0},
		{"min": 5.0, "max": 1.0},
	} {
		_, err := n.Normalize(3, normalize.Config{Method: normalize.MethodMinMax, Parameters: p}, nil)
		assert.True(t, errors.Is(err, normalize.ErrInvalidRange), "params %v: %v", p, err)
	}
	_, err := n.Normalize(3, normalize.Config{Method: normalize.MethodMinMax, Parameters: normalize.Parameters{"min": 0.0}}, nil)
	assert.Equal(t, normalize.ReasonMissingParameter, reasonOf(t, err))
}

func TestPercentile(t *testing.T) {
	n := normalize.New()
	cfg := normalize.Config{Method: normalize.MethodPercentile}
	ref := []float64{10, 20, 20, 30}

	got, err := n.Normalize(20, cfg, ref)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)

	got, _ = n.Normalize(5, cfg, ref)
	assert.Equal(t, 0.0, got)
	got, _ = n.Normalize(35, cfg, ref)
	assert.Equal(t, 1.0, got)
	got, _ = n.Normalize(10, cfg, ref)
	assert.Equal(t, 0.125, got)

	// ordering of the reference does not matter
	got, _ = n.Normalize(20, cfg, []float64{30, 20, 10, 20})
	assert.Equal(t, 0.5, got)
}

func TestPercentileEmptyReference(t *testing.T) {
	_, err := normalize.New().Normalize(1, normalize.Config{Method: normalize.MethodPercentile}, nil)
	assert.Equal(t, normalize.ReasonEmptyReference, reasonOf(t, err))
	assert.True(t, errors.Is(err, normalize.ErrEmptyReference))
}

func TestPercentileDoesNotMutateReference(t *testing.T) {
	ref := []float64{30, 10, 20}
	_, err := normalize.New().Normalize(15, normalize.Config{Method: normalize.MethodPercentile}, ref)
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 10, 20}, ref)
}

func TestCustom(t *testing.T) {
	var gotRaw float64
	var gotParams normalize.Parameters
	n := normalize.New(normalize.WithCustom("double", func(raw float64, p normalize.Parameters) (float64, error) {
		gotRaw, gotParams = raw, p
		p["tampered"] = true
		return raw * 2, nil
	}))

	params := normalize.Parameters{"function": "double", "note": "free-form", "weights": []any{1.0, 2.0}}
	out, err := n.Normalize(3.5, normalize.Config{Method: normalize.MethodCustom, Parameters: params}, nil)
	require.NoError(t, err)
	assert.Equal(t, 7.0, out)
	assert.Equal(t, 3.5, gotRaw)
	assert.Equal(t, "free-form", gotParams["note"])
	assert.Equal(t, "double", gotParams["function"])
	assert.Equal(t, []any{1.0, 2.0}, gotParams["weights"])
	_, tampered := params["tampered"]
	assert.False(t, tampered, "caller's parameters must not change")
}

func TestCustomErrors(t *testing.T) {
	n := normalize.New()

	_, err := n.Normalize(1, normalize.Config{Method: normalize.MethodCustom, Parameters: normalize.Parameters{
		"function": "nope",
	}}, nil)
	assert.Equal(t, normalize.ReasonUnregisteredCustom, reasonOf(t, err))
	assert.True(t, errors.Is(err, normalize.ErrUnregisteredCustom))

	_, err = n.Normalize(1, normalize.Config{Method: normalize.MethodCustom}, nil)
	assert.Equal(t, normalize.ReasonMissingParameter, reasonOf(t, err))

	boom := errors.New("boom")
	n = normalize.New(normalize.WithCustom("fail", func(float64, normalize.Parameters) (float64, error) { return 0, boom }))
	_, err = n.Normalize(1, normalize.Config{Method: normalize.MethodCustom, Parameters: normalize.Parameters{"function": "fail"}}, nil)
	assert.ErrorIs(t, err, boom)
}

func TestMappingFunc(t *testing.T) {
	n := normalize.New(normalize.WithCustom("mapping", normalize.MappingFunc))
	cfg := normalize.Config{Method: normalize.MethodCustom, Parameters: normalize.Parameters{
		"function": "mapping",
		"mapping":  map[string]any{"2": 4.0, "5": "7", "9": 10.0, "2.5": 3.0},
	}}

	for raw, want := range map[float64]float64{2: 4, 5: 7, 9: 10, 2.5: 3} {
		got, err := n.Normalize(raw, cfg, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got, "raw %v", raw)
	}

	_, err := n.Normalize(3, cfg, nil)
	ce, ok := normalize.AsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, normalize.ReasonMissingParameter, ce.Reason)
	assert.Equal(t, "mapping.3", ce.Field)
}

func TestUnknownMethod(t *testing.T) {
	_, err := normalize.New().Normalize(1, normalize.Config{Method: "log"}, nil)
	assert.Equal(t, normalize.ReasonUnknownMethod, reasonOf(t, err))
}

func TestNonFiniteParameter(t *testing.T) {
	_, err := normalize.New().Normalize(1, normalize.Config{Method: normalize.MethodZScore, Parameters: normalize.Parameters{
		"mean": 0.0, "std_dev": math.Inf(1),
	}}, nil)
	assert.Equal(t, normalize.ReasonInvalidRange, reasonOf(t, err))
}

func TestDeterministic(t *testing.T) {
	n := normalize.New()
	cfg := normalize.Config{Method: normalize.MethodZScore, Parameters: normalize.Parameters{"mean": 0.1, "std_dev": 0.3}}
	a, err := n.Normalize(0.7, cfg, nil)
	require.NoError(t, err)
	b, err := n.Normalize(0.7, cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(a), math.Float64bits(b))

	ref := []float64{0.2, 0.4, 0.4, 0.9}
	p1, _ := n.Normalize(0.4, normalize.Config{Method: normalize.MethodPercentile}, ref)
	p2, _ := n.Normalize(0.4, normalize.Config{Method: normalize.MethodPercentile}, ref)
	assert.Equal(t, math.Float64bits(p1), math.Float64bits(p2))
}

func TestConcurrentMatchesSequential(t *testing.T) {
	n := normalize.New(normalize.WithCustom("mapping", normalize.MappingFunc))
	configs := []normalize.Config{
		{Method: normalize.MethodNone},
		{Method: normalize.MethodZScore, Parameters: normalize.Parameters{"mean": 5.0, "std_dev": 2.0}},
		{Method: normalize.MethodMinMax, Parameters: normalize.Parameters{"min": 0.0, "max": 9.0}},
		{Method: normalize.MethodPercentile},
		{Method: normalize.MethodCustom, Parameters: normalize.Parameters{
			"function": "mapping", "mapping": map[string]any{"0": 1.0, "1": 2.0, "2": 3.0, "3": 4.0},
		}},
	}
	ref := []float64{0, 1, 1, 2, 3}

	type job struct {
		raw float64
		cfg normalize.Config
	}
	var jobs []job
	for i := 0; i < 200; i++ {
		jobs = append(jobs, job{raw: float64(i % 4), cfg: configs[i%len(configs)]})
	}

	want := make([]float64, len(jobs))
	for i, j := range jobs {
		v, err := n.Normalize(j.raw, j.cfg, ref)
		require.NoError(t, err)
		want[i] = v
	}

	got := make([]float64, len(jobs))
	errs := make([]error, len(jobs))
	var wg sync.WaitGroup
	for i, j := range jobs {
		wg.Add(1)
		go func(i int, j job) {
			defer wg.Done()
			got[i], errs[i] = n.Normalize(j.raw, j.cfg, ref)
		}(i, j)
	}
	wg.Wait()

	for i := range jobs {
		require.NoError(t, errs[i], fmt.Sprintf("job %d", i))
		assert.Equal(t, math.Float64bits(want[i]), math.Float64bits(got[i]), "job %d", i)
	}
}
