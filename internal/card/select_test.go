package card

import (
	"testing"

	domerrors "github.com/garyellow/cardbot/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource returns a constant and counts calls.
type fixedSource struct {
	value int
	calls int
}

func (f *fixedSource) IntN(n int) int {
	f.calls++
	return f.value % n
}

func TestSelect_KeywordRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want int
	}{
		{"weather", 2},
		{"What's the WEATHER like?", 2},
		{"wEaThEr and flight and demo", 2},
		{"book a Flight", 3},
		{"FLIGHTS", 3},
		{"show me a demo", 4},
		{"DEMOnstration", 4},
		{"fill the form", 6},
		{"FORM", 6},
		{"information please", 6},
		{"food", 5},
		{"Fast FOOD", 5},
		{"seafood form", 6},
		{"flight demo", 3},
		{"demo food", 4},
	}

	rules := DefaultRules()
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()

			rnd := &fixedSource{value: 9}
			sel, err := Select(tt.text, rules, 10, rnd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel.Index)
			assert.True(t, sel.Matched)
			assert.Zero(t, rnd.calls, "random source must not be consulted on a match")
		})
	}
}

func TestSelect_WeatherBeatsFlight(t *testing.T) {
	t.Parallel()

	sel, err := Select("flight weather", DefaultRules(), 10, &fixedSource{})
	require.NoError(t, err)
	assert.Equal(t, 2, sel.Index)
	assert.Equal(t, "weather", sel.Source())
}

func TestSelect_FallsBackToRandom(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"", "hello", "wea ther", "fli-ght", "123"} {
		rnd := &fixedSource{value: 7}
		sel, err := Select(text, DefaultRules(), 10, rnd)
		require.NoError(t, err)
		assert.Equal(t, 7, sel.Index, "text %q", text)
		assert.False(t, sel.Matched)
		assert.Equal(t, "random", sel.Source())
		assert.Equal(t, 1, rnd.calls)
	}
}

func TestSelect_UnicodeFolding(t *testing.T) {
	t.Parallel()

	rules := []KeywordRule{{Pattern: "погода", Index: 1}}
	sel, err := Select("ПОГОДА сегодня", rules, 2, &fixedSource{})
	require.NoError(t, err)
	assert.True(t, sel.Matched)
	assert.Equal(t, 1, sel.Index)
}

func TestSelect_EmptyCatalog(t *testing.T) {
	t.Parallel()

	_, err := Select("weather", DefaultRules(), 0, &fixedSource{})
	require.ErrorIs(t, err, domerrors.ErrInvalidConfiguration)
}

func TestSelect_NilSourceUsesFreshGenerator(t *testing.T) {
	t.Parallel()

	sel, err := Select("", nil, 10, nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sel.Index, 0)
	assert.Less(t, sel.Index, 10)
}

func TestSelect_RandomIsUniform(t *testing.T) {
	t.Parallel()

	const (
		size   = 10
		trials = 100_000
	)
	rnd := NewSeededSource(42, 1024)
	var counts [size]int
	for range trials {
		sel, err := Select("no keyword here", DefaultRules(), size, rnd)
		require.NoError(t, err)
		counts[sel.Index]++
	}

	// Pearson chi-square, 9 degrees of freedom; 27.88 is the p=0.001 cutoff.
	expected := float64(trials) / size
	var chi2 float64
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	assert.Less(t, chi2, 27.88, "counts %v", counts)
	for i, c := range counts {
		assert.Positive(t, c, "index %d never drawn", i)
	}
}

func TestNewRandomSource_Independent(t *testing.T) {
	t.Parallel()

	a, b := NewRandomSource(), NewRandomSource()
	same := true
	for range 16 {
		if a.IntN(1<<30) != b.IntN(1<<30) {
			same = false
			break
		}
	}
	assert.False(t, same)
}
