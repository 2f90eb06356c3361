package canon

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedPoint(t *testing.T) {
	tests := []struct {
		in   float64
		want Int
	}{
		{0, 0},
		{1, 1_000_000},
		{0.25, 250_000},
		{0.86, 860_000},
		{-0.5, -500_000},
		{0.0000004, 0},
		{-1.25, -1_250_000},
	}

	for _, tt := range tests {
		got, err := FixedPoint(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "FixedPoint(%v)", tt.in)
	}
}

func TestFixedPointRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e20} {
		_, err := FixedPoint(f)
		assert.Error(t, err, "FixedPoint(%v)", f)
	}
}

func TestFixedPointValueIsHashable(t *testing.T) {
	p, err := FixedPoint(0.86)
	require.NoError(t, err)

	h, err := ContentHash(Object{"score": p})
	require.NoError(t, err)
	assert.Equal(t, MustContentHash(map[string]any{"score": 860000}), h)
}

func TestSortedKeys(t *testing.T) {
	obj := Object{"b": Int(1), "a": Int(2), "B": Int(3)}
	assert.Equal(t, []string{"B", "a", "b"}, obj.SortedKeys())
}

func TestCloneIsDeep(t *testing.T) {
	orig := Object{"nested": Object{"x": Int(1)}, "list": Array{Int(1)}}
	clone := orig.Clone()

	clone["nested"].(Object)["x"] = Int(2)
	clone["list"].(Array)[0] = Int(9)

	assert.Equal(t, Int(1), orig["nested"].(Object)["x"])
	assert.Equal(t, Int(1), orig["list"].(Array)[0])
}

func TestFromGoMapOfStrings(t *testing.T) {
	v, err := FromGo(map[string]string{"a": "1"})
	require.NoError(t, err)
	assert.Equal(t, Object{"a": String("1")}, v)
}

func TestObjectEncodesWithEncodingJSON(t *testing.T) {
	obj := Object{"n": Null{}, "s": String("x"), "i": Int(3), "a": Array{Bool(true)}}
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[true],"i":3,"n":null,"s":"x"}`, string(data))
}
