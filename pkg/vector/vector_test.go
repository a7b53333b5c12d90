package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmatch-go/internal/apperr"
)

func TestNormalizeIdempotent(t *testing.T) {
	v := []float32{3, 4}

	once := Normalize(v)
	twice := Normalize(once)

	assert.InDelta(t, 1.0, Norm(once), 1e-6)
	for i := range once {
		assert.InDelta(t, float64(once[i]), float64(twice[i]), 1e-6)
	}
}

func TestNormalizeZeroVectorPassthrough(t *testing.T) {
	v := []float32{0, 0, 0}

	out := Normalize(v)

	assert.True(t, IsZero(out))
	assert.Len(t, out, 3)
}

func TestMeanPoolDuplicatedVector(t *testing.T) {
	a := []float32{1, 2, 2}

	pooled, err := MeanPool([][]float32{a, a}, nil)
	require.NoError(t, err)

	want := Normalize(a)
	for i := range want {
		assert.InDelta(t, float64(want[i]), float64(pooled[i]), 1e-6)
	}
}

func TestMeanPoolWeighted(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	// 权重全部压在 b 上，结果应与 b 同向
	pooled, err := MeanPool([][]float32{a, b}, []float32{0, 2})
	require.NoError(t, err)

	assert.InDelta(t, 0.0, float64(pooled[0]), 1e-6)
	assert.InDelta(t, 1.0, float64(pooled[1]), 1e-6)
}

func TestMeanPoolDegenerateWeights(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	_, err := MeanPool([][]float32{a, b}, []float32{0, 0})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDegenerateWeights))
}

func TestMeanPoolWeightsLengthMismatch(t *testing.T) {
	a := []float32{1, 0}

	_, err := MeanPool([][]float32{a, a}, []float32{1})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDegenerateWeights))
}

func TestMeanPoolEmptyInput(t *testing.T) {
	_, err := MeanPool(nil, nil)

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindEmptyInput))
}

func TestMeanPoolDimensionMismatch(t *testing.T) {
	_, err := MeanPool([][]float32{{1, 2}, {1, 2, 3}}, nil)

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDimensionMismatch))
}

func TestMeanPoolZeroResultPassthrough(t *testing.T) {
	a := []float32{1, -1}
	b := []float32{-1, 1}

	pooled, err := MeanPool([][]float32{a, b}, nil)
	require.NoError(t, err)

	// 相互抵消得到零向量，原样返回，表示无可用向量
	assert.True(t, IsZero(pooled))
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	same, err := Cosine(a, c)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, same, 1e-6)

	orth, err := Cosine(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, orth, 1e-6)
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 0}, []float32{1, 0, 0})

	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindDimensionMismatch))
}

func TestNormMagnitude(t *testing.T) {
	assert.InDelta(t, 5.0, Norm([]float32{3, 4}), 1e-9)
	assert.InDelta(t, math.Sqrt(3), Norm([]float32{1, 1, 1}), 1e-9)
}
