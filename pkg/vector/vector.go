// Package vector 提供向量聚合与相似度计算的纯函数。
// 多个摘要向量通过（可加权的）均值池化合成一个代表向量，并做 L2 归一化，
// 使所有向量落在单位超球面上，保证余弦相似度与欧氏距离的排序一致。
package vector

import (
	"math"

	"pmatch-go/internal/apperr"
)

// Norm 返回向量的欧氏范数。
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// IsZero 判断向量是否为零向量。
// 零向量没有方向，余弦相似度对它无定义，调用方应视为"没有可用向量"。
func IsZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Normalize 返回 L2 归一化后的新向量。
// 范数为零时原样返回输入的拷贝：零向量穿透是明确约定的边界情况，
// 表示输入退化，由调用方决定丢弃。
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	n := Norm(v)
	if n == 0 {
		copy(out, v)
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// MeanPool 对一组等长向量做（可加权的）逐分量均值池化，并对结果做 L2 归一化。
// weights 为 nil 时是普通算术平均；非 nil 时长度必须与 vectors 一致，
// 且权重和不能为零（否则加权均值无定义）。
func MeanPool(vectors [][]float32, weights []float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, apperr.New(apperr.KindEmptyInput, "mean pooling requires at least one vector")
	}

	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim {
			return nil, apperr.New(apperr.KindDimensionMismatch, "vectors for mean pooling have differing dimensions")
		}
	}

	if weights != nil && len(weights) != len(vectors) {
		return nil, apperr.New(apperr.KindDegenerateWeights, "weights length must match number of vectors")
	}

	sums := make([]float64, dim)
	if weights == nil {
		for _, v := range vectors {
			for i, x := range v {
				sums[i] += float64(x)
			}
		}
		n := float64(len(vectors))
		for i := range sums {
			sums[i] /= n
		}
	} else {
		var wsum float64
		for _, w := range weights {
			wsum += float64(w)
		}
		if wsum == 0 {
			return nil, apperr.New(apperr.KindDegenerateWeights, "weights sum to zero")
		}
		for j, v := range vectors {
			w := float64(weights[j])
			for i, x := range v {
				sums[i] += float64(x) * w
			}
		}
		for i := range sums {
			sums[i] /= wsum
		}
	}

	mean := make([]float32, dim)
	for i, s := range sums {
		mean[i] = float32(s)
	}
	return Normalize(mean), nil
}

// Cosine 计算两个向量的余弦相似度。
// 维度不一致属于配置错误，直接报错而不是截断比较。
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, apperr.New(apperr.KindDimensionMismatch, "cosine requires vectors of equal dimension")
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, apperr.New(apperr.KindEmptyInput, "cosine is undefined for zero vectors")
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
