package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_ScalesToUnitRange(t *testing.T) {
	out := normalize(map[string]float64{"a": 0, "b": 5, "c": 10})
	assert.Equal(t, 0.0, out["a"])
	assert.Equal(t, 0.5, out["b"])
	assert.Equal(t, 1.0, out["c"])
}

func TestNormalize_ZeroRangeCollapsesToOne(t *testing.T) {
	out := normalize(map[string]float64{"a": 3, "b": 3})
	assert.Equal(t, 1.0, out["a"])
	assert.Equal(t, 1.0, out["b"])
}

func TestNormalize_EmptyInput(t *testing.T) {
	out := normalize(map[string]float64{})
	assert.Empty(t, out)
}

func TestFuse_WeightsSemanticAndLexical(t *testing.T) {
	candidates := map[string]*candidate{
		"both":        {fileID: "both", semantic: 1.0, lexical: 1.0},
		"semanticOnly": {fileID: "semanticOnly", semantic: 1.0, lexical: 0},
	}
	base := fuse(candidates, Weights{Semantic: 0.7, Lexical: 0.3})

	assert.InDelta(t, 1.0, base["both"], 1e-9)
	assert.InDelta(t, 0.7, base["semanticOnly"], 1e-9)
}

func TestApplyAuthority_Multiplicative(t *testing.T) {
	got := applyAuthority(0.8, 0.5, FusionMultiplicative)
	assert.InDelta(t, 0.4, got, 1e-9)
}

func TestApplyAuthority_AdditiveLogNeverZerosOutLowAuthority(t *testing.T) {
	zeroAuthority := applyAuthority(0.8, 0, FusionMultiplicative)
	additive := applyAuthority(0.8, 0, FusionAdditiveLog)

	assert.Equal(t, 0.0, zeroAuthority)
	assert.Greater(t, additive, 0.0)
}
