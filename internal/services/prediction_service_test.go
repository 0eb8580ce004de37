package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testModel returns a two-tree ensemble over two features:
//
//	tree 0: f0 < 10 ? +5 : +20
//	tree 1: f1 < 0.5 ? -1 : (f0 < 50 ? +2 : +3)
func testModel() Model {
	return Model{
		BaseScore:    100,
		FeatureCount: 2,
		Trees: []Tree{
			{Nodes: []TreeNode{
				{Feature: 0, Threshold: 10, Left: 1, Right: 2},
				{Leaf: true, Value: 5},
				{Leaf: true, Value: 20},
			}},
			{Nodes: []TreeNode{
				{Feature: 1, Threshold: 0.5, Left: 1, Right: 2},
				{Leaf: true, Value: -1},
				{Feature: 0, Threshold: 50, Left: 3, Right: 4},
				{Leaf: true, Value: 2},
				{Leaf: true, Value: 3},
			}},
		},
	}
}

func TestPredictionService_Predict(t *testing.T) {
	service, err := NewPredictionServiceFromModel(testModel())
	require.NoError(t, err)

	tests := []struct {
		name     string
		features []float64
		expected float64
	}{
		{"both low branches", []float64{5, 0.1}, 100 + 5 - 1},
		{"high first feature", []float64{60, 0.1}, 100 + 20 - 1},
		{"nested right branch", []float64{60, 0.9}, 100 + 20 + 3},
		{"nested left branch", []float64{20, 0.9}, 100 + 20 + 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prediction, err := service.Predict(tt.features)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, prediction, 1e-9)
		})
	}
}

func TestPredictionService_FeatureCountMismatch(t *testing.T) {
	service, err := NewPredictionServiceFromModel(testModel())
	require.NoError(t, err)

	_, err = service.Predict([]float64{1})
	assert.Error(t, err)
}

func TestPredictionService_RejectsMalformedModels(t *testing.T) {
	malformed := testModel()
	malformed.Trees[0].Nodes[0].Left = 0 // self-reference
	_, err := NewPredictionServiceFromModel(malformed)
	assert.Error(t, err)

	noTrees := Model{BaseScore: 1, FeatureCount: 2}
	_, err = NewPredictionServiceFromModel(noTrees)
	assert.Error(t, err)

	badFeature := testModel()
	badFeature.Trees[0].Nodes[0].Feature = 7
	_, err = NewPredictionServiceFromModel(badFeature)
	assert.Error(t, err)
}

func TestNewPredictionService_LoadsFromFile(t *testing.T) {
	raw, err := json.Marshal(testModel())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	service, err := NewPredictionService(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, service.FeatureCount())
	assert.Equal(t, 2, service.Trees())

	prediction, err := service.Predict([]float64{5, 0.1})
	require.NoError(t, err)
	assert.InDelta(t, 104, prediction, 1e-9)

	_, err = NewPredictionService(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}
