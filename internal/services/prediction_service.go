package services

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// TreeNode is one node of a regression tree. Internal nodes route on
// features[Feature] < Threshold; leaves carry the output weight.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
}

// Tree is one regression tree, rooted at node 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Model is a pretrained gradient-boosted tree ensemble exported as JSON.
// A prediction is the base score plus the sum of every tree's output.
type Model struct {
	BaseScore    float64 `json:"base_score"`
	FeatureCount int     `json:"feature_count"`
	Trees        []Tree  `json:"trees"`
}

// PredictionService serves scalar demand predictions from a loaded
// ensemble. Training and model selection happen elsewhere; this is only
// the serving boundary.
type PredictionService struct {
	model Model
}

// NewPredictionService loads and validates an exported model file.
func NewPredictionService(path string, logger *logrus.Logger) (*PredictionService, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model file: %w", err)
	}

	var model Model
	if err := json.Unmarshal(raw, &model); err != nil {
		return nil, fmt.Errorf("failed to parse model file: %w", err)
	}

	service, err := NewPredictionServiceFromModel(model)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"trees":    len(model.Trees),
			"features": model.FeatureCount,
		}).Info("Loaded demand prediction model")
	}
	return service, nil
}

// NewPredictionServiceFromModel validates an in-memory ensemble.
func NewPredictionServiceFromModel(model Model) (*PredictionService, error) {
	if model.FeatureCount < 1 {
		return nil, fmt.Errorf("model declares %d features", model.FeatureCount)
	}
	if len(model.Trees) == 0 {
		return nil, fmt.Errorf("model contains no trees")
	}
	for i, tree := range model.Trees {
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d has no nodes", i)
		}
		for j, node := range tree.Nodes {
			if node.Leaf {
				continue
			}
			if node.Feature < 0 || node.Feature >= model.FeatureCount {
				return nil, fmt.Errorf("tree %d node %d routes on unknown feature %d", i, j, node.Feature)
			}
			if node.Left <= j || node.Left >= len(tree.Nodes) || node.Right <= j || node.Right >= len(tree.Nodes) {
				return nil, fmt.Errorf("tree %d node %d has invalid children", i, j)
			}
		}
	}
	return &PredictionService{model: model}, nil
}

// FeatureCount returns the length of the feature vector the model
// expects.
func (s *PredictionService) FeatureCount() int {
	return s.model.FeatureCount
}

// Trees returns the ensemble size.
func (s *PredictionService) Trees() int {
	return len(s.model.Trees)
}

// Predict evaluates the ensemble on one feature vector.
func (s *PredictionService) Predict(features []float64) (float64, error) {
	if len(features) != s.model.FeatureCount {
		return 0, fmt.Errorf("expected %d features, got %d", s.model.FeatureCount, len(features))
	}

	prediction := s.model.BaseScore
	for _, tree := range s.model.Trees {
		node := tree.Nodes[0]
		for !node.Leaf {
			if features[node.Feature] < node.Threshold {
				node = tree.Nodes[node.Left]
			} else {
				node = tree.Nodes[node.Right]
			}
		}
		prediction += node.Value
	}
	return prediction, nil
}
