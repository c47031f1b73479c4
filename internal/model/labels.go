package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClassNames accepts both shapes ultralytics writes for `names`: a list, or
// a map of class id to name.
type ClassNames map[int]string

func (n *ClassNames) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		out := make(ClassNames, len(list))
		for i, name := range list {
			out[i] = name
		}
		*n = out
		return nil
	case yaml.MappingNode:
		var m map[int]string
		if err := node.Decode(&m); err != nil {
			return err
		}
		*n = m
		return nil
	default:
		return fmt.Errorf("names: unsupported yaml node kind %d", node.Kind)
	}
}

type labelFile struct {
	Names ClassNames `yaml:"names"`
}

// LoadLabels reads a class table from a YAML file with a top-level `names`
// key.
func LoadLabels(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	return ParseLabels(data)
}

func ParseLabels(data []byte) (map[int]string, error) {
	var f labelFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse labels: %w", err)
	}
	if len(f.Names) == 0 {
		return nil, fmt.Errorf("parse labels: no names defined")
	}
	return f.Names, nil
}

// LabelsPathFor guesses the label file next to a weights file:
// ecobot.tflite -> ecobot.yaml, falling back to data.yaml in the same
// directory.
func LabelsPathFor(modelPath string) string {
	base := strings.TrimSuffix(modelPath, filepath.Ext(modelPath))
	for _, candidate := range []string{base + ".yaml", base + ".yml", filepath.Join(filepath.Dir(modelPath), "data.yaml")} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}
