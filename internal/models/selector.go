package models

import (
	"fmt"
	"strings"
)

// Selector scopes a telemetry query. Namespace is required; PodName and
// LabelSelector narrow the scope further, with PodName taking precedence
// when both are set.
type Selector struct {
	Namespace     string `json:"namespace"`
	PodName       string `json:"pod_name,omitempty"`
	LabelSelector string `json:"label_selector,omitempty"`
}

// MalformedSelectorError reports a label-selector entry without a key=value shape.
type MalformedSelectorError struct {
	Entry string
}

func (e *MalformedSelectorError) Error() string {
	return fmt.Sprintf("malformed label selector entry %q: expected key=value", e.Entry)
}

// Validate checks the selector contract: namespace present and the label
// selector, when set, made of comma-separated key=value pairs.
func (s Selector) Validate() error {
	if strings.TrimSpace(s.Namespace) == "" {
		return fmt.Errorf("namespace is required")
	}
	if s.LabelSelector != "" {
		if _, err := s.labelPairs(); err != nil {
			return err
		}
	}
	return nil
}

// LokiQuery translates the selector into a Loki stream selector.
func (s Selector) LokiQuery() (string, error) {
	switch {
	case s.PodName != "":
		return fmt.Sprintf(`{namespace=%q, pod=%q}`, s.Namespace, s.PodName), nil
	case s.LabelSelector != "":
		pairs, err := s.labelPairs()
		if err != nil {
			return "", err
		}
		matchers := make([]string, 0, len(pairs)+1)
		matchers = append(matchers, fmt.Sprintf("namespace=%q", s.Namespace))
		for _, p := range pairs {
			matchers = append(matchers, fmt.Sprintf("%s=%q", p[0], p[1]))
		}
		return "{" + strings.Join(matchers, ", ") + "}", nil
	default:
		return fmt.Sprintf(`{namespace=%q}`, s.Namespace), nil
	}
}

// PromFilter translates the selector into a PromQL label filter. Label
// selectors are not mapped to cadvisor labels; they fall back to the
// namespace scope.
func (s Selector) PromFilter() string {
	if s.PodName != "" {
		return fmt.Sprintf("pod=%q", s.PodName)
	}
	return fmt.Sprintf("namespace=%q", s.Namespace)
}

func (s Selector) labelPairs() ([][2]string, error) {
	entries := strings.Split(s.LabelSelector, ",")
	pairs := make([][2]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		key, value, ok := strings.Cut(entry, "=")
		if !ok || key == "" {
			return nil, &MalformedSelectorError{Entry: entry}
		}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs, nil
}
