package formatters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/familyevents/shipit/internal/pipeline"
)

var (
	jsonMarshalIndent = json.MarshalIndent
	yamlMarshal       = yaml.Marshal
)

// genericJSONFormatter is a FormatterFunc that formats a run as JSON
func genericJSONFormatter(ctx context.Context, r pipeline.Run) ([]byte, error) {
	response := getResponse(r)

	responseJSON, err := jsonMarshalIndent(response, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("error formatting results with formatter %s: %w", "json", err)
	}

	return responseJSON, nil
}

// genericYAMLFormatter is a FormatterFunc that formats a run as YAML
func genericYAMLFormatter(ctx context.Context, r pipeline.Run) ([]byte, error) {
	response := getResponse(r)

	responseYAML, err := yamlMarshal(response)
	if err != nil {
		return nil, fmt.Errorf("error formatting results with formatter %s: %w", "yaml", err)
	}

	return responseYAML, nil
}

// textFormatter is a FormatterFunc that formats a run for terminals
func textFormatter(ctx context.Context, r pipeline.Run) ([]byte, error) {
	response := getResponse(r)

	var b strings.Builder
	fmt.Fprintf(&b, "run %s: %s\n", response.RunID, response.State)
	fmt.Fprintf(&b, "  target: %s\n", response.Target)
	fmt.Fprintf(&b, "  image:  %s\n", response.Image)
	if response.Digest != "" {
		fmt.Fprintf(&b, "  digest: %s\n", response.Digest)
	}
	if response.Event.Commit != "" {
		fmt.Fprintf(&b, "  commit: %s (%s)\n", response.Event.Commit, response.Event.Ref)
	}
	for _, s := range response.Steps {
		fmt.Fprintf(&b, "  %-8s %-8s %6.0fms\n", s.Name, s.Status, s.ElapsedTime)
	}
	if response.Error != "" {
		fmt.Fprintf(&b, "  error: %s\n", response.Error)
	}
	return []byte(strings.TrimRight(b.String(), "\n")), nil
}
