/*
Copyright 2024 The Nuclio Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package policy

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dataflowassess/dfa/pkg/assessment"
	"github.com/dataflowassess/dfa/pkg/common"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/samber/lo"
)

const NoSuggestionsMessage = "No policy suggestions could be generated."

var ErrUnsupportedFormat = errors.New("Unsupported export format")

type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

func ParseFormat(name string) (Format, error) {
	switch format := Format(strings.ToLower(name)); format {
	case "", FormatMarkdown:
		return FormatMarkdown, nil
	case FormatCSV, FormatJSON:
		return format, nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "%q", name)
	}
}

func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "md"
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json"
	default:
		return "text/markdown; charset=utf-8"
	}
}

type Suggestion struct {
	ID              string   `json:"id"`
	Policy          string   `json:"policy"`
	Description     string   `json:"description"`
	Recommendations []string `json:"recommendations"`
}

type Generator struct {
	logger logger.Logger
	rules  []rule
}

func NewGenerator(parentLogger logger.Logger) *Generator {
	return &Generator{
		logger: parentLogger.GetChild("policy"),
		rules:  defaultRules(),
	}
}

// Generate returns the suggestions whose rules apply to the answers, in rule order
func (g *Generator) Generate(ctx context.Context, answers assessment.Answers) []Suggestion {
	applicable := lo.Filter(g.rules, func(rule rule, _ int) bool {
		return rule.applies(answers)
	})

	suggestions := lo.Map(applicable, func(rule rule, _ int) Suggestion {
		return Suggestion{
			ID:          rule.id,
			Policy:      rule.policy,
			Description: rule.description,
			Recommendations: lo.Map(rule.recommendations, func(recommendation string, _ int) string {
				return interpolate(recommendation, answers)
			}),
		}
	})

	g.logger.DebugWithCtx(ctx, "Generated policy suggestions",
		"policies", lo.Map(suggestions, func(suggestion Suggestion, _ int) string { return suggestion.ID }))

	return suggestions
}

func (g *Generator) Export(ctx context.Context, answers assessment.Answers, format Format) (string, error) {
	suggestions := g.Generate(ctx, answers)
	if len(suggestions) == 0 {
		return NoSuggestionsMessage, nil
	}

	switch format {
	case FormatMarkdown:
		return renderMarkdown(answers, suggestions), nil
	case FormatCSV:
		return renderCSV(suggestions)
	case FormatJSON:
		encoded, err := json.MarshalIndent(suggestions, "", "  ")
		if err != nil {
			return "", errors.Wrap(err, "Failed to encode policy suggestions")
		}

		return string(encoded), nil
	default:
		return "", errors.Wrapf(ErrUnsupportedFormat, "%q", format)
	}
}

// ExportFileName returns the download name of an export, derived from the system name
func ExportFileName(answers assessment.Answers, format Format) string {
	name := "system"
	if systemName := strings.TrimSpace(answers.String("system_name")); systemName != "" {
		name = common.SafeFileName(systemName)
	}

	return fmt.Sprintf("%s_policies.%s", name, format.Extension())
}

func renderMarkdown(answers assessment.Answers, suggestions []Suggestion) string {
	systemName := answers.String("system_name")
	if systemName == "" {
		systemName = "System"
	}

	var builder strings.Builder

	fmt.Fprintf(&builder, "# Policy Suggestions for %s\n\n", systemName)

	for _, suggestion := range suggestions {
		fmt.Fprintf(&builder, "## %s\n\n", suggestion.Policy)
		fmt.Fprintf(&builder, "%s\n\n", suggestion.Description)
		builder.WriteString("### Recommendations\n\n")

		for _, recommendation := range suggestion.Recommendations {
			fmt.Fprintf(&builder, "- %s\n", recommendation)
		}

		builder.WriteString("\n")
	}

	return builder.String()
}

// renderCSV writes one row per recommendation
func renderCSV(suggestions []Suggestion) (string, error) {
	var buffer bytes.Buffer

	writer := csv.NewWriter(&buffer)
	if err := writer.Write([]string{"Policy", "Description", "Recommendation"}); err != nil {
		return "", errors.Wrap(err, "Failed to write header")
	}

	for _, suggestion := range suggestions {
		for _, recommendation := range suggestion.Recommendations {
			if err := writer.Write([]string{suggestion.Policy, suggestion.Description, recommendation}); err != nil {
				return "", errors.Wrap(err, "Failed to write row")
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", errors.Wrap(err, "Failed to flush rows")
	}

	return buffer.String(), nil
}
