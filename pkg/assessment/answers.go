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

package assessment

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
)

// Answers maps resolved question ids to string, []string or float64 values
type Answers map[string]interface{}

// NormalizeAnswers converts decoded JSON (or YAML) values to the canonical answer types
func NormalizeAnswers(raw map[string]interface{}) (Answers, error) {
	answers := Answers{}

	for id, value := range raw {
		switch typedValue := value.(type) {
		case nil:
			continue
		case string:
			answers[id] = typedValue
		case []string:
			answers[id] = append([]string{}, typedValue...)
		case []interface{}:
			values, err := toStrings(typedValue)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidAnswer, "%s: %s", id, err.Error())
			}

			answers[id] = values
		case bool:
			return nil, errors.Wrapf(ErrInvalidAnswer, "%s: booleans are not valid answers", id)
		default:
			number, err := toNumber(typedValue)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidAnswer, "%s: %s", id, err.Error())
			}

			answers[id] = number
		}
	}

	return answers, nil
}

// String returns the answer as a string. lists and numbers are formatted
func (a Answers) String(id string) string {
	return FormatAnswer(a[id])
}

// List returns a list answer, or a single string answer as a one item list
func (a Answers) List(id string) []string {
	switch typedValue := a[id].(type) {
	case []string:
		return typedValue
	case string:
		if typedValue == "" {
			return nil
		}

		return []string{typedValue}
	default:
		return nil
	}
}

func (a Answers) Has(id string) bool {
	_, found := a[id]
	return found
}

func (a Answers) Clone() Answers {
	cloned := make(Answers, len(a))
	for id, value := range a {
		if values, isList := value.([]string); isList {
			value = append([]string{}, values...)
		}

		cloned[id] = value
	}

	return cloned
}

// FormatAnswer renders an answer for display, lists comma separated
func FormatAnswer(value interface{}) string {
	switch typedValue := value.(type) {
	case nil:
		return ""
	case string:
		return typedValue
	case []string:
		return strings.Join(typedValue, ", ")
	case float64:
		return strconv.FormatFloat(typedValue, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", typedValue)
	}
}

// normalizeAnswer validates a submitted value against its question. a nil result clears the answer
func normalizeAnswer(question *Question, value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}

	switch question.Type {
	case QuestionTypeText:
		return normalizeText(question, value)

	case QuestionTypeSingleChoice:
		choice, isString := value.(string)
		if !isString {
			return nil, errors.New("expected a single option")
		}

		if choice == "" {
			return nil, nil
		}

		if !lo.Contains(question.Options, choice) {
			return nil, errors.Errorf("%q is not one of the options", choice)
		}

		return choice, nil

	case QuestionTypeMultipleChoice:
		var choices []string

		switch typedValue := value.(type) {
		case string:
			choices = []string{typedValue}
		case []string:
			choices = typedValue
		case []interface{}:
			var err error
			if choices, err = toStrings(typedValue); err != nil {
				return nil, err
			}
		default:
			return nil, errors.New("expected a list of options")
		}

		for _, choice := range choices {
			if !lo.Contains(question.Options, choice) {
				return nil, errors.Errorf("%q is not one of the options", choice)
			}
		}

		return append([]string{}, lo.Uniq(choices)...), nil

	case QuestionTypeNumber:
		if text, isString := value.(string); isString {
			text = strings.TrimSpace(text)
			if text == "" {
				return nil, nil
			}

			number, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, errors.Errorf("%q is not a number", text)
			}

			value = number
		}

		number, err := toNumber(value)
		if err != nil {
			return nil, err
		}

		return number, nil

	default:
		return nil, errors.Errorf("Unsupported question type %s", question.Type)
	}
}

func normalizeText(question *Question, value interface{}) (interface{}, error) {
	var parts []string

	switch typedValue := value.(type) {
	case string:
		if !question.StoreAsList {
			if strings.TrimSpace(typedValue) == "" {
				return nil, nil
			}

			return typedValue, nil
		}

		parts = strings.Split(typedValue, ",")
	case []string:
		parts = typedValue
	case []interface{}:
		var err error
		if parts, err = toStrings(typedValue); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("expected text")
	}

	if !question.StoreAsList {
		return nil, errors.New("expected text, not a list")
	}

	// comma separated entries, trimmed, empty ones dropped
	var items []string
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}

	items = lo.Uniq(items)
	if len(items) == 0 {
		return nil, nil
	}

	return items, nil
}

// isAnswered returns true if value satisfies a required question
func isAnswered(value interface{}) bool {
	switch typedValue := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(typedValue) != ""
	case []string:
		return len(typedValue) > 0
	default:
		return true
	}
}

func toStrings(values []interface{}) ([]string, error) {
	result := make([]string, 0, len(values))
	for _, value := range values {
		text, isString := value.(string)
		if !isString {
			return nil, errors.Errorf("expected a list of strings, got %T", value)
		}

		result = append(result, text)
	}

	return result, nil
}

func toNumber(value interface{}) (float64, error) {
	var number float64

	switch typedValue := value.(type) {
	case float64:
		number = typedValue
	case float32:
		number = float64(typedValue)
	case int:
		number = float64(typedValue)
	case int64:
		number = float64(typedValue)
	case json.Number:
		parsed, err := typedValue.Float64()
		if err != nil {
			return 0, errors.Errorf("%q is not a number", typedValue.String())
		}

		number = parsed
	default:
		return 0, errors.Errorf("expected a number, got %T", value)
	}

	if math.IsNaN(number) || math.IsInf(number, 0) {
		return 0, errors.New("number must be finite")
	}

	return number, nil
}
