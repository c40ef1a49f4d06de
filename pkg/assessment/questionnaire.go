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
	"bytes"
	_ "embed"
	"strings"

	"github.com/nuclio/errors"
	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestionnaire []byte

// template is a question of a repeated section, matched by the text around its placeholder
type template struct {
	question  *Question
	stepIndex int
	prefix    string
	suffix    string
}

type Questionnaire struct {
	steps     []Step
	questions map[string]*Question
	stepIndex map[string]int
	templates []template
}

// NewDefaultQuestionnaire returns the built in data flow assessment questionnaire
func NewDefaultQuestionnaire() (*Questionnaire, error) {
	return Parse(defaultQuestionnaire)
}

// Parse reads a questionnaire definition and verifies it is consistent
func Parse(contents []byte) (*Questionnaire, error) {
	var definition struct {
		Steps []Step `yaml:"steps"`
	}

	decoder := yaml.NewDecoder(bytes.NewReader(contents))
	decoder.KnownFields(true)

	if err := decoder.Decode(&definition); err != nil {
		return nil, errors.Wrap(ErrInvalidQuestionnaire, err.Error())
	}

	questionnaire := &Questionnaire{
		steps:     definition.Steps,
		questions: map[string]*Question{},
		stepIndex: map[string]int{},
	}

	if err := questionnaire.index(); err != nil {
		return nil, errors.Wrap(ErrInvalidQuestionnaire, err.Error())
	}

	return questionnaire, nil
}

func (q *Questionnaire) Steps() []Step {
	return q.steps
}

func (q *Questionnaire) NumSteps() int {
	return len(q.steps)
}

// Lookup finds a question by its resolved id. ids of repeated section questions resolve to their
// template and the item they were asked for
func (q *Questionnaire) Lookup(id string) (*Question, string, bool) {
	question, item, _, found := q.lookup(id)
	return question, item, found
}

// lookup is Lookup, also returning the index of the step asking the question
func (q *Questionnaire) lookup(id string) (*Question, string, int, bool) {
	if question, found := q.questions[id]; found {
		return question, "", q.stepIndex[id], true
	}

	var match *template
	for templateIndex := range q.templates {
		candidate := &q.templates[templateIndex]

		if len(id) <= len(candidate.prefix)+len(candidate.suffix) ||
			!strings.HasPrefix(id, candidate.prefix) ||
			!strings.HasSuffix(id, candidate.suffix) {
			continue
		}

		// the most specific template wins
		if match == nil || len(candidate.prefix) > len(match.prefix) {
			match = candidate
		}
	}

	if match == nil {
		return nil, "", 0, false
	}

	return match.question, id[len(match.prefix) : len(id)-len(match.suffix)], match.stepIndex, true
}

// Visible evaluates a condition against the answers. an unanswered referenced question hides
// the target
func Visible(condition *Condition, answers Answers) bool {
	if condition == nil {
		return true
	}

	answer, found := answers[condition.QuestionID]
	if !found {
		return false
	}

	switch condition.Operator {
	case OperatorEqual:
		text, isString := answer.(string)
		return isString && text == condition.Value.Single

	case OperatorNotEqual:
		text, isString := answer.(string)
		return !isString || text != condition.Value.Single

	case OperatorIn:

		// only a scalar answer can be one of the listed values
		if _, isList := answer.([]string); isList || !condition.Value.IsList {
			return false
		}

		for _, value := range condition.Value.List {
			if FormatAnswer(answer) == value {
				return true
			}
		}

		return false

	case OperatorContains:
		if values, isList := answer.([]string); isList {
			for _, value := range values {
				if value == condition.Value.Single {
					return true
				}
			}

			return false
		}

		return FormatAnswer(answer) == condition.Value.Single

	default:
		return true
	}
}

func (q *Questionnaire) index() error {
	if len(q.steps) == 0 {
		return errors.New("No steps defined")
	}

	for stepIndex := range q.steps {
		step := &q.steps[stepIndex]

		if step.ID == "" {
			return errors.Errorf("Step %d has no id", stepIndex)
		}

		if _, found := q.stepIndex[step.ID]; found {
			return errors.Errorf("Duplicate step id %s", step.ID)
		}

		q.stepIndex[step.ID] = stepIndex

		if err := q.validateCondition(step.Condition, stepIndex, false); err != nil {
			return errors.Wrapf(err, "Step %s", step.ID)
		}

		switch step.Kind() {
		case StepKindQuestion:
			if err := q.addQuestion(&step.Question, stepIndex, false); err != nil {
				return err
			}

		case StepKindSection:
			if len(step.Questions) == 0 {
				return errors.Errorf("Section %s has no questions", step.ID)
			}

			for questionIndex := range step.Questions {
				if err := q.addQuestion(&step.Questions[questionIndex], stepIndex, false); err != nil {
					return err
				}
			}

		case StepKindRepeatedSection:
			repeatFor, found := q.questions[step.RepeatFor]
			// questions are indexed in order, so a known one is an earlier one
			if !found {
				return errors.Errorf("Repeated section %s must repeat for an earlier question, got %q",
					step.ID,
					step.RepeatFor)
			}

			if !(repeatFor.Type == QuestionTypeMultipleChoice || repeatFor.StoreAsList) {
				return errors.Errorf("Repeated section %s must repeat for a list question", step.ID)
			}

			if len(step.Questions) == 0 {
				return errors.Errorf("Repeated section %s has no questions", step.ID)
			}

			for questionIndex := range step.Questions {
				if err := q.addQuestion(&step.Questions[questionIndex], stepIndex, true); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (q *Questionnaire) addQuestion(question *Question, stepIndex int, repeated bool) error {
	if question.ID == "" {
		return errors.Errorf("Question in step %d has no id", stepIndex)
	}

	switch question.Type {
	case QuestionTypeText, QuestionTypeNumber:
	case QuestionTypeSingleChoice, QuestionTypeMultipleChoice:
		if len(question.Options) == 0 {
			return errors.Errorf("Question %s has no options", question.ID)
		}
	default:
		return errors.Errorf("Question %s has unsupported type %q", question.ID, question.Type)
	}

	if err := q.validateCondition(question.Condition, stepIndex, repeated); err != nil {
		return errors.Wrapf(err, "Question %s", question.ID)
	}

	if repeated {
		if !question.isTemplate() {
			return errors.Errorf("Question %s of a repeated section must contain %s", question.ID, ItemPlaceholder)
		}

		placeholderIndex := strings.Index(question.ID, ItemPlaceholder)

		q.templates = append(q.templates, template{
			question:  question,
			stepIndex: stepIndex,
			prefix:    question.ID[:placeholderIndex],
			suffix:    question.ID[placeholderIndex+len(ItemPlaceholder):],
		})

		return nil
	}

	if _, found := q.questions[question.ID]; found {
		return errors.Errorf("Duplicate question id %s", question.ID)
	}

	q.questions[question.ID] = question
	q.stepIndex[question.ID] = stepIndex

	return nil
}

func (q *Questionnaire) validateCondition(condition *Condition, stepIndex int, repeated bool) error {
	if condition == nil {
		return nil
	}

	switch condition.Operator {
	case OperatorEqual, OperatorNotEqual, OperatorContains:
		if condition.Value.IsList {
			return errors.Errorf("Operator %s needs a single value", condition.Operator)
		}
	case OperatorIn:
		if !condition.Value.IsList {
			return errors.New("Operator in needs a list value")
		}
	default:
		return errors.Errorf("Unsupported operator %q", condition.Operator)
	}

	// templated references are resolved per item
	if repeated && strings.Contains(condition.QuestionID, ItemPlaceholder) {
		return nil
	}

	if _, found := q.questions[condition.QuestionID]; !found {
		return errors.Errorf("Condition refers to unknown or later question %q", condition.QuestionID)
	}

	return nil
}
