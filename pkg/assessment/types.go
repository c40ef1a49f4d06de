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
	"sort"
	"strings"

	"github.com/nuclio/errors"
	"gopkg.in/yaml.v3"
)

// ItemPlaceholder is replaced by the current item inside repeated sections
const ItemPlaceholder = "{item}"

// ProblemRequired is the validation problem of a required question left unanswered
const ProblemRequired = "required"

var ErrInvalidAnswer = errors.New("Invalid answer")
var ErrInvalidQuestionnaire = errors.New("Invalid questionnaire")

type QuestionType string

const (
	QuestionTypeText           QuestionType = "text"
	QuestionTypeSingleChoice   QuestionType = "single_choice"
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeNumber         QuestionType = "number"

	// step only types
	QuestionTypeSection         QuestionType = "section"
	QuestionTypeRepeatedSection QuestionType = "repeated_section"
)

type StepKind string

const (
	StepKindQuestion        StepKind = "question"
	StepKindSection         StepKind = "section"
	StepKindRepeatedSection StepKind = "repeated_section"
)

type Operator string

const (
	OperatorEqual    Operator = "=="
	OperatorNotEqual Operator = "!="
	OperatorIn       Operator = "in"
	OperatorContains Operator = "contains"
)

// ConditionValue is either a single string or a list of strings
type ConditionValue struct {
	Single string
	List   []string
	IsList bool
}

func (cv *ConditionValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		cv.IsList = false
		return node.Decode(&cv.Single)
	case yaml.SequenceNode:
		cv.IsList = true
		return node.Decode(&cv.List)
	default:
		return errors.Errorf("Condition value must be a string or a list (line %d)", node.Line)
	}
}

func (cv ConditionValue) MarshalJSON() ([]byte, error) {
	if cv.IsList {
		return json.Marshal(cv.List)
	}

	return json.Marshal(cv.Single)
}

func (cv ConditionValue) String() string {
	if cv.IsList {
		return "[" + strings.Join(cv.List, ", ") + "]"
	}

	return cv.Single
}

// Condition shows a question or section only when the answer to another question matches
type Condition struct {
	QuestionID string         `yaml:"question_id" json:"question_id"`
	Operator   Operator       `yaml:"operator" json:"operator"`
	Value      ConditionValue `yaml:"value" json:"value"`
}

type Question struct {
	ID          string       `yaml:"id" json:"id"`
	Type        QuestionType `yaml:"type" json:"type"`
	Text        string       `yaml:"text,omitempty" json:"text,omitempty"`
	Help        string       `yaml:"help,omitempty" json:"help,omitempty"`
	Required    bool         `yaml:"required,omitempty" json:"required,omitempty"`
	Multiline   bool         `yaml:"multiline,omitempty" json:"multiline,omitempty"`
	StoreAsList bool         `yaml:"store_as_list,omitempty" json:"store_as_list,omitempty"`
	Options     []string     `yaml:"options,omitempty" json:"options,omitempty"`
	Condition   *Condition   `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// resolve returns the question as asked for item
func (q *Question) resolve(item string) Question {
	resolved := *q
	if item == "" {
		return resolved
	}

	resolved.ID = strings.ReplaceAll(q.ID, ItemPlaceholder, item)
	resolved.Text = strings.ReplaceAll(q.Text, ItemPlaceholder, item)
	resolved.Help = strings.ReplaceAll(q.Help, ItemPlaceholder, item)

	if q.Condition != nil {
		condition := *q.Condition
		condition.QuestionID = strings.ReplaceAll(condition.QuestionID, ItemPlaceholder, item)
		resolved.Condition = &condition
	}

	return resolved
}

func (q *Question) isTemplate() bool {
	return strings.Contains(q.ID, ItemPlaceholder)
}

// Step is one screen of the questionnaire: a single question, a section or a repeated section
type Step struct {
	Question  `yaml:",inline"`
	RepeatFor string     `yaml:"repeat_for,omitempty" json:"repeat_for,omitempty"`
	Questions []Question `yaml:"questions,omitempty" json:"questions,omitempty"`
}

func (s *Step) Kind() StepKind {
	switch s.Type {
	case QuestionTypeSection:
		return StepKindSection
	case QuestionTypeRepeatedSection:
		return StepKindRepeatedSection
	default:
		return StepKindQuestion
	}
}

// Instance is a question as presented, with templates resolved for an item
type Instance struct {
	Question
	Item   string      `json:"item,omitempty"`
	Answer interface{} `json:"answer,omitempty"`
}

// StepView is a step resolved against the current answers
type StepView struct {
	Index      int        `json:"index"`
	ID         string     `json:"id"`
	Kind       StepKind   `json:"kind"`
	Applicable bool       `json:"applicable"`
	Items      []string   `json:"items,omitempty"`
	Questions  []Instance `json:"questions"`
}

// State is the progress of one respondent through the questionnaire
type State struct {
	Answers              Answers `json:"answers"`
	CurrentQuestionIndex int     `json:"current_question_index"`
	Completed            bool    `json:"completed"`
}

type Progress struct {
	Current   int     `json:"current"`
	Total     int     `json:"total"`
	Fraction  float64 `json:"fraction"`
	Completed bool    `json:"completed"`
}

type SummaryRow struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// ValidationError lists the problems of a rejected submission, per question id
type ValidationError struct {
	Problems map[string]string
}

func (ve *ValidationError) Error() string {
	ids := make([]string, 0, len(ve.Problems))
	for id := range ve.Problems {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	var descriptions []string
	for _, id := range ids {
		descriptions = append(descriptions, fmt.Sprintf("%s: %s", id, ve.Problems[id]))
	}

	return "Invalid answers: " + strings.Join(descriptions, "; ")
}
