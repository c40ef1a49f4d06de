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
	"fmt"

	"github.com/nuclio/errors"
	"github.com/samber/lo"
)

// View resolves the step at index against the answers
func (q *Questionnaire) View(index int, answers Answers) *StepView {
	index = q.clampIndex(index)
	step := &q.steps[index]

	view := &StepView{
		Index:      index,
		ID:         step.ID,
		Kind:       step.Kind(),
		Applicable: q.applicable(index, answers),
		Questions:  []Instance{},
	}

	if step.Kind() == StepKindRepeatedSection {
		view.Items = answers.List(step.RepeatFor)
	}

	for _, instance := range q.instances(index, answers) {
		instance.Answer = answers[instance.ID]
		view.Questions = append(view.Questions, instance)
	}

	return view
}

// Submit records answers for the current step and advances to the next applicable step, completing
// the questionnaire after the last one. once completed, any question may be answered again
func (q *Questionnaire) Submit(state *State, submission map[string]interface{}) error {
	if state.Answers == nil {
		state.Answers = Answers{}
	}

	if state.Completed {
		return q.edit(state, submission)
	}

	index := q.clampIndex(state.CurrentQuestionIndex)
	answers := state.Answers.Clone()
	problems := map[string]string{}

	for id, value := range submission {
		question, found := q.lookupInStep(index, id, state.Answers)
		if !found {
			problems[id] = "not asked in this step"
			continue
		}

		normalizedValue, err := normalizeAnswer(question, value)
		if err != nil {
			problems[id] = err.Error()
			continue
		}

		if normalizedValue == nil {
			delete(answers, id)
		} else {
			answers[id] = normalizedValue
		}
	}

	if len(problems) == 0 {
		q.validateRequired(index, answers, problems)
	}

	if len(problems) > 0 {
		return errors.Wrap(&ValidationError{Problems: problems}, "Submission rejected")
	}

	state.Answers = answers

	if next := q.nextApplicable(index+1, answers); next != -1 {
		state.CurrentQuestionIndex = next
	} else {
		state.CurrentQuestionIndex = index
		state.Completed = true
	}

	return nil
}

// Back moves to the previous applicable step. a completed questionnaire is reopened at its last step
func (q *Questionnaire) Back(state *State) {
	if state.Completed {
		state.Completed = false
		return
	}

	index := q.clampIndex(state.CurrentQuestionIndex)
	for previous := index - 1; previous >= 0; previous-- {
		if q.applicable(previous, state.Answers) {
			state.CurrentQuestionIndex = previous
			return
		}
	}

	state.CurrentQuestionIndex = index
}

func (q *Questionnaire) Progress(state *State) *Progress {
	current := q.clampIndex(state.CurrentQuestionIndex) + 1

	return &Progress{
		Current:   current,
		Total:     len(q.steps),
		Fraction:  float64(current) / float64(len(q.steps)),
		Completed: state.Completed,
	}
}

// Summary lists answered questions in questionnaire order. questions of repeated sections are
// suffixed with their item
func (q *Questionnaire) Summary(answers Answers) []SummaryRow {
	rows := []SummaryRow{}

	for index := range q.steps {
		step := &q.steps[index]

		switch step.Kind() {
		case StepKindQuestion:
			if answers.Has(step.ID) {
				rows = append(rows, SummaryRow{
					QuestionID: step.ID,
					Question:   step.Text,
					Answer:     answers.String(step.ID),
				})
			}

		case StepKindSection:
			if !Visible(step.Condition, answers) {
				continue
			}

			for _, question := range step.Questions {
				if answers.Has(question.ID) {
					rows = append(rows, SummaryRow{
						QuestionID: question.ID,
						Question:   question.Text,
						Answer:     answers.String(question.ID),
					})
				}
			}

		case StepKindRepeatedSection:
			for _, instance := range q.instances(index, answers) {
				if answers.Has(instance.ID) {
					rows = append(rows, SummaryRow{
						QuestionID: instance.ID,
						Question:   fmt.Sprintf("%s (%s)", instance.Text, instance.Item),
						Answer:     answers.String(instance.ID),
					})
				}
			}
		}
	}

	return rows
}

// NormalizeState brings an imported state into range
func (q *Questionnaire) NormalizeState(state *State) {
	if state.Answers == nil {
		state.Answers = Answers{}
	}

	state.CurrentQuestionIndex = q.clampIndex(state.CurrentQuestionIndex)
}

func (q *Questionnaire) edit(state *State, submission map[string]interface{}) error {
	answers := state.Answers.Clone()
	problems := map[string]string{}

	for id, value := range submission {
		_, _, stepIndex, found := q.lookup(id)
		if !found {
			problems[id] = "unknown question"
			continue
		}

		// repeated questions only exist for the items currently listed
		question, found := q.lookupInStep(stepIndex, id, state.Answers)
		if !found {
			problems[id] = "not asked for the current items"
			continue
		}

		normalizedValue, err := normalizeAnswer(question, value)
		if err != nil {
			problems[id] = err.Error()
			continue
		}

		if normalizedValue == nil {
			if question.Required {
				problems[id] = ProblemRequired
				continue
			}

			delete(answers, id)
			continue
		}

		answers[id] = normalizedValue
	}

	if len(problems) > 0 {
		return errors.Wrap(&ValidationError{Problems: problems}, "Edit rejected")
	}

	state.Answers = answers

	return nil
}

// instances returns the visible questions of a step
func (q *Questionnaire) instances(index int, answers Answers) []Instance {
	step := &q.steps[index]
	var instances []Instance

	switch step.Kind() {
	case StepKindQuestion:
		if Visible(step.Condition, answers) {
			instances = append(instances, Instance{Question: step.Question})
		}

	case StepKindSection:
		if !Visible(step.Condition, answers) {
			return nil
		}

		for questionIndex := range step.Questions {
			question := &step.Questions[questionIndex]
			if Visible(question.Condition, answers) {
				instances = append(instances, Instance{Question: *question})
			}
		}

	case StepKindRepeatedSection:
		for _, item := range answers.List(step.RepeatFor) {
			for questionIndex := range step.Questions {
				resolved := step.Questions[questionIndex].resolve(item)
				if Visible(resolved.Condition, answers) {
					instances = append(instances, Instance{Question: resolved, Item: item})
				}
			}
		}
	}

	return instances
}

// applicable returns false for steps which would show nothing given the answers
func (q *Questionnaire) applicable(index int, answers Answers) bool {
	step := &q.steps[index]

	switch step.Kind() {
	case StepKindRepeatedSection:
		return len(answers.List(step.RepeatFor)) > 0
	default:
		return Visible(step.Condition, answers)
	}
}

func (q *Questionnaire) nextApplicable(from int, answers Answers) int {
	for index := from; index < len(q.steps); index++ {
		if q.applicable(index, answers) {
			return index
		}
	}

	return -1
}

// lookupInStep resolves id to a question of the step at index. items come from the recorded answers
func (q *Questionnaire) lookupInStep(index int, id string, answers Answers) (*Question, bool) {
	step := &q.steps[index]

	switch step.Kind() {
	case StepKindQuestion:
		if step.ID == id {
			return &step.Question, true
		}

	case StepKindSection:
		for questionIndex := range step.Questions {
			if step.Questions[questionIndex].ID == id {
				return &step.Questions[questionIndex], true
			}
		}

	case StepKindRepeatedSection:
		question, item, found := q.Lookup(id)
		if !found || !lo.Contains(answers.List(step.RepeatFor), item) {
			return nil, false
		}

		for questionIndex := range step.Questions {
			if &step.Questions[questionIndex] == question {
				return question, true
			}
		}
	}

	return nil, false
}

func (q *Questionnaire) validateRequired(index int, answers Answers, problems map[string]string) {
	step := &q.steps[index]

	if step.Kind() == StepKindRepeatedSection && len(answers.List(step.RepeatFor)) == 0 {
		problems[step.RepeatFor] = "must be answered first"
		return
	}

	for _, instance := range q.instances(index, answers) {
		if instance.Required && !isAnswered(answers[instance.ID]) {
			problems[instance.ID] = ProblemRequired
		}
	}
}

func (q *Questionnaire) clampIndex(index int) int {
	if index < 0 {
		return 0
	}

	if index >= len(q.steps) {
		return len(q.steps) - 1
	}

	return index
}
