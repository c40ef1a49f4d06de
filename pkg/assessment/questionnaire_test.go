//go:build test_unit

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
	"testing"

	"github.com/nuclio/errors"
	"github.com/stretchr/testify/suite"
)

type QuestionnaireTestSuite struct {
	suite.Suite
	questionnaire *Questionnaire
	state         *State
}

func (suite *QuestionnaireTestSuite) SetupTest() {
	var err error

	suite.questionnaire, err = NewDefaultQuestionnaire()
	suite.Require().NoError(err)

	suite.state = &State{}
}

func (suite *QuestionnaireTestSuite) TestDefaultQuestionnaire() {
	suite.Require().Equal(15, suite.questionnaire.NumSteps())
	suite.Require().Equal(StepKindRepeatedSection, suite.questionnaire.Steps()[3].Kind())
	suite.Require().Equal(StepKindSection, suite.questionnaire.Steps()[11].Kind())
}

func (suite *QuestionnaireTestSuite) TestLookup() {
	question, item, found := suite.questionnaire.Lookup("system_name")
	suite.Require().True(found)
	suite.Require().Empty(item)
	suite.Require().Equal(QuestionTypeText, question.Type)

	question, item, found = suite.questionnaire.Lookup("party_role_Acme GmbH")
	suite.Require().True(found)
	suite.Require().Equal("Acme GmbH", item)
	suite.Require().Equal("party_role_{item}", question.ID)

	question, item, found = suite.questionnaire.Lookup("attribute_legal_basis_email")
	suite.Require().True(found)
	suite.Require().Equal("email", item)
	suite.Require().Equal(QuestionTypeSingleChoice, question.Type)

	question, _, found = suite.questionnaire.Lookup("transfer_safeguards")
	suite.Require().True(found)
	suite.Require().Equal(QuestionTypeMultipleChoice, question.Type)

	_, _, found = suite.questionnaire.Lookup("party_role_")
	suite.Require().False(found)

	_, _, found = suite.questionnaire.Lookup("favorite_color")
	suite.Require().False(found)
}

func (suite *QuestionnaireTestSuite) TestVisible() {
	answers := Answers{
		"data_transfers":  "Yes",
		"data_categories": []string{"Health Data", "Other"},
		"headcount":       float64(12),
		"single_category": []string{"Other"},
	}

	for _, testCase := range []struct {
		name      string
		condition *Condition
		visible   bool
	}{
		{"no condition", nil, true},
		{"equal", condition("data_transfers", OperatorEqual, "Yes"), true},
		{"equal mismatch", condition("data_transfers", OperatorEqual, "No"), false},
		{"not equal", condition("data_transfers", OperatorNotEqual, "No"), true},
		{"unanswered", condition("retention_period", OperatorNotEqual, "x"), false},
		{"in", conditionList("data_transfers", OperatorIn, "No", "Yes"), true},
		{"in mismatch", conditionList("data_transfers", OperatorIn, "No"), false},
		{"in number", conditionList("headcount", OperatorIn, "12"), true},
		{"in list answer", conditionList("data_categories", OperatorIn, "Health Data, Other"), false},
		{"in single element list answer", conditionList("single_category", OperatorIn, "Other"), false},
		{"contains list", condition("data_categories", OperatorContains, "Other"), true},
		{"contains list mismatch", condition("data_categories", OperatorContains, "Financial Data"), false},
		{"contains scalar", condition("data_transfers", OperatorContains, "Yes"), true},
	} {
		suite.Run(testCase.name, func() {
			suite.Require().Equal(testCase.visible, Visible(testCase.condition, answers))
		})
	}
}

func (suite *QuestionnaireTestSuite) TestWalkthrough() {
	suite.submit(map[string]interface{}{"system_name": "Web Shop"}, 1)
	suite.submit(map[string]interface{}{"system_description": "Sells things"}, 2)
	suite.submit(map[string]interface{}{"data_parties": "Acme, Pay Ltd, , Customers"}, 3)
	suite.Require().Equal([]string{"Acme", "Pay Ltd", "Customers"}, suite.state.Answers.List("data_parties"))

	view := suite.questionnaire.View(suite.state.CurrentQuestionIndex, suite.state.Answers)
	suite.Require().Equal([]string{"Acme", "Pay Ltd", "Customers"}, view.Items)

	// processing questions only appear once a role is known
	suite.Require().Len(view.Questions, 6)

	suite.submit(map[string]interface{}{
		"party_role_Acme":          "Data Controller",
		"party_location_Acme":      "Germany",
		"party_process_Acme":       "Order handling",
		"party_role_Pay Ltd":       "Data Processor",
		"party_location_Pay Ltd":   "EU",
		"party_process_Pay Ltd":    "Payments",
		"party_role_Customers":     "Data Subject",
		"party_location_Customers": "EU",
	}, 4)

	// "Other" not chosen, the follow up is skipped
	suite.submit(map[string]interface{}{"data_categories": []interface{}{"Contact Information"}}, 6)
	suite.submit(map[string]interface{}{"data_attributes": []interface{}{"email", "health record"}}, 7)
	suite.submit(map[string]interface{}{
		"attribute_type_email":         "Personal Data",
		"attribute_purpose_email":      "Order confirmation",
		"attribute_legal_basis_email":  "Contract Performance",
		"attribute_type_health record": "Non-Personal Data",
	}, 8)
	suite.submit(map[string]interface{}{"processing_activities": []interface{}{"Collection", "Storage"}}, 9)
	suite.submit(map[string]interface{}{"data_flows": "Acme sends orders to Pay Ltd"}, 10)
	suite.submit(map[string]interface{}{"data_transfers": "No"}, 12)
	suite.submit(map[string]interface{}{"retention_period": "2 years"}, 13)
	suite.Require().False(suite.state.Completed)

	suite.submit(map[string]interface{}{"security_measures": []interface{}{"Encryption"}}, 13)
	suite.Require().True(suite.state.Completed)

	progress := suite.questionnaire.Progress(suite.state)
	suite.Require().Equal(14, progress.Current)
	suite.Require().Equal(15, progress.Total)
	suite.Require().True(progress.Completed)

	summary := suite.questionnaire.Summary(suite.state.Answers)
	suite.Require().Contains(summary, SummaryRow{
		QuestionID: "party_role_Acme",
		Question:   "What role does Acme play in the data flow? (Acme)",
		Answer:     "Data Controller",
	})
	suite.Require().Contains(summary, SummaryRow{
		QuestionID: "data_parties",
		Question:   "List all parties involved in the data flow (comma separated):",
		Answer:     "Acme, Pay Ltd, Customers",
	})

	for _, row := range summary {
		suite.Require().NotEqual("party_process_Customers", row.QuestionID)
	}
}

func (suite *QuestionnaireTestSuite) TestRequiredAnswers() {
	err := suite.questionnaire.Submit(suite.state, map[string]interface{}{"system_name": "   "})
	suite.Require().Error(err)

	validationError, isValidationError := errors.RootCause(err).(*ValidationError)
	suite.Require().True(isValidationError)
	suite.Require().Equal("required", validationError.Problems["system_name"])
	suite.Require().Equal(0, suite.state.CurrentQuestionIndex)
}

func (suite *QuestionnaireTestSuite) TestRejectsQuestionsOfOtherSteps() {
	err := suite.questionnaire.Submit(suite.state, map[string]interface{}{
		"system_name":      "Web Shop",
		"retention_period": "forever",
	})
	suite.Require().Error(err)
	suite.Require().Empty(suite.state.Answers)
}

func (suite *QuestionnaireTestSuite) TestRejectsInvalidChoices() {
	suite.state.CurrentQuestionIndex = 10

	err := suite.questionnaire.Submit(suite.state, map[string]interface{}{"data_transfers": "Maybe"})
	suite.Require().Error(err)

	suite.state.CurrentQuestionIndex = 4

	err = suite.questionnaire.Submit(suite.state, map[string]interface{}{"data_categories": []interface{}{"Gossip"}})
	suite.Require().Error(err)
}

func (suite *QuestionnaireTestSuite) TestRepeatedSectionItemsMustExist() {
	suite.state.Answers = Answers{"data_parties": []string{"Acme"}}
	suite.state.CurrentQuestionIndex = 3

	err := suite.questionnaire.Submit(suite.state, map[string]interface{}{
		"party_role_Acme":     "Data Subject",
		"party_location_Acme": "EU",
		"party_role_Other":    "Data Subject",
	})
	suite.Require().Error(err)
}

func (suite *QuestionnaireTestSuite) TestConditionalSectionIsAsked() {
	suite.state.CurrentQuestionIndex = 10

	suite.submit(map[string]interface{}{"data_transfers": "Yes"}, 11)
	suite.submit(map[string]interface{}{
		"transfer_countries":  "US, India",
		"transfer_safeguards": []interface{}{"Standard Contractual Clauses"},
	}, 12)
	suite.Require().Equal([]string{"US", "India"}, suite.state.Answers.List("transfer_countries"))
}

func (suite *QuestionnaireTestSuite) TestBackSkipsInapplicableSteps() {
	suite.state.Answers = Answers{"data_categories": []string{"Health Data"}}
	suite.state.CurrentQuestionIndex = 6

	suite.questionnaire.Back(suite.state)
	suite.Require().Equal(4, suite.state.CurrentQuestionIndex)

	suite.state.CurrentQuestionIndex = 0
	suite.questionnaire.Back(suite.state)
	suite.Require().Equal(0, suite.state.CurrentQuestionIndex)

	suite.state.Completed = true
	suite.state.CurrentQuestionIndex = 13
	suite.questionnaire.Back(suite.state)
	suite.Require().False(suite.state.Completed)
	suite.Require().Equal(13, suite.state.CurrentQuestionIndex)
}

func (suite *QuestionnaireTestSuite) TestEditAfterCompletion() {
	suite.state.Completed = true
	suite.state.Answers = Answers{"system_name": "Web Shop", "retention_period": "1 year"}

	err := suite.questionnaire.Submit(suite.state, map[string]interface{}{"retention_period": "6 months"})
	suite.Require().NoError(err)
	suite.Require().Equal("6 months", suite.state.Answers["retention_period"])
	suite.Require().True(suite.state.Completed)

	err = suite.questionnaire.Submit(suite.state, map[string]interface{}{"system_name": ""})
	suite.Require().Error(err)
	suite.Require().Equal("Web Shop", suite.state.Answers["system_name"])
}

func (suite *QuestionnaireTestSuite) TestEditRejectsUnlistedItems() {
	suite.state.Completed = true
	suite.state.Answers = Answers{
		"system_name":     "Web Shop",
		"data_parties":    []string{"Acme"},
		"party_role_Acme": "Data Controller",
	}

	err := suite.questionnaire.Submit(suite.state, map[string]interface{}{"party_role_Acme": "Data Processor"})
	suite.Require().NoError(err)
	suite.Require().Equal("Data Processor", suite.state.Answers["party_role_Acme"])

	err = suite.questionnaire.Submit(suite.state, map[string]interface{}{"party_role_Ghost Ltd": "Data Processor"})
	suite.Require().Error(err)

	validationError, isValidationError := errors.RootCause(err).(*ValidationError)
	suite.Require().True(isValidationError)
	suite.Require().Contains(validationError.Problems, "party_role_Ghost Ltd")
	suite.Require().NotContains(suite.state.Answers, "party_role_Ghost Ltd")
}

func (suite *QuestionnaireTestSuite) TestNormalizeAnswers() {
	answers, err := NormalizeAnswers(map[string]interface{}{
		"data_parties": []interface{}{"Acme"},
		"headcount":    12,
		"cleared":      nil,
	})
	suite.Require().NoError(err)
	suite.Require().Equal(Answers{"data_parties": []string{"Acme"}, "headcount": float64(12)}, answers)

	_, err = NormalizeAnswers(map[string]interface{}{"flag": true})
	suite.Require().Equal(ErrInvalidAnswer, errors.RootCause(err))
}

func (suite *QuestionnaireTestSuite) TestParseRejectsInconsistentDefinitions() {
	for _, testCase := range []struct {
		name       string
		definition string
	}{
		{"empty", "steps: []"},
		{"unknown field", "steps:\n  - id: a\n    type: text\n    colour: red\n"},
		{"duplicate id", "steps:\n  - id: a\n    type: text\n  - id: a\n    type: text\n"},
		{"choice without options", "steps:\n  - id: a\n    type: single_choice\n"},
		{"unknown operator", `steps:
  - id: a
    type: text
  - id: b
    type: text
    condition: {question_id: a, operator: like, value: x}
`},
		{"condition on later question", `steps:
  - id: a
    type: text
    condition: {question_id: b, operator: "==", value: x}
  - id: b
    type: text
`},
		{"repeat for scalar", `steps:
  - id: a
    type: text
  - id: b
    type: repeated_section
    repeat_for: a
    questions:
      - {id: "c_{item}", type: text}
`},
		{"template without placeholder", `steps:
  - id: a
    type: text
    store_as_list: true
  - id: b
    type: repeated_section
    repeat_for: a
    questions:
      - {id: c, type: text}
`},
	} {
		suite.Run(testCase.name, func() {
			_, err := Parse([]byte(testCase.definition))
			suite.Require().Error(err)
			suite.Require().Equal(ErrInvalidQuestionnaire, errors.RootCause(err))
		})
	}
}

func (suite *QuestionnaireTestSuite) submit(submission map[string]interface{}, expectedIndex int) {
	err := suite.questionnaire.Submit(suite.state, submission)
	suite.Require().NoError(err)
	suite.Require().Equal(expectedIndex, suite.state.CurrentQuestionIndex)
}

func condition(questionID string, operator Operator, value string) *Condition {
	return &Condition{QuestionID: questionID, Operator: operator, Value: ConditionValue{Single: value}}
}

func conditionList(questionID string, operator Operator, values ...string) *Condition {
	return &Condition{QuestionID: questionID, Operator: operator, Value: ConditionValue{List: values, IsList: true}}
}

func TestQuestionnaireTestSuite(t *testing.T) {
	suite.Run(t, new(QuestionnaireTestSuite))
}
