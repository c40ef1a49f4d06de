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

package policy

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dataflowassess/dfa/pkg/assessment"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type GeneratorTestSuite struct {
	suite.Suite
	logger    logger.Logger
	ctx       context.Context
	generator *Generator
	answers   assessment.Answers
}

func (suite *GeneratorTestSuite) SetupSuite() {
	var err error

	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)

	suite.ctx = context.Background()
}

func (suite *GeneratorTestSuite) SetupTest() {
	suite.generator = NewGenerator(suite.logger)
	suite.answers = assessment.Answers{
		"system_name":              "Web Shop",
		"data_parties":             []string{"Acme", "Pay Ltd"},
		"party_role_Acme":          "Data Controller",
		"party_location_Acme":      "Deutschland",
		"party_role_Pay Ltd":       "Data Processor",
		"party_location_Pay Ltd":   "US",
		"data_attributes":          []string{"email", "diagnosis"},
		"attribute_type_email":     "Personal Data",
		"attribute_type_diagnosis": "Special Category (Sensitive) Personal Data",
		"data_transfers":           "Yes",
		"retention_period":         "2 years",
		"security_measures":        []string{"Encryption", "Access Controls"},
	}
}

func (suite *GeneratorTestSuite) TestGenerateAllRules() {
	suggestions := suite.generator.Generate(suite.ctx, suite.answers)

	suite.Require().Equal([]string{
		"gdpr_applicability",
		"special_category_data",
		"cross_border_transfers",
		"data_retention",
		"access_controls",
		"encryption",
		"data_processor_agreements",
		"incident_response",
	}, suggestionIDs(suggestions))

	retention, found := lo.Find(suggestions, func(suggestion Suggestion) bool {
		return suggestion.ID == "data_retention"
	})
	suite.Require().True(found)
	suite.Require().Equal("Implement the stated retention period of '2 years'", retention.Recommendations[0])
}

func (suite *GeneratorTestSuite) TestIncidentResponseAlwaysApplies() {
	suggestions := suite.generator.Generate(suite.ctx, assessment.Answers{})
	suite.Require().Equal([]string{"incident_response"}, suggestionIDs(suggestions))
}

func (suite *GeneratorTestSuite) TestGDPRLocations() {
	for _, testCase := range []struct {
		location string
		applies  bool
	}{
		{"EU", true},
		{"European Union", true},
		{"europe", true},
		{"Germany", true},
		{"Österreich", true},
		{"Berlin, Germany", true},
		{"Norway", true},
		{"US", false},
		{"Switzerland", false},
		{"", false},
	} {
		suite.Run(testCase.location, func() {
			answers := assessment.Answers{
				"data_parties":        []string{"Acme"},
				"party_location_Acme": testCase.location,
			}

			suggestions := suite.generator.Generate(suite.ctx, answers)
			suite.Require().Equal(testCase.applies, lo.Contains(suggestionIDs(suggestions), "gdpr_applicability"))
		})
	}
}

func (suite *GeneratorTestSuite) TestExportMarkdown() {
	exported, err := suite.generator.Export(suite.ctx, suite.answers, FormatMarkdown)
	suite.Require().NoError(err)

	suite.Require().True(strings.HasPrefix(exported, "# Policy Suggestions for Web Shop\n\n## GDPR Compliance\n\n"))
	suite.Require().Contains(exported, "### Recommendations\n\n- Appoint a Data Protection Officer (DPO) if required\n")

	exported, err = suite.generator.Export(suite.ctx, assessment.Answers{}, FormatMarkdown)
	suite.Require().NoError(err)
	suite.Require().True(strings.HasPrefix(exported, "# Policy Suggestions for System\n"))
}

func (suite *GeneratorTestSuite) TestExportCSV() {
	exported, err := suite.generator.Export(suite.ctx, suite.answers, FormatCSV)
	suite.Require().NoError(err)

	records, err := csv.NewReader(strings.NewReader(exported)).ReadAll()
	suite.Require().NoError(err)

	// header plus five recommendations per policy
	suite.Require().Len(records, 1+8*5)
	suite.Require().Equal([]string{"Policy", "Description", "Recommendation"}, records[0])
	suite.Require().Equal("GDPR Compliance", records[1][0])
}

func (suite *GeneratorTestSuite) TestExportJSON() {
	exported, err := suite.generator.Export(suite.ctx, suite.answers, FormatJSON)
	suite.Require().NoError(err)
	suite.Require().Contains(exported, "\n  {\n    \"id\": \"gdpr_applicability\"")

	var suggestions []Suggestion
	suite.Require().NoError(json.Unmarshal([]byte(exported), &suggestions))
	suite.Require().Len(suggestions, 8)
}

func (suite *GeneratorTestSuite) TestExportWithoutSuggestions() {
	generator := &Generator{logger: suite.logger}

	exported, err := generator.Export(suite.ctx, suite.answers, FormatJSON)
	suite.Require().NoError(err)
	suite.Require().Equal(NoSuggestionsMessage, exported)
}

func (suite *GeneratorTestSuite) TestUnsupportedFormat() {
	_, err := suite.generator.Export(suite.ctx, suite.answers, Format("pdf"))
	suite.Require().Equal(ErrUnsupportedFormat, errors.RootCause(err))

	_, err = ParseFormat("pdf")
	suite.Require().Equal(ErrUnsupportedFormat, errors.RootCause(err))

	format, err := ParseFormat("CSV")
	suite.Require().NoError(err)
	suite.Require().Equal(FormatCSV, format)

	format, err = ParseFormat("")
	suite.Require().NoError(err)
	suite.Require().Equal(FormatMarkdown, format)
}

func (suite *GeneratorTestSuite) TestExportFileName() {
	suite.Require().Equal("Web_Shop_policies.csv", ExportFileName(suite.answers, FormatCSV))
	suite.Require().Equal("system_policies.md", ExportFileName(assessment.Answers{}, FormatMarkdown))
}

func suggestionIDs(suggestions []Suggestion) []string {
	return lo.Map(suggestions, func(suggestion Suggestion, _ int) string {
		return suggestion.ID
	})
}

func TestGeneratorTestSuite(t *testing.T) {
	suite.Run(t, new(GeneratorTestSuite))
}
