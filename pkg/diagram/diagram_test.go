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

package diagram

import (
	"strings"
	"testing"

	"github.com/dataflowassess/dfa/pkg/assessment"
	"github.com/dataflowassess/dfa/pkg/i18n"

	"github.com/stretchr/testify/suite"
)

type GeneratorTestSuite struct {
	suite.Suite
	generator *Generator
	answers   assessment.Answers
}

func (suite *GeneratorTestSuite) SetupTest() {
	translator, err := i18n.NewTranslator()
	suite.Require().NoError(err)

	suite.generator = NewGenerator(translator)
	suite.answers = assessment.Answers{
		"system_name":              "Web Shop",
		"data_parties":             []string{"Acme", "Pay Ltd", "Customers", "Ads Inc"},
		"party_role_Acme":          "Data Controller",
		"party_location_Acme":      "Germany",
		"party_role_Pay Ltd":       "Data Processor",
		"party_location_Pay Ltd":   "EU",
		"party_process_Pay Ltd":    "Payments",
		"party_role_Customers":     "Data Subject",
		"party_role_Ads Inc":       "Third Party Recipient",
		"party_location_Ads Inc":   "US",
		"data_attributes":          []string{"email", "diagnosis"},
		"attribute_type_email":     "Personal Data",
		"attribute_type_diagnosis": "Special Category (Sensitive) Personal Data",
		"data_transfers":           "Yes",
		"transfer_countries":       []string{"US"},
		"transfer_safeguards":      []string{"Standard Contractual Clauses"},
	}
}

func (suite *GeneratorTestSuite) TestParties() {
	script := suite.generator.Generate(suite.answers, "en")

	suite.Require().True(strings.HasPrefix(script, "# Data Flow Diagram: Web Shop\ndirection: right\n"))
	suite.Require().Contains(script, `"Acme": "Acme\n(Data Controller, Germany)" {shape: rectangle}`)
	suite.Require().Contains(script, `"Pay Ltd": "Pay Ltd\n(Data Processor, EU)" {shape: hexagon}`)
	suite.Require().Contains(script, `"Customers": "Customers\n(Data Subject)" {shape: person}`)
	suite.Require().Contains(script, `"Ads Inc": "Ads Inc\n(Third Party Recipient, US)" {shape: cloud}`)
}

func (suite *GeneratorTestSuite) TestDataContainer() {
	script := suite.generator.Generate(suite.answers, "en")

	suite.Require().Contains(script, "data: \"Data\" {\n")
	suite.Require().Contains(script, `  "email": "email\n(Personal Data)" {shape: document}`)
	suite.Require().Contains(script,
		`  "diagnosis": "diagnosis\n(Special Category (Sensitive) Personal Data)" {shape: document; style.stroke: "#d62728"}`)
}

func (suite *GeneratorTestSuite) TestFlows() {
	script := suite.generator.Generate(suite.answers, "en")

	suite.Require().Contains(script, "# Data Flows\n")
	suite.Require().Contains(script, `"Customers" -> "Acme"`+"\n")
	suite.Require().Contains(script, `"Acme" -> "Pay Ltd": "Payments"`+"\n")
	suite.Require().Contains(script, `"Acme" -> "Ads Inc"`+"\n")
	suite.Require().NotContains(script, `"Customers" -> "Pay Ltd"`)
}

func (suite *GeneratorTestSuite) TestTransfers() {
	script := suite.generator.Generate(suite.answers, "de")

	suite.Require().Contains(script, "transfers: \"Grenzüberschreitende Übermittlungen\" {\n  \"US\": \"US\" {shape: cloud}\n}\n")
	suite.Require().Contains(script, `"Acme" -> transfers: "Standard Contractual Clauses"`)

	suite.answers["data_transfers"] = "No"
	suite.Require().NotContains(suite.generator.Generate(suite.answers, "de"), "transfers:")
}

func (suite *GeneratorTestSuite) TestQuoting() {
	script := suite.generator.Generate(assessment.Answers{
		"data_parties": []string{`The "Big" One`},
	}, "en")

	suite.Require().Contains(script, `"The \"Big\" One": "The \"Big\" One" {shape: oval}`)
	suite.Require().NotContains(script, "# Data Flows")
}

func (suite *GeneratorTestSuite) TestEmptyAnswers() {
	suite.Require().Equal("# Datenflussdiagramm\ndirection: right\n\n# Beteiligte\n",
		suite.generator.Generate(assessment.Answers{}, "de"))
}

func TestGeneratorTestSuite(t *testing.T) {
	suite.Run(t, new(GeneratorTestSuite))
}
