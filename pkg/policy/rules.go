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
	"regexp"
	"strings"

	"github.com/dataflowassess/dfa/pkg/assessment"

	"github.com/samber/lo"
)

const (
	roleDataProcessor        = "Data Processor"
	attributeSpecialCategory = "Special Category (Sensitive) Personal Data"
)

var answerPlaceholder = regexp.MustCompile(`\{([a-z0-9_]+)\}`)

// EU and EEA designations, including member states in english and german
var europeanLocations = []string{
	"eu", "eea", "ewr", "european union", "europäische union", "europe", "europa",

	"austria", "belgium", "bulgaria", "croatia", "cyprus", "czechia", "czech republic", "denmark",
	"estonia", "finland", "france", "germany", "greece", "hungary", "ireland", "italy", "latvia",
	"lithuania", "luxembourg", "malta", "netherlands", "poland", "portugal", "romania", "slovakia",
	"slovenia", "spain", "sweden", "iceland", "liechtenstein", "norway",

	"österreich", "belgien", "bulgarien", "kroatien", "zypern", "tschechien", "dänemark", "estland",
	"finnland", "frankreich", "deutschland", "griechenland", "ungarn", "irland", "italien", "lettland",
	"litauen", "luxemburg", "niederlande", "polen", "rumänien", "slowakei", "slowenien", "spanien",
	"schweden", "island", "norwegen",
}

type rule struct {
	id              string
	policy          string
	description     string
	applies         func(answers assessment.Answers) bool
	recommendations []string
}

func defaultRules() []rule {
	return []rule{
		{
			id:          "gdpr_applicability",
			policy:      "GDPR Compliance",
			description: "Your system processes data of EU/EEA individuals or operates in the EU, requiring GDPR compliance.",
			applies: func(answers assessment.Answers) bool {
				return lo.ContainsBy(answers.List("data_parties"), func(party string) bool {
					return isEuropean(answers.String("party_location_" + party))
				})
			},
			recommendations: []string{
				"Appoint a Data Protection Officer (DPO) if required",
				"Implement a robust consent management mechanism",
				"Conduct Data Protection Impact Assessments (DPIA) for high-risk processing",
				"Ensure data subject rights are properly addressed (access, rectification, erasure, etc.)",
				"Maintain records of processing activities",
			},
		},
		{
			id:          "special_category_data",
			policy:      "Special Category Data Protection",
			description: "Your system processes special category (sensitive) personal data, requiring additional safeguards and legal basis.",
			applies: func(answers assessment.Answers) bool {
				return lo.ContainsBy(answers.List("data_attributes"), func(attribute string) bool {
					return answers.String("attribute_type_"+attribute) == attributeSpecialCategory
				})
			},
			recommendations: []string{
				"Ensure explicit consent or another specific legal basis for processing special category data",
				"Implement stronger security measures for sensitive data",
				"Minimize the collection and retention of sensitive data",
				"Consider pseudonymization or anonymization techniques",
				"Conduct a Data Protection Impact Assessment (DPIA)",
			},
		},
		{
			id:          "cross_border_transfers",
			policy:      "Cross-Border Data Transfer",
			description: "Your system transfers data across borders, requiring appropriate transfer mechanisms.",
			applies: func(answers assessment.Answers) bool {
				return answers.String("data_transfers") == "Yes"
			},
			recommendations: []string{
				"Implement appropriate data transfer mechanisms (SCCs, BCRs, etc.)",
				"Assess the adequacy of data protection in recipient countries",
				"Include appropriate contractual clauses with data recipients",
				"Document all cross-border data transfers",
				"Monitor changes in international data transfer regulations",
			},
		},
		{
			id:          "data_retention",
			policy:      "Data Retention Policy",
			description: "Your system should have a clear data retention policy.",
			applies: func(answers assessment.Answers) bool {
				return answers.Has("retention_period")
			},
			recommendations: []string{
				"Implement the stated retention period of '{retention_period}'",
				"Create a data deletion schedule and automation if possible",
				"Document the justification for the retention period",
				"Implement secure data destruction methods",
				"Regularly review and update the retention policy",
			},
		},
		{
			id:          "access_controls",
			policy:      "Access Control Policy",
			description: "Your system implements access controls, which should be formalized.",
			applies: func(answers assessment.Answers) bool {
				return lo.Contains(answers.List("security_measures"), "Access Controls")
			},
			recommendations: []string{
				"Document role-based access control (RBAC) policies",
				"Implement least privilege principles",
				"Regularly review user access rights",
				"Implement strong authentication methods",
				"Create procedures for adding/removing user access",
			},
		},
		{
			id:          "encryption",
			policy:      "Encryption Policy",
			description: "Your system uses encryption, which should be standardized across the system.",
			applies: func(answers assessment.Answers) bool {
				return lo.Contains(answers.List("security_measures"), "Encryption")
			},
			recommendations: []string{
				"Document encryption standards for data at rest and in transit",
				"Implement key management procedures",
				"Regularly update encryption algorithms to industry standards",
				"Consider end-to-end encryption for sensitive communications",
				"Train staff on proper encryption practices",
			},
		},
		{
			id:          "data_processor_agreements",
			policy:      "Data Processing Agreements",
			description: "Your system involves data processors, requiring appropriate agreements.",
			applies: func(answers assessment.Answers) bool {
				return lo.ContainsBy(answers.List("data_parties"), func(party string) bool {
					return answers.String("party_role_"+party) == roleDataProcessor
				})
			},
			recommendations: []string{
				"Ensure Data Processing Agreements (DPAs) are in place with all processors",
				"Include provisions for security, confidentiality, and data subject rights",
				"Define processor obligations for data breach notification",
				"Specify audit rights and compliance verification",
				"Address sub-processor engagement requirements",
			},
		},
		{
			id:          "incident_response",
			policy:      "Incident Response Plan",
			description: "All systems should have an incident response plan for data breaches.",
			applies: func(answers assessment.Answers) bool {
				return true
			},
			recommendations: []string{
				"Create a documented incident response procedure",
				"Define roles and responsibilities during a breach",
				"Establish notification timelines and procedures",
				"Implement a process for breach severity assessment",
				"Conduct regular incident response drills",
			},
		},
	}
}

// isEuropean matches a free text location, which may list several places separated by commas or slashes
func isEuropean(location string) bool {
	parts := strings.FieldsFunc(strings.ToLower(location), func(r rune) bool {
		return r == ',' || r == '/' || r == ';'
	})

	return lo.ContainsBy(parts, func(part string) bool {
		return lo.Contains(europeanLocations, strings.TrimSpace(part))
	})
}

// interpolate replaces {question_id} placeholders with the answer, or "undefined" if there is none
func interpolate(text string, answers assessment.Answers) string {
	return answerPlaceholder.ReplaceAllStringFunc(text, func(placeholder string) string {
		id := placeholder[1 : len(placeholder)-1]
		if !answers.Has(id) {
			return "undefined"
		}

		return answers.String(id)
	})
}
