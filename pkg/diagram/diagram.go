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
	"fmt"
	"strings"

	"github.com/dataflowassess/dfa/pkg/assessment"
	"github.com/dataflowassess/dfa/pkg/i18n"

	"github.com/samber/lo"
)

const (
	roleDataController        = "Data Controller"
	roleJointController       = "Joint Controller"
	roleDataProcessor         = "Data Processor"
	roleDataSubject           = "Data Subject"
	roleThirdPartyRecipient   = "Third Party Recipient"
	attributeSpecialCategory  = "Special Category (Sensitive) Personal Data"
	specialCategoryStroke     = "#d62728"
	transfersContainerKey     = "transfers"
	dataContainerKey          = "data"
	labelSeparator            = ", "
	defaultPartyShape         = "oval"
	attributeShape            = "document"
	transferDestinationsShape = "cloud"
)

type party struct {
	name     string
	role     string
	location string
}

// Generator renders questionnaire answers as a D2 script
type Generator struct {
	translator *i18n.Translator
}

func NewGenerator(translator *i18n.Translator) *Generator {
	return &Generator{
		translator: translator,
	}
}

func (g *Generator) Generate(answers assessment.Answers, languageCode string) string {
	var builder strings.Builder

	title := g.translator.Text(languageCode, "diagram_title")
	if systemName := answers.String("system_name"); systemName != "" {
		title += ": " + systemName
	}

	fmt.Fprintf(&builder, "# %s\n", title)
	builder.WriteString("direction: right\n")

	parties := resolveParties(answers)

	fmt.Fprintf(&builder, "\n# %s\n", g.translator.Text(languageCode, "diagram_parties"))
	for _, party := range parties {
		fmt.Fprintf(&builder, "%s: %s {shape: %s}\n", quote(party.name), quote(partyLabel(party)), shapeForRole(party.role))
	}

	if attributes := answers.List("data_attributes"); len(attributes) > 0 {
		fmt.Fprintf(&builder, "\n# %s\n", g.translator.Text(languageCode, "diagram_data"))
		fmt.Fprintf(&builder, "%s: %s {\n", dataContainerKey, quote(g.translator.Text(languageCode, "diagram_data")))

		for _, attribute := range attributes {
			attributeType := answers.String("attribute_type_" + attribute)

			label := attribute
			if attributeType != "" {
				label = fmt.Sprintf("%s\n(%s)", attribute, attributeType)
			}

			properties := "shape: " + attributeShape
			if attributeType == attributeSpecialCategory {
				properties += "; style.stroke: " + quote(specialCategoryStroke)
			}

			fmt.Fprintf(&builder, "  %s: %s {%s}\n", quote(attribute), quote(label), properties)
		}

		builder.WriteString("}\n")
	}

	flows := resolveFlows(answers, parties)
	if len(flows) > 0 {
		fmt.Fprintf(&builder, "\n# %s\n", g.translator.Text(languageCode, "diagram_flows"))
		builder.WriteString(strings.Join(flows, "\n"))
		builder.WriteString("\n")
	}

	if answers.String("data_transfers") == "Yes" {
		g.writeTransfers(&builder, answers, parties, languageCode)
	}

	return builder.String()
}

func (g *Generator) writeTransfers(builder *strings.Builder,
	answers assessment.Answers,
	parties []party,
	languageCode string) {
	heading := g.translator.Text(languageCode, "diagram_transfers")

	fmt.Fprintf(builder, "\n# %s\n", heading)
	fmt.Fprintf(builder, "%s: %s {\n", transfersContainerKey, quote(heading))

	for _, country := range answers.List("transfer_countries") {
		fmt.Fprintf(builder, "  %s: %s {shape: %s}\n", quote(country), quote(country), transferDestinationsShape)
	}

	builder.WriteString("}\n")

	safeguards := answers.List("transfer_safeguards")
	for _, controller := range filterByRole(parties, roleDataController, roleJointController) {
		if len(safeguards) > 0 {
			fmt.Fprintf(builder, "%s -> %s: %s\n",
				quote(controller.name),
				transfersContainerKey,
				quote(strings.Join(safeguards, labelSeparator)))
		} else {
			fmt.Fprintf(builder, "%s -> %s\n", quote(controller.name), transfersContainerKey)
		}
	}
}

func resolveParties(answers assessment.Answers) []party {
	return lo.Map(answers.List("data_parties"), func(name string, _ int) party {
		return party{
			name:     name,
			role:     answers.String("party_role_" + name),
			location: answers.String("party_location_" + name),
		}
	})
}

// resolveFlows derives the edges from the party roles: subjects provide data to controllers, which
// pass it on to processors and third party recipients
func resolveFlows(answers assessment.Answers, parties []party) []string {
	var flows []string

	controllers := filterByRole(parties, roleDataController, roleJointController)

	for _, subject := range filterByRole(parties, roleDataSubject) {
		for _, controller := range controllers {
			flows = append(flows, fmt.Sprintf("%s -> %s", quote(subject.name), quote(controller.name)))
		}
	}

	for _, controller := range controllers {
		for _, recipient := range filterByRole(parties, roleDataProcessor, roleThirdPartyRecipient) {
			flow := fmt.Sprintf("%s -> %s", quote(controller.name), quote(recipient.name))

			if processing := answers.String("party_process_" + recipient.name); processing != "" {
				flow += ": " + quote(processing)
			}

			flows = append(flows, flow)
		}
	}

	return flows
}

func filterByRole(parties []party, roles ...string) []party {
	return lo.Filter(parties, func(party party, _ int) bool {
		return lo.Contains(roles, party.role)
	})
}

func partyLabel(party party) string {
	details := lo.Filter([]string{party.role, party.location}, func(detail string, _ int) bool {
		return detail != ""
	})
	if len(details) == 0 {
		return party.name
	}

	return fmt.Sprintf("%s\n(%s)", party.name, strings.Join(details, labelSeparator))
}

func shapeForRole(role string) string {
	switch role {
	case roleDataController, roleJointController:
		return "rectangle"
	case roleDataProcessor:
		return "hexagon"
	case roleDataSubject:
		return "person"
	case roleThirdPartyRecipient:
		return "cloud"
	default:
		return defaultPartyShape
	}
}

// quote renders a D2 double quoted string
func quote(value string) string {
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(value) + `"`
}
