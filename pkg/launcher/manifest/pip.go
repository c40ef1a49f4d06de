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

package manifest

import (
	"bufio"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/nuclio/errors"
)

var pipNameRegex = regexp.MustCompile(`(?i)^[a-z0-9]([a-z0-9._-]*[a-z0-9])?`)
var pipNameNormalizeRegex = regexp.MustCompile(`[-_.]+`)
var pipExtraRegex = regexp.MustCompile(`(?i)^[a-z0-9]([a-z0-9._-]*[a-z0-9])?$`)
var pipVersionRegex = regexp.MustCompile(
	`(?i)^([0-9]+!)?[0-9]+(\.[0-9]+)*(\.\*)?((a|b|rc)[0-9]+)?(\.?post[0-9]+)?(\.?dev[0-9]+)?(\+[a-z0-9.]+)?$`)

// longest first so that "==" doesn't shadow "==="
var pipOperators = []string{"===", "~=", "==", "!=", "<=", ">=", "<", ">"}

// options that don't change which packages get installed
var pipAllowedOptions = map[string]bool{
	"-i":                true,
	"--index-url":       true,
	"--extra-index-url": true,
	"--trusted-host":    true,
	"--prefer-binary":   true,
}

func parsePip(reader io.Reader) (*Manifest, error) {
	parsedManifest := &Manifest{}

	logicalLines, err := readPipLogicalLines(reader)
	if err != nil {
		return nil, err
	}

	for _, logicalLine := range logicalLines {
		if strings.HasPrefix(logicalLine.text, "-") {
			indexURL, err := parsePipOption(logicalLine.number, logicalLine.text)
			if err != nil {
				return nil, err
			}

			if indexURL != "" {
				parsedManifest.IndexURLs = append(parsedManifest.IndexURLs, indexURL)
			}

			continue
		}

		requirement, err := parsePipRequirement(logicalLine.number, logicalLine.text)
		if err != nil {
			return nil, err
		}

		parsedManifest.Requirements = append(parsedManifest.Requirements, *requirement)
	}

	if err := checkPipRequirements(parsedManifest.Requirements); err != nil {
		return nil, err
	}

	return parsedManifest, nil
}

type pipLogicalLine struct {
	number int
	text   string
}

// joins continuation lines and strips comments / blanks
func readPipLogicalLines(reader io.Reader) ([]pipLogicalLine, error) {
	var logicalLines []pipLogicalLine
	var pending strings.Builder
	pendingStart := 0

	scanner := bufio.NewScanner(reader)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := stripPipComment(scanner.Text())

		if pending.Len() == 0 {
			pendingStart = lineNumber
		}

		if strings.HasSuffix(line, "\\") {
			pending.WriteString(strings.TrimSuffix(line, "\\"))
			pending.WriteString(" ")
			continue
		}

		pending.WriteString(line)

		if text := strings.TrimSpace(pending.String()); text != "" {
			logicalLines = append(logicalLines, pipLogicalLine{number: pendingStart, text: text})
		}

		pending.Reset()
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(ErrManifestMalformed, err.Error())
	}

	if pending.Len() != 0 {
		return nil, malformedf(pendingStart, "dangling line continuation")
	}

	return logicalLines, nil
}

func stripPipComment(line string) string {
	trimmedLine := strings.TrimRight(line, " \t\r")
	if strings.HasPrefix(strings.TrimSpace(trimmedLine), "#") {
		return ""
	}

	// a comment must be preceded by whitespace so that URL fragments survive
	for _, separator := range []string{" #", "\t#"} {
		if index := strings.Index(trimmedLine, separator); index != -1 {
			trimmedLine = strings.TrimRight(trimmedLine[:index], " \t")
		}
	}

	return trimmedLine
}

func parsePipOption(lineNumber int, text string) (string, error) {
	name, value := text, ""

	if index := strings.IndexAny(text, " \t="); index != -1 {
		name = text[:index]
		value = strings.TrimSpace(strings.TrimLeft(text[index:], " \t="))
	}

	if !pipAllowedOptions[name] {
		return "", malformedf(lineNumber, "unsupported option %s", name)
	}

	switch name {
	case "-i", "--index-url", "--extra-index-url":
		if value == "" {
			return "", malformedf(lineNumber, "%s requires a URL", name)
		}

		return value, nil
	}

	return "", nil
}

func parsePipRequirement(lineNumber int, text string) (*Requirement, error) {
	requirement := &Requirement{Line: lineNumber}

	// environment marker
	if index := strings.Index(text, ";"); index != -1 {
		requirement.Marker = strings.TrimSpace(text[index+1:])
		text = strings.TrimSpace(text[:index])

		if requirement.Marker == "" {
			return nil, malformedf(lineNumber, "empty environment marker")
		}
	}

	requirement.RawName = pipNameRegex.FindString(text)
	if requirement.RawName == "" {
		return nil, malformedf(lineNumber, "invalid requirement %q", text)
	}

	requirement.Name = NormalizePipName(requirement.RawName)
	rest := strings.TrimSpace(text[len(requirement.RawName):])

	// extras
	if strings.HasPrefix(rest, "[") {
		closing := strings.Index(rest, "]")
		if closing == -1 {
			return nil, malformedf(lineNumber, "unterminated extras in %q", text)
		}

		for _, extra := range strings.Split(rest[1:closing], ",") {
			extra = strings.TrimSpace(extra)
			if !pipExtraRegex.MatchString(extra) {
				return nil, malformedf(lineNumber, "invalid extra %q", extra)
			}

			requirement.Extras = append(requirement.Extras, NormalizePipName(extra))
		}

		sort.Strings(requirement.Extras)
		rest = strings.TrimSpace(rest[closing+1:])
	}

	// direct reference
	if strings.HasPrefix(rest, "@") {
		requirement.URL = strings.TrimSpace(rest[1:])
		if requirement.URL == "" || strings.ContainsAny(requirement.URL, " \t") {
			return nil, malformedf(lineNumber, "invalid URL in %q", text)
		}

		return requirement, nil
	}

	// optional parenthesis around the specifiers
	if strings.HasPrefix(rest, "(") {
		if !strings.HasSuffix(rest, ")") {
			return nil, malformedf(lineNumber, "unbalanced parenthesis in %q", text)
		}

		rest = strings.TrimSpace(rest[1 : len(rest)-1])
	}

	if rest == "" {
		return requirement, nil
	}

	for _, clause := range strings.Split(rest, ",") {
		specifier, err := parsePipSpecifier(lineNumber, strings.TrimSpace(clause))
		if err != nil {
			return nil, err
		}

		requirement.Specifiers = append(requirement.Specifiers, *specifier)
	}

	return requirement, nil
}

func parsePipSpecifier(lineNumber int, clause string) (*Specifier, error) {
	for _, operator := range pipOperators {
		if !strings.HasPrefix(clause, operator) {
			continue
		}

		version := strings.TrimSpace(clause[len(operator):])
		if version == "" {
			return nil, malformedf(lineNumber, "missing version after %s", operator)
		}

		// arbitrary equality matches the string as is
		if operator == "===" {
			if strings.ContainsAny(version, " \t") {
				return nil, malformedf(lineNumber, "invalid version %q", version)
			}

			return &Specifier{Operator: operator, Version: version}, nil
		}

		if !pipVersionRegex.MatchString(version) {
			return nil, malformedf(lineNumber, "invalid version %q", version)
		}

		isWildcard := strings.HasSuffix(version, ".*")
		if isWildcard && operator != "==" && operator != "!=" {
			return nil, malformedf(lineNumber, "wildcard version only allowed with == and !=")
		}

		if operator == "~=" && strings.Count(releaseSegment(version), ".") < 1 {
			return nil, malformedf(lineNumber, "~= requires at least two release segments, got %q", version)
		}

		return &Specifier{Operator: operator, Version: version}, nil
	}

	return nil, malformedf(lineNumber, "invalid version specifier %q", clause)
}

// NormalizePipName returns the canonical form of a package name
func NormalizePipName(name string) string {
	return strings.ToLower(pipNameNormalizeRegex.ReplaceAllString(name, "-"))
}

// a package may be listed more than once (e.g. "x>=1" and "x<2"), as long as the combined constraints
// for the same environment marker can be satisfied
func checkPipRequirements(requirements []Requirement) error {
	type requirementKey struct {
		name   string
		marker string
	}

	specifiersByKey := map[requirementKey][]Specifier{}
	urlByKey := map[requirementKey]string{}

	for _, requirement := range requirements {
		key := requirementKey{requirement.Name, requirement.Marker}

		if requirement.URL != "" {
			if existingURL, found := urlByKey[key]; found && existingURL != requirement.URL {
				return malformedf(requirement.Line,
					"conflicting direct references for %s", requirement.Name)
			}

			urlByKey[key] = requirement.URL
		}

		specifiersByKey[key] = append(specifiersByKey[key], requirement.Specifiers...)

		if err := checkSatisfiable(specifiersByKey[key]); err != nil {
			return malformedf(requirement.Line, "unsatisfiable requirement for %s: %s", requirement.Name, err.Error())
		}
	}

	return nil
}
