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

package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dataflowassess/dfa/pkg/assessment"
	"github.com/dataflowassess/dfa/pkg/common"

	"github.com/nuclio/errors"
)

const exportTimestampLayout = "20060102_150405"

// Document is the portable form of a session, as downloaded and uploaded by users
type Document struct {
	Answers              map[string]interface{} `json:"answers"`
	CurrentQuestionIndex int                    `json:"current_question_index"`
	Completed            bool                   `json:"completed"`
	Language             string                 `json:"language,omitempty"`
	Timestamp            string                 `json:"timestamp,omitempty"`
}

// Export renders the session as an indented JSON document along with its download name
func Export(session *Session, now time.Time) (string, []byte, error) {
	answers := session.State.Answers
	if answers == nil {
		answers = assessment.Answers{}
	}

	document := Document{
		Answers:              answers,
		CurrentQuestionIndex: session.State.CurrentQuestionIndex,
		Completed:            session.State.Completed,
		Language:             session.Language,
		Timestamp:            now.Format(time.RFC3339),
	}

	contents, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return "", nil, errors.Wrap(err, "Failed to encode session")
	}

	return ExportFileName(answers, now), contents, nil
}

// ExportFileName is <system name>_<timestamp>.json, or session_<timestamp>.json while the system is unnamed
func ExportFileName(answers assessment.Answers, now time.Time) string {
	timestamp := now.Format(exportTimestampLayout)

	if systemName := answers.String("system_name"); strings.TrimSpace(systemName) != "" {
		return fmt.Sprintf("%s_%s.json", common.SafeFileName(systemName), timestamp)
	}

	return fmt.Sprintf("session_%s.json", timestamp)
}

// Import parses an exported document. Missing fields take their zero values
func Import(contents []byte) (*Document, assessment.Answers, error) {
	if !utf8.Valid(contents) {
		return nil, nil, errors.Wrap(ErrInvalidSession, "Session file is not valid UTF-8")
	}

	decoder := json.NewDecoder(bytes.NewReader(contents))
	decoder.UseNumber()

	document := &Document{}
	if err := decoder.Decode(document); err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidSession, "Failed to decode session file: %s", err.Error())
	}

	answers, err := assessment.NormalizeAnswers(document.Answers)
	if err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidSession, "Failed to decode answers: %s", err.Error())
	}

	return document, answers, nil
}
