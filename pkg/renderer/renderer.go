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

package renderer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/structs"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nuclio/errors"
	"sigs.k8s.io/yaml"
)

const (
	OutputFormatText = "text"
	OutputFormatJSON = "json"
	OutputFormatYAML = "yaml"
)

type Renderer struct {
	output io.Writer
}

func NewRenderer(output io.Writer) *Renderer {
	return &Renderer{
		output: output,
	}
}

// Render renders item in the given format. text is rendered by textRenderer
func (r *Renderer) Render(format string, item interface{}, textRenderer func() error) error {
	switch format {
	case OutputFormatText, "":
		return textRenderer()
	case OutputFormatYAML:
		return r.RenderYAML(item)
	case OutputFormatJSON:
		return r.RenderJSON(item)
	default:
		return errors.Errorf("Unsupported output format: %s", format)
	}
}

func (r *Renderer) RenderTable(header []interface{}, records [][]interface{}) {
	tw := table.NewWriter()
	tw.SetOutputMirror(r.output)
	tw.SetStyle(table.Style{
		Name: "DFA",
		Box: table.BoxStyle{
			MiddleVertical: "|",
			PaddingLeft:    " ",
			PaddingRight:   " ",
		},
		Options: table.Options{
			DoNotColorBordersAndSeparators: true,
			DrawBorder:                     false,
			SeparateColumns:                true,
		},
		Color:  table.ColorOptionsDefault,
		Format: table.FormatOptionsDefault,
		HTML:   table.DefaultHTMLOptions,
		Title:  table.TitleOptionsDefault,
	})
	tw.AppendHeader(table.Row(header), table.RowConfig{})

	for _, record := range records {
		tw.AppendRow(table.Row(record), table.RowConfig{})
	}

	tw.Render()
}

// RenderFields renders the exported top level fields of a struct as a two column table, in
// declaration order
func (r *Renderer) RenderFields(item interface{}) error {
	if !structs.IsStruct(item) {
		return errors.Errorf("Expected a struct, got %T", item)
	}

	var records [][]interface{}
	for _, field := range structs.New(item).Fields() {
		if !field.IsExported() {
			continue
		}

		records = append(records, []interface{}{field.Name(), formatValue(field.Value())})
	}

	r.RenderTable([]interface{}{"Field", "Value"}, records)

	return nil
}

func (r *Renderer) RenderYAML(items interface{}) error {
	body, err := yaml.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "Failed to render YAML")
	}

	fmt.Fprintln(r.output, string(body)) // nolint: errcheck

	return nil
}

func (r *Renderer) RenderJSON(items interface{}) error {
	body, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "Failed to render JSON")
	}

	var pbody bytes.Buffer
	if err := json.Indent(&pbody, body, "", "\t"); err != nil {
		return errors.Wrap(err, "Failed to indent JSON")
	}

	fmt.Fprintln(r.output, pbody.String()) // nolint: errcheck

	return nil
}

func formatValue(value interface{}) interface{} {
	switch typedValue := value.(type) {
	case time.Duration:
		return typedValue.Round(time.Millisecond).String()
	case []string:
		return fmt.Sprintf("%v", typedValue)
	default:
		return value
	}
}
