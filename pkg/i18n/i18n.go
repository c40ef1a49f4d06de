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

package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/gobuffalo/flect"
	"github.com/nuclio/errors"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	LanguageGerman  = "de"
	LanguageEnglish = "en"

	DefaultLanguage = LanguageGerman
)

//go:embed translations/*.yaml
var catalogFiles embed.FS

// Translator resolves UI strings by language. A key missing from the requested language falls back
// to the default language, and then to the humanized key
type Translator struct {
	catalogs map[string]map[string]string
	matcher  language.Matcher
}

func NewTranslator() (*Translator, error) {
	translator := &Translator{
		catalogs: map[string]map[string]string{},
	}

	// default language first, the matcher falls back to the first tag
	var tags []language.Tag
	for _, languageCode := range []string{DefaultLanguage, LanguageEnglish} {
		contents, err := catalogFiles.ReadFile(path.Join("translations", languageCode+".yaml"))
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to read %s translations", languageCode)
		}

		catalog := map[string]string{}
		if err := yaml.Unmarshal(contents, &catalog); err != nil {
			return nil, errors.Wrapf(err, "Failed to parse %s translations", languageCode)
		}

		translator.catalogs[languageCode] = catalog
		tags = append(tags, language.Make(languageCode))
	}

	translator.matcher = language.NewMatcher(tags)

	return translator, nil
}

// Languages returns the supported language codes, default first
func (t *Translator) Languages() []string {
	languages := make([]string, 0, len(t.catalogs))
	for languageCode := range t.catalogs {
		if languageCode != DefaultLanguage {
			languages = append(languages, languageCode)
		}
	}

	sort.Strings(languages)

	return append([]string{DefaultLanguage}, languages...)
}

func (t *Translator) Supports(languageCode string) bool {
	_, found := t.catalogs[languageCode]
	return found
}

func (t *Translator) Text(languageCode string, key string) string {
	if catalog, found := t.catalogs[languageCode]; found {
		if text, found := catalog[key]; found {
			return text
		}
	}

	if text, found := t.catalogs[DefaultLanguage][key]; found {
		return text
	}

	return flect.Humanize(key)
}

// Format fills {name} placeholders of the translated text. Placeholders with no argument are left as is
func (t *Translator) Format(languageCode string, key string, args map[string]interface{}) string {
	text := t.Text(languageCode, key)
	if len(args) == 0 {
		return text
	}

	replacements := make([]string, 0, 2*len(args))
	for name, value := range args {
		replacements = append(replacements, "{"+name+"}", fmt.Sprint(value))
	}

	return strings.NewReplacer(replacements...).Replace(text)
}

// Catalog returns every key of the given language, with missing keys filled from the default language
func (t *Translator) Catalog(languageCode string) (map[string]string, error) {
	catalog, found := t.catalogs[languageCode]
	if !found {
		return nil, errors.Errorf("Unsupported language %q", languageCode)
	}

	merged := map[string]string{}
	for key, text := range t.catalogs[DefaultLanguage] {
		merged[key] = text
	}

	for key, text := range catalog {
		merged[key] = text
	}

	return merged, nil
}

// Negotiate picks the language from an explicit choice (e.g. a ?lang= query) or an Accept-Language
// header, in that order
func (t *Translator) Negotiate(explicit string, acceptLanguage string) string {
	if explicit = strings.ToLower(strings.TrimSpace(explicit)); t.Supports(explicit) {
		return explicit
	}

	if acceptLanguage == "" {
		return DefaultLanguage
	}

	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}

	tag, _, confidence := t.matcher.Match(tags...)
	if confidence == language.No {
		return DefaultLanguage
	}

	base, _ := tag.Base()

	if languageCode := base.String(); t.Supports(languageCode) {
		return languageCode
	}

	return DefaultLanguage
}
