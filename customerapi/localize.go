package customerapi

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

// operationHeader matches a leading named query or mutation, with optional
// variable definitions, up to its selection set brace.
var operationHeader = regexp.MustCompile(`^(\s*(?:query|mutation)\s+[_A-Za-z][_0-9A-Za-z]*\s*(?:\([^)]*\))?)\s*\{`)

// InjectInContext places @inContext(language: CODE) after the operation
// header. This is a textual rewrite: it only applies to a document whose
// first definition is a single named query or mutation, and returns anything
// else unchanged.
func InjectInContext(query, languageCode string) string {
	if languageCode == "" || strings.Contains(query, "@inContext") {
		return query
	}
	loc := operationHeader.FindStringSubmatchIndex(query)
	if loc == nil {
		return query
	}
	header := query[loc[2]:loc[3]]
	return header + " @inContext(language: " + languageCode + ") {" + query[loc[1]:]
}

// LanguageCode converts a BCP 47 tag into the Storefront LanguageCode enum:
// "en" -> "EN", "pt-BR" -> "PT_BR", "zh-Hant-TW" -> "ZH_TW".
func LanguageCode(tag string) (string, error) {
	t, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", tag, err)
	}
	base, _ := t.Base()
	code := strings.ToUpper(base.String())
	if region, conf := t.Region(); conf == language.Exact {
		code += "_" + region.String()
	}
	return code, nil
}
