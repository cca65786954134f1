package customerapi_test

import (
	"testing"

	"github.com/jrsteele09/go-customer-auth/customerapi"
	"github.com/stretchr/testify/require"
)

func TestInjectInContext(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name:  "named query",
			query: "query Orders { customer { orders(first: 5) { nodes { id } } } }",
			want:  "query Orders @inContext(language: PT_BR) { customer { orders(first: 5) { nodes { id } } } }",
		},
		{
			name:  "variables and leading whitespace",
			query: "\n  query Order($id: ID!) {\n    order(id: $id) { id }\n  }",
			want:  "\n  query Order($id: ID!) @inContext(language: PT_BR) {\n    order(id: $id) { id }\n  }",
		},
		{
			name:  "mutation",
			query: "mutation Update($input: CustomerUpdateInput!) { customerUpdate(input: $input) { userErrors { message } } }",
			want:  "mutation Update($input: CustomerUpdateInput!) @inContext(language: PT_BR) { customerUpdate(input: $input) { userErrors { message } } }",
		},
		{
			name:  "anonymous query is left alone",
			query: "{ customer { id } }",
			want:  "{ customer { id } }",
		},
		{
			name:  "already localized",
			query: "query A @inContext(language: EN) { customer { id } }",
			want:  "query A @inContext(language: EN) { customer { id } }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, customerapi.InjectInContext(tt.query, "PT_BR"))
		})
	}
}

func TestLanguageCode(t *testing.T) {
	for in, want := range map[string]string{
		"en":    "EN",
		"fr":    "FR",
		"pt-BR": "PT_BR",
		"pt_br": "PT_BR",
		"zh-TW": "ZH_TW",
	} {
		got, err := customerapi.LanguageCode(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := customerapi.LanguageCode("not a tag")
	require.Error(t, err)
}
