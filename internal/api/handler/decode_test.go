package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/placefinder/placefinder/internal/api/models"
)

func TestDecodeJSON(t *testing.T) {
	val := NewValidator()

	tests := []struct {
		name       string
		body       string
		ok         bool
		wantDetail string
		wantField  string
	}{
		{"valid", `{"query":"coffee"}`, true, "", ""},
		{"empty body", ``, false, "request body is required", ""},
		{"malformed", `{"query":`, false, "invalid JSON body", ""},
		{"unknown field", `{"query":"coffee","limit":3}`, false, "invalid JSON body", ""},
		{"missing query", `{}`, false, "request validation failed", "query"},
		{"blank query", `{"query":"   "}`, false, "request validation failed", "query"},
		{"too long", `{"query":"` + strings.Repeat("a", 257) + `"}`, false, "request validation failed", "query"},
		{"too large", `{"query":"` + strings.Repeat("a", maxBodyBytes) + `"}`, false, "request body too large", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/sessions/abc/search", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst models.SearchRequest
			ok := decodeJSON(rec, req, val, &dst)

			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, "coffee", dst.Query)
				return
			}
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantDetail)
			if tt.wantField != "" {
				assert.Contains(t, rec.Body.String(), `"field":"`+tt.wantField+`"`)
			}
		})
	}
}

func TestValidator_SelectionRequest(t *testing.T) {
	val := NewValidator()

	assert.NoError(t, val.Struct(models.SelectionRequest{CandidateID: "osm-n-42"}))
	assert.Error(t, val.Struct(models.SelectionRequest{}))
	assert.Error(t, val.Struct(models.SelectionRequest{CandidateID: strings.Repeat("x", 129)}))
}

func TestRegisterRules(t *testing.T) {
	tests := []struct {
		name    string
		rules   map[string]validator.Func
		wantErr string
	}{
		{"custom rules", rules, ""},
		{"empty tag", map[string]validator.Func{"": rules["notblank"]}, `register validation ""`},
		{"nil rule", map[string]validator.Func{"nothing": nil}, `register validation "nothing"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := registerRules(validator.New(), tt.rules)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewValidator_RegistersRules(t *testing.T) {
	var val *Validator
	assert.NotPanics(t, func() { val = NewValidator() })

	type note struct {
		Text string `json:"text" validate:"notblank"`
	}
	assert.NoError(t, val.Struct(note{Text: "hi"}))
	assert.Error(t, val.Struct(note{Text: " \t"}))
}
