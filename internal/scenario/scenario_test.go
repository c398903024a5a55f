package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("get")
	require.NoError(t, err)
	assert.Equal(t, MethodGET, m)

	m, err = ParseMethod("PoSt")
	require.NoError(t, err)
	assert.Equal(t, MethodPOST, m)

	_, err = ParseMethod("TRACE")
	assert.Error(t, err)
}

func TestRequestTemplateRendering(t *testing.T) {
	st := Step{
		Name: "get-user",
		Request: RequestTemplate{
			Method:  MethodGET,
			Path:    "/users/${user_id}",
			Body:    `{"id":"${user_id}"}`,
			Headers: map[string]string{"X-Trace": "${trace_id}"},
		},
	}
	st.Compile()

	ctx := NewContext(nil)
	ctx.Set("user_id", "7")
	ctx.Set("trace_id", "t-1")

	assert.Equal(t, "/users/7", st.Request.RenderPath(ctx))
	assert.Equal(t, `{"id":"7"}`, st.Request.RenderBody(ctx))
	assert.Equal(t, "t-1", st.Request.RenderHeaders(ctx)["X-Trace"])
}

func TestScenarioValidateRejectsNonPositiveWeight(t *testing.T) {
	s := Scenario{Name: "s1", Weight: 0, Steps: []Step{{Name: "step1"}}}
	err := s.Validate()
	assert.Error(t, err)
}

func TestScenarioValidateRejectsNonFiniteWeight(t *testing.T) {
	s := Scenario{Name: "s1", Weight: maxFloat * 10, Steps: []Step{{Name: "step1"}}}
	err := s.Validate()
	assert.Error(t, err)
}

func TestScenarioValidateRejectsDuplicateStepNames(t *testing.T) {
	s := Scenario{Name: "s1", Weight: 1, Steps: []Step{{Name: "dup"}, {Name: "dup"}}}
	err := s.Validate()
	assert.Error(t, err)
}

func TestScenarioValidateCompilesSteps(t *testing.T) {
	s := Scenario{Name: "s1", Weight: 1, Steps: []Step{{Name: "step1", Request: RequestTemplate{Path: "/ping"}}}}
	require.NoError(t, s.Validate())

	ctx := NewContext(nil)
	assert.Equal(t, "/ping", s.Steps[0].Request.RenderPath(ctx))
}

func TestValidateAllRejectsDuplicateScenarioNames(t *testing.T) {
	scenarios := []Scenario{
		{Name: "checkout", Weight: 1, Steps: []Step{{Name: "s1"}}},
		{Name: "checkout", Weight: 1, Steps: []Step{{Name: "s1"}}},
	}
	err := ValidateAll(scenarios)
	assert.Error(t, err)
}

func TestValidateAllAcceptsDistinctScenarios(t *testing.T) {
	scenarios := []Scenario{
		{Name: "checkout", Weight: 1, Steps: []Step{{Name: "s1"}}},
		{Name: "browse", Weight: 2, Steps: []Step{{Name: "s1"}}},
	}
	assert.NoError(t, ValidateAll(scenarios))
}
