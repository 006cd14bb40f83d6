package utils

import (
	"testing"

	"ingest-svc/app/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct_Valid(t *testing.T) {
	req := dto.SubmitResultRequest{
		AgentID: "a1",
		Module:  "port-scan",
		Data:    map[string]interface{}{"ports": []int{80, 443}},
	}
	assert.Nil(t, ValidateStruct(&req))
}

func TestValidateStruct_ReportsFirstOffendingField(t *testing.T) {
	req := dto.SubmitResultRequest{
		AgentID: "a1",
		Module:  "port-scan",
	}
	errs := ValidateStruct(&req)
	require.NotNil(t, errs)
	assert.Equal(t, "data", errs[0].Field)
	assert.Equal(t, "validation failed: field 'data' is required", errs.Error())
}

func TestValidateStruct_UsesJSONFieldNames(t *testing.T) {
	req := dto.BeaconRequest{}
	errs := ValidateStruct(&req)
	require.NotNil(t, errs)
	assert.Equal(t, "agent_id", errs[0].Field)
}

func TestValidateStruct_SeverityEnum(t *testing.T) {
	for _, severity := range []string{"low", "medium", "high", "critical"} {
		req := dto.SubmitResultRequest{
			AgentID:  "a1",
			Module:   "port-scan",
			Data:     map[string]interface{}{"ok": true},
			Severity: severity,
		}
		assert.Nil(t, ValidateStruct(&req), severity)
	}

	req := dto.SubmitResultRequest{
		AgentID:  "a1",
		Module:   "port-scan",
		Data:     map[string]interface{}{"ok": true},
		Severity: "urgent",
	}
	errs := ValidateStruct(&req)
	require.NotNil(t, errs)
	assert.Equal(t, "severity", errs[0].Field)
	assert.Contains(t, errs[0].Message, "must be one of")
}

func TestValidateStruct_NegativePagination(t *testing.T) {
	req := dto.QueryResultsRequest{Limit: -5}
	errs := ValidateStruct(&req)
	require.NotNil(t, errs)
	assert.Equal(t, "limit", errs[0].Field)
}
