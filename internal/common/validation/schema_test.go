package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_ReservationPlan(t *testing.T) {
	tests := []struct {
		name     string
		document map[string]interface{}
		valid    bool
		validate func(t *testing.T, r *ValidationResult)
	}{
		{
			name: "complete plan",
			document: map[string]interface{}{
				"cuisine":    "拉麵",
				"datetime":   "2025-01-02 19:00",
				"party_size": 2,
				"location":   "台北",
				"restaurant": "",
				"notes":      "",
			},
			valid: true,
		},
		{
			name:     "empty datetime is allowed",
			document: map[string]interface{}{"datetime": "", "party_size": 4},
			valid:    true,
		},
		{
			name:     "party size as string",
			document: map[string]interface{}{"party_size": "two"},
			valid:    false,
			validate: func(t *testing.T, r *ValidationResult) {
				assert.True(t, r.HasErrors("party_size"))
			},
		},
		{
			name:     "fractional party size",
			document: map[string]interface{}{"party_size": 2.5},
			valid:    false,
			validate: func(t *testing.T, r *ValidationResult) {
				assert.Len(t, r.GetErrorsForField("party_size"), 1)
			},
		},
		{
			name:     "malformed datetime",
			document: map[string]interface{}{"datetime": "tomorrow 7pm"},
			valid:    false,
			validate: func(t *testing.T, r *ValidationResult) {
				assert.True(t, r.HasErrors("datetime"))
				assert.NotEmpty(t, r.GetErrorMessages())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Validate(ReservationPlanSchema, tt.document)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			if tt.validate != nil {
				tt.validate(t, result)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("ops@example.com"))
	assert.False(t, ValidateEmail("not-an-email"))
}

func TestValidateE164(t *testing.T) {
	assert.True(t, ValidateE164("+886212345678"))
	assert.False(t, ValidateE164("0212345678"))
	assert.False(t, ValidateE164("+"))
}
