package views

import (
	"testing"

	"github.com/smartgov/exgratia/internal/models"
	"github.com/stretchr/testify/assert"
)

const phone = "+91-1234567890"

func actionIDs(v models.View) []models.ActionID {
	ids := make([]models.ActionID, len(v.Actions))
	for i, a := range v.Actions {
		ids[i] = a.ID
	}
	return ids
}

func TestViewActions(t *testing.T) {
	rec := models.ApplicationRecord{ApplicationID: "23LDM786", Status: models.ApplicationApproved, Amount: 50000}

	tests := []struct {
		name string
		view models.View
		kind models.ViewKind
		want []models.ActionID
	}{
		{"welcome", Welcome(), models.ViewWelcome,
			[]models.ActionID{models.ActionNorms, models.ActionApply, models.ActionStatus, models.ActionHelp}},
		{"norms", Norms("n", phone), models.ViewNorms,
			[]models.ActionID{models.ActionApply, models.ActionStatus, models.ActionBack}},
		{"procedure", Procedure("p", phone), models.ViewProcedure,
			[]models.ActionID{models.ActionNorms, models.ActionStatus, models.ActionBack}},
		{"prompt", StatusPrompt(), models.ViewStatusPrompt,
			[]models.ActionID{models.ActionBack}},
		{"found", StatusFound(rec, phone), models.ViewStatusFound,
			[]models.ActionID{models.ActionStatus, models.ActionBack}},
		{"not found", StatusNotFound("NOPE123", phone), models.ViewStatusNotFound,
			[]models.ActionID{models.ActionStatus, models.ActionBack}},
		{"help", Help(phone), models.ViewHelp, []models.ActionID{}},
		{"fallback", Fallback(), models.ViewFallback,
			[]models.ActionID{models.ActionNorms, models.ActionApply, models.ActionStatus}},
		{"lookup error", LookupError(phone), models.ViewLookupError, []models.ActionID{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.view.Kind)
			assert.Equal(t, tt.want, actionIDs(tt.view))
			assert.NotEmpty(t, tt.view.Text)
		})
	}
}

func TestStatusIndicator(t *testing.T) {
	assert.Equal(t, "✅", StatusIndicator(models.ApplicationApproved))
	assert.Equal(t, "🔄", StatusIndicator(models.ApplicationUnderReview))
	assert.Equal(t, "⏳", StatusIndicator(models.ApplicationPending))
	assert.Equal(t, "❌", StatusIndicator(models.ApplicationRejected))
	assert.Equal(t, "📋", StatusIndicator("On Hold"))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "₹50,000", FormatAmount(50000))
	assert.Equal(t, "₹0", FormatAmount(0))
	assert.Equal(t, "₹1,250,000", FormatAmount(1250000))
	assert.Equal(t, "₹12,500.50", FormatAmount(12500.5))
}

func TestStatusFoundText(t *testing.T) {
	rec := models.ApplicationRecord{
		ApplicationID: "23LDM786",
		ApplicantName: "Pema Lhamu",
		Phone:         "+919800000001",
		Type:          "House Damage",
		Status:        models.ApplicationApproved,
		Amount:        50000,
		DateApplied:   "2024-06-12",
		Remarks:       "Amount disbursed",
	}
	v := StatusFound(rec, phone)
	assert.Contains(t, v.Text, "✅ Application Found!")
	assert.Contains(t, v.Text, "Application ID: 23LDM786")
	assert.Contains(t, v.Text, "Applicant: Pema Lhamu")
	assert.Contains(t, v.Text, "Amount: ₹50,000")
	assert.Contains(t, v.Text, "Remarks: Amount disbursed")
	assert.Contains(t, v.Text, phone)
}

func TestStatusDispatch(t *testing.T) {
	rec := models.ApplicationRecord{ApplicationID: "23LDM786", Status: models.ApplicationPending}
	assert.Equal(t, models.ViewStatusFound, Status("23LDM786", models.Found(rec), phone).Kind)

	v := Status("NOPE123", models.NotFound(), phone)
	assert.Equal(t, models.ViewStatusNotFound, v.Kind)
	assert.Contains(t, v.Text, "NOPE123")
}

func TestContentViewsIncludePhone(t *testing.T) {
	assert.Contains(t, Norms("Norms body", phone).Text, "Norms body")
	assert.Contains(t, Norms("Norms body", phone).Text, phone)
	assert.Contains(t, Procedure("Procedure body", phone).Text, phone)
	assert.Contains(t, Help(phone).Text, "Helpline: 1077")
	assert.Contains(t, LookupError(phone).Text, "try again later")
	assert.Contains(t, StatusNotFound("X1Y2Z3", phone).Text, phone)
}
