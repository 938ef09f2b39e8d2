// Package views builds the presentation payloads sent to citizens.
//
// Every function is pure: it turns domain data into a models.View and leaves
// delivery and formatting of actions to the transport.
package views

import (
	"fmt"
	"math"
	"strings"

	"github.com/smartgov/exgratia/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Helpline is the national disaster helpline shown on the help view.
const Helpline = "1077"

// Action labels shared by several views.
var (
	actionNorms        = models.Action{ID: models.ActionNorms, Label: "1️⃣ Ex-Gratia Norms"}
	actionApply        = models.Action{ID: models.ActionApply, Label: "2️⃣ Apply for Ex-Gratia"}
	actionHowToApply   = models.Action{ID: models.ActionApply, Label: "2️⃣ How to Apply"}
	actionViewNorms    = models.Action{ID: models.ActionNorms, Label: "1️⃣ View Norms"}
	actionStatus       = models.Action{ID: models.ActionStatus, Label: "3️⃣ Check Status"}
	actionCheckAnother = models.Action{ID: models.ActionStatus, Label: "🔍 Check Another"}
	actionHelp         = models.Action{ID: models.ActionHelp, Label: "ℹ️ Help & Support"}
	actionBack         = models.Action{ID: models.ActionBack, Label: "🔙 Back to Menu"}
)

const welcomeText = `🙏 Welcome to SmartGov Ex-Gratia Assistance!

I'm here to help you with disaster relief services. You can:

1️⃣ Ex-Gratia Norms - Learn about assistance amounts & eligibility
2️⃣ Apply for Ex-Gratia - Get help with application process
3️⃣ Check Status - Track your application status

💬 You can also just tell me what you need in your own words!

How can I assist you today?`

// Welcome is the main menu.
func Welcome() models.View {
	return models.View{
		Kind:    models.ViewWelcome,
		Text:    welcomeText,
		Actions: []models.Action{actionNorms, actionApply, actionStatus, actionHelp},
	}
}

// Norms shows the ex-gratia norms text.
func Norms(normsText, phone string) models.View {
	text := fmt.Sprintf("🏛️ Government of Sikkim\n%s\n\n📞 For more information: %s", normsText, phone)
	return models.View{
		Kind:    models.ViewNorms,
		Text:    text,
		Actions: []models.Action{actionHowToApply, actionStatus, actionBack},
	}
}

// Procedure shows the application procedure text.
func Procedure(procedureText, phone string) models.View {
	text := fmt.Sprintf("%s\n\n💡 Need more help? Visit your local Gram Panchayat or call %s", procedureText, phone)
	return models.View{
		Kind:    models.ViewProcedure,
		Text:    text,
		Actions: []models.Action{actionViewNorms, actionStatus, actionBack},
	}
}

const statusPromptText = `🔍 Application Status Check

Please share your Application ID to check the status.

Format: Usually 8-10 characters (e.g., 23LDM786)

You can find your Application ID in:
📄 Application receipt
📱 SMS confirmation
📧 Email confirmation

Type your Application ID:`

// StatusPrompt asks for an application ID.
func StatusPrompt() models.View {
	return models.View{
		Kind:    models.ViewStatusPrompt,
		Text:    statusPromptText,
		Actions: []models.Action{actionBack},
	}
}

// StatusIndicator maps an application status to its emoji.
func StatusIndicator(s models.ApplicationStatus) string {
	switch s {
	case models.ApplicationApproved:
		return "✅"
	case models.ApplicationUnderReview:
		return "🔄"
	case models.ApplicationPending:
		return "⏳"
	case models.ApplicationRejected:
		return "❌"
	default:
		return "📋"
	}
}

var printer = message.NewPrinter(language.English)

// FormatAmount renders an amount in rupees with thousands grouping.
// Whole amounts have no decimals.
func FormatAmount(amount float64) string {
	if amount == math.Trunc(amount) && math.Abs(amount) < 1e15 {
		return printer.Sprintf("₹%d", int64(amount))
	}
	return printer.Sprintf("₹%.2f", amount)
}

// StatusFound shows a found application record.
func StatusFound(rec models.ApplicationRecord, phone string) models.View {
	var b strings.Builder
	fmt.Fprintf(&b, "%s Application Found!\n\n", StatusIndicator(rec.Status))
	fmt.Fprintf(&b, "🆔 Application ID: %s\n", rec.ApplicationID)
	fmt.Fprintf(&b, "👤 Applicant: %s\n", rec.ApplicantName)
	fmt.Fprintf(&b, "📱 Phone: %s\n", rec.Phone)
	fmt.Fprintf(&b, "📋 Type: %s\n", rec.Type)
	fmt.Fprintf(&b, "📊 Status: %s\n", rec.Status)
	fmt.Fprintf(&b, "💰 Amount: %s\n", FormatAmount(rec.Amount))
	fmt.Fprintf(&b, "📅 Applied: %s\n", rec.DateApplied)
	fmt.Fprintf(&b, "📝 Remarks: %s\n\n", rec.Remarks)
	fmt.Fprintf(&b, "📞 For queries: %s", phone)
	return models.View{
		Kind:    models.ViewStatusFound,
		Text:    b.String(),
		Actions: []models.Action{actionCheckAnother, actionBack},
	}
}

// StatusNotFound echoes the queried ID with guidance.
func StatusNotFound(applicationID, phone string) models.View {
	text := fmt.Sprintf(`❌ Application Not Found

🔍 Application ID: %s

Possible reasons:
• Application ID might be incorrect
• Application not yet in system
• Typing error in Application ID

What to do:
1. Double-check your Application ID
2. Contact your Gram Panchayat/Ward Office
3. Call helpline: %s`, applicationID, phone)
	return models.View{
		Kind:    models.ViewStatusNotFound,
		Text:    text,
		Actions: []models.Action{actionCheckAnother, actionBack},
	}
}

// Status renders a lookup result as the found or not-found view.
func Status(applicationID string, res models.LookupResult, phone string) models.View {
	if res.Found {
		return StatusFound(res.Record, phone)
	}
	return StatusNotFound(applicationID, phone)
}

// Help lists commands, examples and support contacts.
func Help(phone string) models.View {
	text := fmt.Sprintf(`🆘 SmartGov Ex-Gratia Assistance Help

Available Commands:
• /start - Start the bot and see main menu
• /help - Show this help message

How to Use:
1️⃣ Natural Language: Just type what you need
2️⃣ Menu Options: Use the numbered buttons

Examples:
• "How much money can I get for house damage?"
• "What documents do I need to apply?"
• "Check status of application 23LDM786"

Support Contact:
📞 Helpline: %s
📞 Phone: %s`, Helpline, phone)
	return models.View{Kind: models.ViewHelp, Text: text}
}

const fallbackText = `🤔 I'm not sure exactly what you need, but I'm here to help!

Here's what I can assist you with:
1️⃣ Ex-Gratia Norms - Information about assistance amounts
2️⃣ Application Process - How to apply for ex-gratia
3️⃣ Status Check - Track your application

💬 Try asking questions like:
• "How much can I get for house damage?"
• "What documents do I need?"
• "Check my application status"`

// Fallback is shown when the message could not be understood.
func Fallback() models.View {
	return models.View{
		Kind:    models.ViewFallback,
		Text:    fallbackText,
		Actions: []models.Action{actionNorms, actionApply, actionStatus},
	}
}

// LookupError is shown when the status store could not be read.
func LookupError(phone string) models.View {
	return models.View{
		Kind: models.ViewLookupError,
		Text: "❌ Sorry, there was an error checking the application status. " +
			"Please try again later or contact support: " + phone,
	}
}
