package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/cryptobot/internal/model"
)

const (
	textWelcome = "🎉 Welcome to the Crypto Prediction Bot! 🎉\n" +
		"Stay updated with daily crypto news, set price alerts, and get AI predictions. Choose an option below:"
	textTryAgain        = "Something went wrong. Please try again in a moment."
	textPleaseWait      = "Please wait a moment before making another request."
	textAdminOnly       = "This action is available to the administrator only."
	textAlreadyChecked  = "Sorry, you have already checked in today. Please come back tomorrow."
	textCheckedIn       = "✅ You've checked in today! You earned 1 extra daily prediction."
	textAlertMenu       = "Manage your price alerts:"
	textNoAlerts        = "You have no active price alerts."
	textPortfolioEmpty  = "Your portfolio is empty. Add some tokens to track."
	textAdminPanel      = "🔧 Admin Panel 🔧"
	textResetDone       = "Daily predictions have been reset."
	textNewsUnavailable = "Error fetching news."
	textNewsSummaryFail = "Error summarizing news."
	textCoinNotFound    = "Coin not found. Please check the contract address and try again."
	textMarketError     = "Error fetching market data. Please try again later."

	textPromptAlertAdd = "Enter the contract address and the price you want to set an alert for, separated by a space " +
		"(e.g., '0x514910771af9ca656af840dff83e8264ecf986ca 500'):"
	textPromptAlertRemove     = "Enter the alert ID you want to remove:"
	textPromptPortfolioAdd    = "Enter the contract address to add to your portfolio:"
	textPromptPortfolioRemove = "Enter the contract address to remove from your portfolio:"

	textInvalidAlert = "Invalid input. Please enter the contract address and a positive price separated by a space " +
		"(e.g., '0x514910771af9ca656af840dff83e8264ecf986ca 500')."
	textInvalidAlertID = "Invalid input. Please enter a valid alert ID."
	textEmptyRef       = "Please enter a contract address."

	textTips = "Here are some crypto tips:\n" +
		"1. Do your research.\n" +
		"2. Diversify your portfolio.\n" +
		"3. Use a secure wallet.\n" +
		"4. Stay updated with news."

	textDisclaimer = "This prediction is generated by AI and is not financial advice. " +
		"Please do your own research before making any investment decisions."

	textSuggestUsage  = "Send your idea as /suggest <text>."
	textSuggestThanks = "Thanks! Your suggestion has been recorded."
)

var homeRow = []Button{{Label: "🏠 Return to Home", Action: ActionHome}}

func reply(text string, rows ...[]Button) OutboundMessage {
	return OutboundMessage{Text: text, Buttons: rows}
}

func withHome(text string) OutboundMessage {
	return reply(text, homeRow)
}

func mainMenu(admin bool) [][]Button {
	rows := [][]Button{
		{{Label: "✨ Daily Check-in ✨", Action: ActionDailyCheckin}},
		{{Label: "📰 Daily Crypto News 📰", Action: ActionDailyNews}},
		{{Label: "📈 Price Alert 📉", Action: ActionPriceAlert}},
		{{Label: "💡 Crypto Tips 💡", Action: ActionCryptoTips}},
		{{Label: "🔮 AI Prediction 🔮", Action: ActionPrediction}},
		{{Label: "💼 My Portfolio 💼", Action: ActionPortfolio}},
	}
	if admin {
		rows = append(rows, []Button{{Label: "🔧 Admin Panel 🔧", Action: ActionAdminPanel}})
	}
	return rows
}

func alertMenu() [][]Button {
	return [][]Button{
		{{Label: "Add Price Alert", Action: ActionAddAlert}},
		{{Label: "Remove Price Alert", Action: ActionRemoveAlert}},
		homeRow,
	}
}

func portfolioMenu() [][]Button {
	return [][]Button{
		{{Label: "Add to Portfolio", Action: ActionAddPortfolio}},
		{{Label: "Remove from Portfolio", Action: ActionRemovePortfolio}},
		homeRow,
	}
}

func adminMenu(raise int) [][]Button {
	return [][]Button{
		{{Label: "Reset Daily Predictions", Action: ActionResetPredictions}},
		{{Label: fmt.Sprintf("Set Admin Predictions to %d", raise), Action: ActionSetAdminPredictions}},
		homeRow,
	}
}

func limitReached(limit int) string {
	return fmt.Sprintf("You've reached your daily limit of %d AI predictions. "+
		"Please check in tomorrow for more predictions.", limit)
}

func predictionPrompt(left int) string {
	return "🔮 AI Prediction\n\n" +
		"Provide a contract address of a cryptocurrency to get an AI-based prediction of its future performance.\n" +
		"Example: 0x514910771af9ca656af840dff83e8264ecf986ca\n" +
		"Note: This prediction is not financial advice. Please do your own research before making any investment decisions.\n\n" +
		fmt.Sprintf("Remaining predictions for today: %d", left)
}

func predictionResult(body string, left int) string {
	return fmt.Sprintf("🔮 AI Prediction:\n%s\n\n%s\n\nRemaining predictions for today: %d", body, textDisclaimer, left)
}

func alertList(alerts []model.PriceAlert) string {
	if len(alerts) == 0 {
		return textAlertMenu + "\n\n" + textNoAlerts
	}
	var b strings.Builder
	b.WriteString(textAlertMenu)
	b.WriteString("\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "\n#%d %s at $%s", a.ID, a.Ref, a.Price.String())
	}
	return b.String()
}

func usd(d decimal.Decimal) string {
	return "$" + d.String()
}
