package telegram

import (
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/civiq-care/backend/internal/survey"
)

const welcomeText = "Hello!\n\n" +
	"This is the CIVIQ questionnaire for assessing quality of life in patients with chronic venous insufficiency.\n\n" +
	"The questionnaire has 20 questions. Each is answered on a scale from 1 to 5.\n\n" +
	"/survey — start the questionnaire\n" +
	"/results — view your results\n" +
	"/reset — discard your answers and start over\n" +
	"/cancel — abandon the questionnaire in progress"

const introText = "Many people complain of leg problems. We would like to know how often " +
	"they bother you and how strongly they affect your daily life.\n\n" +
	"For each question choose the most fitting of the five options:\n" +
	"1 — the symptom does not apply to you\n" +
	"2, 3, 4 or 5 — you experience the symptom to the indicated degree\n\n"

// questionText renders one item, with the introduction prepended for the
// first question.
func questionText(q survey.Question) string {
	var b strings.Builder
	if q.Ordinal == 1 {
		b.WriteString(introText)
	}
	fmt.Fprintf(&b, "Question %d of %d:\n\n%s", q.Ordinal, q.Total, q.Text)
	return b.String()
}

// answerKeyboard builds one row of answer buttons for the question.
func answerKeyboard(q survey.Question) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(q.Options))
	for _, v := range q.Options {
		label := fmt.Sprintf("%d", v)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, answerCallbackData(q.Ordinal, v)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(row...))
}

// summaryText renders the completion summary.
func summaryText(d survey.CompletionSummary) string {
	text := fmt.Sprintf(
		"Thank you! You have completed the questionnaire.\n\n"+
			"Your results:\nTotal score: %d of %d\nPercentage: %.1f%%\n\n"+
			"Use /results for a detailed breakdown.",
		d.Score.TotalScore, d.Score.MaxScore, d.Score.Percentage,
	)
	if d.PersistWarning {
		text += "\n\nNote: saving your results is delayed; they will be stored shortly."
	}
	return text
}

// resultsText renders the per-question breakdown of a completed survey.
func resultsText(d survey.Results, questionFor func(int) string) string {
	var b strings.Builder
	b.WriteString("Your CIVIQ questionnaire results:\n\n")
	fmt.Fprintf(&b, "Total score: %d of %d\n", d.Score.TotalScore, d.Score.MaxScore)
	fmt.Fprintf(&b, "Percentage: %.1f%%\n\n", d.Score.Percentage)
	b.WriteString("Answers by question:\n\n")

	ordinals := make([]int, 0, len(d.Answers))
	for q := range d.Answers {
		ordinals = append(ordinals, q)
	}
	sort.Ints(ordinals)
	for _, q := range ordinals {
		fmt.Fprintf(&b, "Question %d: %d/5\n  %s\n\n", q, d.Answers[q], truncate(questionFor(q), 50))
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
