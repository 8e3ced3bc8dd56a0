package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/example/vocastar/internal/admin"
	"github.com/example/vocastar/internal/progress"
	"github.com/example/vocastar/pkg/models"
)

// maxLevelButtons keeps the /levels keyboard within Telegram's markup limits
const maxLevelButtons = 48

var listNumber = regexp.MustCompile(`^\d+[.)]\s*`)

func levelCallback(p models.Position) string {
	return fmt.Sprintf("%s%d:%d", callbackGotoPrefix, p.Week, p.Day)
}

// levelButtons lays out unlocked days three per row, newest first
func levelButtons(levels []models.Position) [][]MenuButton {
	if len(levels) > maxLevelButtons {
		levels = levels[:maxLevelButtons]
	}
	var rows [][]MenuButton
	var row []MenuButton
	for _, p := range levels {
		row = append(row, MenuButton{Text: fmt.Sprintf("W%d D%d", p.Week, p.Day), CallbackData: levelCallback(p)})
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// parseGoto reads a "goto:<week>:<day>" callback
func parseGoto(data string) (models.Position, error) {
	rest, ok := strings.CutPrefix(data, callbackGotoPrefix)
	if !ok {
		return models.Position{}, fmt.Errorf("not a goto callback: %q", data)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 2 {
		return models.Position{}, fmt.Errorf("malformed goto callback: %q", data)
	}
	week, err := strconv.Atoi(parts[0])
	if err != nil {
		return models.Position{}, fmt.Errorf("malformed week in %q: %w", data, err)
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return models.Position{}, fmt.Errorf("malformed day in %q: %w", data, err)
	}
	return models.Position{Week: week, Day: day}, nil
}

// parseIndex reads a 1-based item number and returns it 0-based
func parseIndex(args []string, n int) (int, error) {
	if len(args) != 1 {
		return 0, errUsage(fmt.Sprintf("give an idiom number from 1 to %d", n))
	}
	i, err := strconv.Atoi(args[0])
	if err != nil || i < 1 || i > n {
		return 0, errUsage(fmt.Sprintf("give an idiom number from 1 to %d", n))
	}
	return i - 1, nil
}

// parseAnswerLines pairs the lines of text with entries in order. Leading list numbers
// like "2." or "2)" are stripped; blank or missing lines leave the entry unanswered.
func parseAnswerLines(text string, entries []models.IdiomEntry) map[string]string {
	answers := make(map[string]string, len(entries))
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	for i, entry := range entries {
		if i >= len(lines) {
			break
		}
		answer := strings.TrimSpace(listNumber.ReplaceAllString(strings.TrimSpace(lines[i]), ""))
		if answer != "" {
			answers[entry.ID] = answer
		}
	}
	return answers
}

func reviewEntries(view progress.ReviewView) []models.IdiomEntry {
	entries := make([]models.IdiomEntry, len(view.Questions))
	for i, q := range view.Questions {
		entries[i] = models.IdiomEntry{ID: q.ID, Meaning: q.Meaning}
	}
	return entries
}

func formatDay(day progress.DayView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📖 %s (%s), day %d\n\n", day.Week.Title, day.Week.Label, day.Position.Day)
	if len(day.Idioms) == 0 {
		sb.WriteString("No idioms for this day.")
		return sb.String()
	}
	for i, idiom := range day.Idioms {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, idiom.English, idiom.Meaning)
		if idiom.Example != "" {
			fmt.Fprintf(&sb, "   💬 %s\n", idiom.Example)
		}
	}
	if day.Celebrating {
		sb.WriteString("\n🎉 Day complete!")
	}
	return sb.String()
}

func formatQuizPrompt(kind progress.QuizKind, pending []models.IdiomEntry) string {
	var sb strings.Builder
	if kind == progress.QuizMeaning {
		sb.WriteString("✍️ Write the meaning of each idiom, one per line:\n\n")
	} else {
		sb.WriteString("🎧 Write each idiom in English, one per line:\n\n")
	}
	for i, idiom := range pending {
		if kind == progress.QuizMeaning {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, idiom.English)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, idiom.Meaning)
		}
	}
	if kind == progress.QuizDictation {
		sb.WriteString("\nUse /listen <n> to hear an idiom.")
	}
	return sb.String()
}

func formatQuizReport(report progress.QuizReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d/%d correct\n", report.Correct, report.Total)
	for _, v := range report.Verdicts {
		mark := "❌"
		if v.IsCorrect {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s %s\n", mark, v.UserAnswer)
	}
	if report.DayComplete {
		fmt.Fprintf(&sb, "\n🎉 Day complete! +%d points", report.Awarded)
	}
	return sb.String()
}

func formatReviewIntro(cfg models.ReviewConfig) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 %s\n\n%d questions", cfg.Title, cfg.QuestionCount)
	if cfg.Timed() {
		fmt.Fprintf(&sb, ", %d minutes", cfg.TimeLimitSeconds/60)
	}
	return sb.String()
}

func formatReviewQuestions(view progress.ReviewView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 %s\n", view.Config.Title)
	if view.Remaining > 0 {
		fmt.Fprintf(&sb, "⏳ %d:%02d left\n", view.Remaining/60, view.Remaining%60)
	}
	sb.WriteString("\nWrite each idiom in English, one per line, then /submit:\n\n")
	for i, q := range view.Questions {
		fmt.Fprintf(&sb, "%d. %s", i+1, q.Meaning)
		if draft := view.Drafts[q.ID]; draft != "" {
			fmt.Fprintf(&sb, " ➜ %s", draft)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func formatReviewReport(report progress.ReviewReport) string {
	out := fmt.Sprintf("📊 %d/%d correct", report.Outcome.Correct, report.Outcome.Total)
	if len(report.Outcome.Missed) > 0 {
		out += fmt.Sprintf("\n%d missed idioms were added to your favorites.", len(report.Outcome.Missed))
	}
	if report.Awarded > 0 {
		out += fmt.Sprintf("\n🎉 +%d points", report.Awarded)
	}
	return out
}

func formatIdiomList(title string, idioms []models.IdiomEntry) string {
	if len(idioms) == 0 {
		return title + ": none yet."
	}
	var sb strings.Builder
	sb.WriteString(title + ":\n\n")
	for _, idiom := range idioms {
		fmt.Fprintf(&sb, "• %s - %s (W%d D%d)\n", idiom.English, idiom.Meaning, idiom.Week, idiom.Day)
	}
	return sb.String()
}

func formatUsers(users []admin.UserSummary) string {
	if len(users) == 0 {
		return "No learners yet."
	}
	var sb strings.Builder
	sb.WriteString("👥 Learners:\n\n")
	for i, u := range users {
		fmt.Fprintf(&sb, "%d. %s - %d points, unlocked W%d D%d, %d favorites\n",
			i+1, u.ID, u.Score, u.MaxUnlocked.Week, u.MaxUnlocked.Day, len(u.Favorites))
	}
	return sb.String()
}
