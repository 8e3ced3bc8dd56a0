package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/example/vocastar/internal/admin"
	"github.com/example/vocastar/internal/ai"
	"github.com/example/vocastar/internal/persistence"
	"github.com/example/vocastar/internal/progress"
	"github.com/example/vocastar/internal/review"
	"github.com/example/vocastar/internal/service"
	"github.com/example/vocastar/internal/speech"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Constants for callback data
const (
	callbackGotoPrefix  = "goto:"
	callbackStartReview = "review:start"
	callbackStudyDone   = "study:done"
)

const helpText = `Welcome to VocaStar! 🎓

/login <id> - Log in or register
/study - Show today's idioms
/done - Finish studying and open the quizzes
/meaning - Answer the meaning quiz
/dictation - Answer the dictation quiz
/levels - Jump to an unlocked day
/fav <n> - Toggle a favorite
/favs - List your favorites
/listen <n> - Hear an idiom
/preload - Fetch today's audio in advance
/review - Start the review of a review week
/submit - Grade your review answers
/quit - Abandon the review
/score - Show your score
/logout - Log out`

const adminHelpText = `Admin commands:

/users - List learners by score
/adjust <id> <delta> - Change a learner's score
/unlock <id> <week> <day> - Set a learner's unlock ceiling
/favsof <id> - Show a learner's favorites`

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if message == nil || message.Chat == nil {
		return fmt.Errorf("invalid message: required fields are missing")
	}
	chatID := message.Chat.ID
	args := strings.Fields(message.CommandArguments())

	switch message.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
		return nil
	case "login":
		return b.handleLogin(ctx, chatID, message.CommandArguments())
	case "logout":
		return b.handleLogout(ctx, chatID)
	case "users", "adjust", "unlock", "favsof":
		return b.handleAdminCommand(ctx, chatID, message.Command(), args)
	}

	m, err := b.learner(chatID)
	if err != nil {
		return err
	}
	switch message.Command() {
	case "study":
		return b.handleStudy(chatID, m)
	case "done":
		return b.handleStudyDone(chatID, m)
	case "meaning":
		return b.handleQuizPrompt(chatID, m, progress.QuizMeaning)
	case "dictation":
		return b.handleQuizPrompt(chatID, m, progress.QuizDictation)
	case "levels":
		b.replyWithKeyboard(chatID, "Choose a day:", levelButtons(m.Levels()))
		return nil
	case "fav":
		return b.handleFavorite(ctx, chatID, m, args)
	case "favs":
		b.reply(chatID, formatIdiomList("⭐ Favorites", m.Favorites()))
		return nil
	case "listen":
		return b.handleListen(ctx, chatID, m, args)
	case "preload":
		return b.handlePreload(ctx, chatID, m)
	case "review":
		return b.handleReview(chatID, m)
	case "submit":
		report, err := m.SubmitReview(ctx, nil)
		if err != nil {
			return err
		}
		b.expect(chatID, awaitNothing)
		b.reply(chatID, formatReviewReport(report))
		return nil
	case "quit":
		m.QuitReview()
		b.expect(chatID, awaitNothing)
		b.reply(chatID, "Review abandoned.")
		return nil
	case "score":
		p := m.Snapshot()
		b.reply(chatID, fmt.Sprintf("🏆 Score: %d\nUnlocked up to week %d, day %d", p.Score, p.MaxUnlocked.Week, p.MaxUnlocked.Day))
		return nil
	default:
		b.reply(chatID, "Unknown command. Use /help to see the commands.")
		return nil
	}
}

// HandleCallback handles inline keyboard presses
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.Message == nil {
		return nil
	}
	chatID := callback.Message.Chat.ID
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("Error answering callback: %v", err)
	}

	m, err := b.learner(chatID)
	if err != nil {
		return err
	}
	switch {
	case strings.HasPrefix(callback.Data, callbackGotoPrefix):
		pos, err := parseGoto(callback.Data)
		if err != nil {
			return err
		}
		moved, err := m.Navigate(ctx, pos)
		if err != nil {
			return err
		}
		if !moved {
			b.reply(chatID, "🔒 That day is still locked.")
			return nil
		}
		b.expect(chatID, awaitNothing)
		return b.handleStudy(chatID, m)
	case callback.Data == callbackStudyDone:
		return b.handleStudyDone(chatID, m)
	case callback.Data == callbackStartReview:
		view, err := m.StartReview()
		if err != nil {
			return err
		}
		b.expect(chatID, awaitReview)
		b.reply(chatID, formatReviewQuestions(view))
		return nil
	}
	return nil
}

func (b *Bot) handleLogin(ctx context.Context, chatID int64, raw string) error {
	if st, ok := b.state(chatID); ok && st.UserID != strings.TrimSpace(raw) {
		if err := b.handleLogout(ctx, chatID); err != nil {
			return err
		}
	}
	id, role, err := b.svc.Login(ctx, raw)
	if err != nil {
		return err
	}
	b.bind(chatID, id, role == service.RoleAdmin)
	log.Printf("chat %d logged in as %s (%s)", chatID, id, role)

	if role == service.RoleAdmin {
		b.reply(chatID, adminHelpText)
		return nil
	}
	b.reply(chatID, fmt.Sprintf("Hello, %s! 👋 Use /study to see today's idioms.", id))
	return nil
}

func (b *Bot) handleLogout(ctx context.Context, chatID int64) error {
	st, ok := b.unbind(chatID)
	if !ok {
		b.reply(chatID, "You are not logged in.")
		return nil
	}
	if !st.Admin && len(b.chatsOf(st.UserID)) == 0 {
		if err := b.svc.Logout(ctx, st.UserID); err != nil {
			return err
		}
	}
	b.reply(chatID, "Logged out. See you soon!")
	return nil
}

func (b *Bot) handleStudy(chatID int64, m *progress.Machine) error {
	day := m.Day()
	if day.IsReviewWeek {
		return b.handleReview(chatID, m)
	}
	b.replyWithKeyboard(chatID, formatDay(day), [][]MenuButton{
		{{Text: "✅ Done studying", CallbackData: callbackStudyDone}},
	})
	return nil
}

func (b *Bot) handleStudyDone(chatID int64, m *progress.Machine) error {
	if err := m.CompleteStudy(); err != nil {
		return err
	}
	return b.handleQuizPrompt(chatID, m, progress.QuizMeaning)
}

func (b *Bot) handleQuizPrompt(chatID int64, m *progress.Machine, kind progress.QuizKind) error {
	if m.Step() == progress.StepStudy {
		return progress.ErrStudyIncomplete
	}
	pending := m.Pending(kind)
	if len(pending) == 0 {
		b.reply(chatID, "Nothing left to answer in this quiz. 🎉")
		return nil
	}
	if kind == progress.QuizMeaning {
		b.expect(chatID, awaitMeaning)
	} else {
		b.expect(chatID, awaitDictation)
	}
	b.reply(chatID, formatQuizPrompt(kind, pending))
	return nil
}

// handleText routes a plain message to whatever the chat is waiting for
func (b *Bot) handleText(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	st, ok := b.state(chatID)
	if !ok || st.Await == awaitNothing {
		b.reply(chatID, "I don't understand. Use /help to see the commands.")
		return nil
	}
	m, err := b.svc.Machine(st.UserID)
	if err != nil {
		return err
	}

	switch st.Await {
	case awaitMeaning, awaitDictation:
		kind := progress.QuizMeaning
		submit := m.SubmitMeaning
		if st.Await == awaitDictation {
			kind = progress.QuizDictation
			submit = m.SubmitDictation
		}
		answers := parseAnswerLines(message.Text, m.Pending(kind))
		report, err := submit(ctx, answers)
		if err != nil {
			return err
		}
		b.expect(chatID, awaitNothing)
		b.reply(chatID, formatQuizReport(report))
		if !report.DayComplete && kind == progress.QuizMeaning && report.Correct == report.Total {
			return b.handleQuizPrompt(chatID, m, progress.QuizDictation)
		}
		return nil
	case awaitReview:
		view, err := m.Review()
		if err != nil {
			return err
		}
		for id, answer := range parseAnswerLines(message.Text, reviewEntries(view)) {
			if err := m.SetReviewAnswer(id, answer); err != nil {
				return err
			}
		}
		b.reply(chatID, "📝 Answers saved. Send corrections or /submit to grade.")
		return nil
	}
	return nil
}

func (b *Bot) handleFavorite(ctx context.Context, chatID int64, m *progress.Machine, args []string) error {
	idioms := m.Day().Idioms
	n, err := parseIndex(args, len(idioms))
	if err != nil {
		return err
	}
	fav, err := m.ToggleFavorite(ctx, idioms[n].ID)
	if err != nil {
		return err
	}
	if fav {
		b.reply(chatID, fmt.Sprintf("⭐ Added %q to favorites.", idioms[n].English))
	} else {
		b.reply(chatID, fmt.Sprintf("Removed %q from favorites.", idioms[n].English))
	}
	return nil
}

func (b *Bot) handleListen(ctx context.Context, chatID int64, m *progress.Machine, args []string) error {
	idioms := m.Day().Idioms
	n, err := parseIndex(args, len(idioms))
	if err != nil {
		return err
	}
	audio, err := b.svc.Speak(ctx, idioms[n].English)
	if err != nil {
		return err
	}
	file := tgbotapi.FileBytes{Name: idioms[n].ID + ".wav", Bytes: speech.EncodeWAV(audio)}
	msg := tgbotapi.NewAudio(chatID, file)
	msg.Caption = idioms[n].English
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

func (b *Bot) handlePreload(ctx context.Context, chatID int64, m *progress.Machine) error {
	_, n, err := b.svc.PreloadDay(ctx, m.UserID())
	if err != nil {
		return err
	}
	b.reply(chatID, fmt.Sprintf("🔊 Preparing audio for %d idioms.", n))
	return nil
}

func (b *Bot) handleReview(chatID int64, m *progress.Machine) error {
	view, err := m.Review()
	if err != nil {
		return err
	}
	if view.State == review.InProgress.String() {
		b.expect(chatID, awaitReview)
		b.reply(chatID, formatReviewQuestions(view))
		return nil
	}
	b.replyWithKeyboard(chatID, formatReviewIntro(view.Config), [][]MenuButton{
		{{Text: "▶️ Start review", CallbackData: callbackStartReview}},
	})
	return nil
}

func (b *Bot) handleAdminCommand(ctx context.Context, chatID int64, command string, args []string) error {
	st, ok := b.state(chatID)
	if !ok {
		return service.ErrNotLoggedIn
	}
	agg, err := b.svc.Admin(st.UserID)
	if err != nil {
		return err
	}

	switch command {
	case "users":
		users, err := agg.ListAllUsers(ctx)
		if err != nil {
			return err
		}
		b.reply(chatID, formatUsers(users))
	case "adjust":
		if len(args) != 2 {
			return errUsage("/adjust <id> <delta>")
		}
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return errUsage("/adjust <id> <delta>")
		}
		score, err := agg.AdjustScore(ctx, args[0], delta)
		if err != nil {
			return err
		}
		b.reply(chatID, fmt.Sprintf("%s now has %d points.", args[0], score))
	case "unlock":
		if len(args) != 3 {
			return errUsage("/unlock <id> <week> <day>")
		}
		week, werr := strconv.Atoi(args[1])
		day, derr := strconv.Atoi(args[2])
		if werr != nil || derr != nil {
			return errUsage("/unlock <id> <week> <day>")
		}
		if err := agg.SetMaxUnlocked(ctx, args[0], week, day); err != nil {
			return err
		}
		b.reply(chatID, fmt.Sprintf("%s can now reach week %d, day %d.", args[0], week, day))
	case "favsof":
		if len(args) != 1 {
			return errUsage("/favsof <id>")
		}
		favs, err := b.svc.AdminFavorites(ctx, st.UserID, args[0])
		if err != nil {
			return err
		}
		b.reply(chatID, formatIdiomList("⭐ Favorites of "+args[0], favs))
	}
	return nil
}

type usageError string

func (e usageError) Error() string { return "usage: " + string(e) }

func errUsage(usage string) error { return usageError(usage) }

// describeError turns service errors into chat replies
func describeError(err error) string {
	var usage usageError
	switch {
	case errors.As(err, &usage):
		return usage.Error()
	case errors.Is(err, service.ErrEmptyID):
		return "Please give an id: /login <id>"
	case errors.Is(err, service.ErrNotLoggedIn), errors.Is(err, progress.ErrSessionClosed):
		return "Please /login first."
	case errors.Is(err, service.ErrForbidden):
		return "This command is only available for administrators."
	case errors.Is(err, persistence.ErrReservedUser):
		return "That id is reserved."
	case errors.Is(err, admin.ErrUserNotFound):
		return "No learner with that id."
	case ai.IsRateLimited(err):
		return "The audio service is busy, please try again in a minute."
	case errors.Is(err, service.ErrSpeechDisabled):
		return "Audio is not available right now."
	case errors.Is(err, progress.ErrStudyIncomplete):
		return "Finish studying first with /done."
	case errors.Is(err, progress.ErrReviewWeek):
		return "This is a review week. Use /review."
	case errors.Is(err, progress.ErrNotReviewWeek):
		return "There is no review today. Use /study."
	case errors.Is(err, review.ErrNotStarted):
		return "No review is running. Use /review to start one."
	case errors.Is(err, review.ErrAlreadySubmitted):
		return "This review was already submitted."
	case errors.Is(err, review.ErrNoData):
		return "There are no idioms to review yet."
	}
	return "Something went wrong, please try again."
}
