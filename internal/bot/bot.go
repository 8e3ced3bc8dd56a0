package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/example/vocastar/internal/progress"
	"github.com/example/vocastar/internal/service"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// awaiting is what the next plain text message of a chat answers
type awaiting int

const (
	awaitNothing awaiting = iota
	awaitMeaning
	awaitDictation
	awaitReview
)

// chatState binds a Telegram chat to a logged-in id
type chatState struct {
	UserID string
	Admin  bool
	Await  awaiting
}

// Bot is the Telegram front end of the learning service
type Bot struct {
	api *tgbotapi.BotAPI
	svc *service.Service

	mu    sync.Mutex
	chats map[int64]*chatState
}

// New connects to the Bot API and subscribes to service events
func New(token string, svc *service.Service) (*Bot, error) {
	if token == "" {
		return nil, errors.New("telegram token is empty")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %v", err)
	}
	log.Printf("Authorized on account %s", api.Self.UserName)

	b := &Bot{
		api:   api,
		svc:   svc,
		chats: make(map[int64]*chatState),
	}
	svc.SetNotifier(b.notify)
	return b, nil
}

// Start polls for updates until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Println("Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		if err := b.HandleCommand(ctx, update.Message); err != nil {
			log.Printf("Error handling command %s: %v", update.Message.Command(), err)
			b.reply(update.Message.Chat.ID, describeError(err))
		}
	case update.Message != nil:
		if err := b.handleText(ctx, update.Message); err != nil {
			log.Printf("Error handling answer: %v", err)
			b.reply(update.Message.Chat.ID, describeError(err))
		}
	case update.CallbackQuery != nil:
		if err := b.HandleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("Error handling callback %s: %v", update.CallbackQuery.Data, err)
			if update.CallbackQuery.Message != nil {
				b.reply(update.CallbackQuery.Message.Chat.ID, describeError(err))
			}
		}
	}
}

// notify announces timer-driven events in every chat bound to the learner
func (b *Bot) notify(e progress.Event) {
	var text string
	switch e.Kind {
	case progress.EventUnlocked:
		text = fmt.Sprintf("🔓 Week %d, day %d is now unlocked. Use /study to continue.", e.Position.Week, e.Position.Day)
	case progress.EventReviewTimedOut:
		if e.Review == nil {
			return
		}
		text = "⏰ Time is up!\n\n" + formatReviewReport(*e.Review)
	default:
		return
	}
	for _, chatID := range b.chatsOf(e.UserID) {
		b.reply(chatID, text)
	}
}

func (b *Bot) chatsOf(userID string) []int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []int64
	for chatID, st := range b.chats {
		if st.UserID == userID {
			ids = append(ids, chatID)
		}
	}
	return ids
}

func (b *Bot) state(chatID int64) (chatState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.chats[chatID]
	if !ok {
		return chatState{}, false
	}
	return *st, true
}

func (b *Bot) bind(chatID int64, id string, isAdmin bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chats[chatID] = &chatState{UserID: id, Admin: isAdmin}
}

func (b *Bot) unbind(chatID int64) (chatState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.chats[chatID]
	if !ok {
		return chatState{}, false
	}
	delete(b.chats, chatID)
	return *st, true
}

func (b *Bot) expect(chatID int64, a awaiting) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if st, ok := b.chats[chatID]; ok {
		st.Await = a
	}
}

// learner returns the live machine of the chat's learner
func (b *Bot) learner(chatID int64) (*progress.Machine, error) {
	st, ok := b.state(chatID)
	if !ok || st.Admin {
		return nil, service.ErrNotLoggedIn
	}
	return b.svc.Machine(st.UserID)
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (b *Bot) replyWithKeyboard(chatID int64, text string, buttons [][]MenuButton) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = createKeyboard(buttons)
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}
