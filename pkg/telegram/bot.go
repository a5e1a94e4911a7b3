// Package telegram is the Telegram transport. Telegram bots can neither list
// reactors nor remove other users' reactions, so votes are inline keyboard
// buttons backed by the ballot ledger in pkg/poll.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/messages"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/poll"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const votePrefix = "vote:"

// CommandHandler runs a schedule command and returns the reply
type CommandHandler interface {
	HandleCommand(ctx context.Context, args string) string
}

// ReactionSink receives "user added emoji" notifications
type ReactionSink interface {
	Submit(ctx context.Context, r models.Reaction)
}

// api is the subset of *tgbotapi.BotAPI the bot uses
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot represents a Telegram bot instance
type Bot struct {
	api            api
	ballots        *poll.Service
	renderer       *messages.Service
	commandChannel string
	logger         *logger.Logger

	mu        sync.RWMutex
	commands  CommandHandler
	reactions ReactionSink
}

var _ notify.Notifier = (*Bot)(nil)

// New creates a new Telegram bot instance
func New(token string, ballots *poll.Service, renderer *messages.Service, commandChannel string) (*Bot, error) {
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	bot := newBot(botAPI, ballots, renderer, commandChannel)
	bot.logger.Info("Telegram bot created: @%s", botAPI.Self.UserName)
	return bot, nil
}

func newBot(a api, ballots *poll.Service, renderer *messages.Service, commandChannel string) *Bot {
	return &Bot{
		api:            a,
		ballots:        ballots,
		renderer:       renderer,
		commandChannel: commandChannel,
		logger:         logger.New("telegram"),
	}
}

// SetHandlers wires inbound commands and vote taps
func (b *Bot) SetHandlers(commands CommandHandler, reactions ReactionSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = commands
	b.reactions = reactions
}

func (b *Bot) handlers() (CommandHandler, ReactionSink) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.commands, b.reactions
}

// Run listens for updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Stopping Telegram updates")
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.CallbackQuery != nil && strings.HasPrefix(update.CallbackQuery.Data, votePrefix):
		b.handleVote(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	if message.Command() != "schedule" || chatRef(message.Chat.ID) != b.commandChannel {
		return
	}
	commands, _ := b.handlers()
	if commands == nil {
		return
	}

	user := ""
	if message.From != nil {
		user = message.From.UserName
	}
	b.logger.Info("Handling command: schedule from user %s", user)

	reply := commands.HandleCommand(ctx, message.CommandArguments())
	if _, err := b.api.Send(tgbotapi.NewMessage(message.Chat.ID, reply)); err != nil {
		b.logger.Error("Failed to reply to command: %v", err)
	}
}

// handleVote toggles the tapped emoji for the user: a tap on a held emoji
// withdraws it, any other tap adds it and lets the reconciler drop the rest
func (b *Bot) handleVote(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	answer := func(text string) {
		if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, text)); err != nil {
			b.logger.Debug("Failed to answer callback: %v", err)
		}
	}

	emoji := models.VoteEmoji(strings.TrimPrefix(callback.Data, votePrefix))
	if callback.Message == nil || callback.From == nil || !models.IsVote(string(emoji)) {
		answer("")
		return
	}

	ref := models.MessageRef{ChannelID: chatRef(callback.Message.Chat.ID), MessageID: strconv.Itoa(callback.Message.MessageID)}
	userID := strconv.FormatInt(callback.From.ID, 10)

	err := b.ballots.Remove(ctx, ref, userID, emoji)
	switch {
	case err == nil:
		b.refreshKeyboard(ctx, ref)
		answer("Vote withdrawn")
		return
	case !errors.Is(err, poll.ErrNoReaction):
		b.logger.Error("Failed to update ballot %s: %v", ref.MessageID, err)
		answer("Sorry, try again")
		return
	}

	if err := b.ballots.Add(ctx, ref, userID, emoji); err != nil {
		b.logger.Error("Failed to record vote on %s: %v", ref.MessageID, err)
		answer("Sorry, try again")
		return
	}
	b.refreshKeyboard(ctx, ref)
	answer("Voted " + emoji.Label())

	if _, reactions := b.handlers(); reactions != nil {
		reactions.Submit(ctx, models.Reaction{
			Message: ref,
			UserID:  userID,
			Emoji:   string(emoji),
			IsBot:   callback.From.IsBot,
		})
	}
}

// Post implements notify.Notifier
func (b *Bot) Post(ctx context.Context, channel string, p notify.Payload) (models.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return models.MessageRef{}, err
	}
	chatID, err := parseChat(channel)
	if err != nil {
		return models.MessageRef{}, err
	}

	msg := tgbotapi.NewMessage(chatID, b.renderer.Render(ctx, p).Text())
	if p.Kind == notify.KindAnnouncement {
		msg.ReplyMarkup = voteKeyboard(nil)
	}

	sent, err := b.api.Send(msg)
	if err != nil {
		return models.MessageRef{}, classify(err)
	}
	return models.MessageRef{ChannelID: channel, MessageID: strconv.Itoa(sent.MessageID)}, nil
}

// Delete implements notify.Notifier
func (b *Bot) Delete(ctx context.Context, ref models.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, messageID, err := parseRef(ref)
	if err != nil {
		return err
	}

	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return classify(err)
	}
	if err := b.ballots.Delete(ctx, ref); err != nil {
		b.logger.Warn("Failed to drop ballot of deleted message %s: %v", ref.MessageID, err)
	}
	return nil
}

// RetractReaction implements notify.Notifier
func (b *Bot) RetractReaction(ctx context.Context, ref models.MessageRef, userID string, emoji models.VoteEmoji) error {
	err := b.ballots.Remove(ctx, ref, userID, emoji)
	if errors.Is(err, poll.ErrNoReaction) {
		return fmt.Errorf("%w: %v", notify.ErrNotFound, err)
	}
	if err != nil {
		return err
	}
	b.refreshKeyboard(ctx, ref)
	return nil
}

// Reactors implements notify.Notifier
func (b *Bot) Reactors(ctx context.Context, ref models.MessageRef, emoji models.VoteEmoji) ([]string, error) {
	return b.ballots.Reactors(ctx, ref, emoji)
}

func (b *Bot) refreshKeyboard(ctx context.Context, ref models.MessageRef) {
	chatID, messageID, err := parseRef(ref)
	if err != nil {
		return
	}
	counts, err := b.ballots.Counts(ctx, ref)
	if err != nil {
		b.logger.Error("Failed to count votes on %s: %v", ref.MessageID, err)
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, voteKeyboard(counts))
	if _, err := b.api.Request(edit); err != nil {
		// Telegram rejects edits that change nothing
		b.logger.Debug("Failed to refresh vote keyboard on %s: %v", ref.MessageID, err)
	}
}

func voteKeyboard(counts map[models.VoteEmoji]int) tgbotapi.InlineKeyboardMarkup {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(models.VoteEmojis))
	for _, emoji := range models.VoteEmojis {
		text := fmt.Sprintf("%s %s (%d)", emoji, emoji.Label(), counts[emoji])
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(text, votePrefix+string(emoji)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
}

func chatRef(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func parseChat(channel string) (int64, error) {
	id, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid Telegram chat ID %q: %w", channel, err)
	}
	return id, nil
}

func parseRef(ref models.MessageRef) (int64, int, error) {
	chatID, err := parseChat(ref.ChannelID)
	if err != nil {
		return 0, 0, err
	}
	messageID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid Telegram message ID %q: %w", ref.MessageID, err)
	}
	return chatID, messageID, nil
}

// classify maps Bot API failures onto the notify error taxonomy
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %v", notify.ErrForbidden, err)
	case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "not found"):
		return fmt.Errorf("%w: %v", notify.ErrNotFound, err)
	case apiErr.Code == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Message), "can't be deleted"):
		return fmt.Errorf("%w: %v", notify.ErrForbidden, err)
	}
	return err
}
