// Package discord is the Discord transport: it posts rendered messages,
// manages reactions and feeds commands and reaction events to the core.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/messages"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
	"github.com/bwmarrin/discordgo"
)

// reactorPageSize is the maximum page the reactions endpoint returns
const reactorPageSize = 100

const commandPrefix = "/schedule"

// CommandHandler runs a schedule command and returns the reply
type CommandHandler interface {
	HandleCommand(ctx context.Context, args string) string
}

// ReactionSink receives "user added emoji" notifications
type ReactionSink interface {
	Submit(ctx context.Context, r models.Reaction)
}

// Config holds the Discord transport settings
type Config struct {
	Token          string
	CommandChannel string
	// MentionRole is pinged on every announcement and reminder when set
	MentionRole string
	Generator   messages.Generator
}

// Bot represents a Discord bot instance
type Bot struct {
	session  *discordgo.Session
	renderer *messages.Service
	cfg      Config
	logger   *logger.Logger

	mu        sync.RWMutex
	ctx       context.Context
	commands  CommandHandler
	reactions ReactionSink
}

var _ notify.Notifier = (*Bot)(nil)

// New creates a new Discord bot; call Run to connect
func New(cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	b := &Bot{
		session:  session,
		renderer: messages.New(renderOptions(cfg)),
		cfg:      cfg,
		logger:   logger.New("discord"),
		ctx:      context.Background(),
	}
	session.AddHandler(b.onMessageCreate)
	session.AddHandler(b.onReactionAdd)
	return b, nil
}

func renderOptions(cfg Config) messages.Options {
	opts := messages.Options{
		FormatTime: Timestamp,
		Generator:  cfg.Generator,
	}
	if cfg.MentionRole != "" {
		opts.Mention = "<@&" + cfg.MentionRole + ">"
	}
	return opts
}

// Timestamp renders t as a Discord timestamp shown in the reader's timezone
func Timestamp(t time.Time) string {
	return fmt.Sprintf("<t:%d:F>", t.Unix())
}

// SetHandlers wires inbound commands and reactions
func (b *Bot) SetHandlers(commands CommandHandler, reactions ReactionSink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = commands
	b.reactions = reactions
}

// Run connects to the gateway and blocks until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	b.mu.Lock()
	b.ctx = ctx
	b.mu.Unlock()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	if b.session.State != nil && b.session.State.User != nil {
		b.logger.Info("Discord bot connected as %s", b.session.State.User.Username)
	}

	<-ctx.Done()
	b.logger.Info("Closing Discord session")
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}
	return nil
}

// Ping checks that the gateway is connected
func (b *Bot) Ping(context.Context) error {
	if !b.session.DataReady {
		return errors.New("discord gateway not ready")
	}
	return nil
}

// Post implements notify.Notifier
func (b *Bot) Post(ctx context.Context, channel string, p notify.Payload) (models.MessageRef, error) {
	send := toMessageSend(b.renderer.Render(ctx, p))

	msg, err := b.session.ChannelMessageSendComplex(channel, send, discordgo.WithContext(ctx))
	if err != nil {
		return models.MessageRef{}, classify(err)
	}
	ref := models.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}

	if p.Kind == notify.KindAnnouncement {
		for _, emoji := range models.VoteEmojis {
			if err := b.session.MessageReactionAdd(ref.ChannelID, ref.MessageID, string(emoji), discordgo.WithContext(ctx)); err != nil {
				b.logger.Warn("Failed to add %s to announcement %s: %v", emoji, ref.MessageID, err)
			}
		}
	}
	return ref, nil
}

// Delete implements notify.Notifier
func (b *Bot) Delete(ctx context.Context, ref models.MessageRef) error {
	return classify(b.session.ChannelMessageDelete(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx)))
}

// RetractReaction implements notify.Notifier
func (b *Bot) RetractReaction(ctx context.Context, ref models.MessageRef, userID string, emoji models.VoteEmoji) error {
	return classify(b.session.MessageReactionRemove(ref.ChannelID, ref.MessageID, string(emoji), userID, discordgo.WithContext(ctx)))
}

// Reactors implements notify.Notifier
func (b *Bot) Reactors(ctx context.Context, ref models.MessageRef, emoji models.VoteEmoji) ([]string, error) {
	var (
		ids   []string
		after string
	)
	for {
		users, err := b.session.MessageReactions(ref.ChannelID, ref.MessageID, string(emoji), reactorPageSize, "", after, discordgo.WithContext(ctx))
		if err != nil {
			return nil, classify(err)
		}
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		if len(users) < reactorPageSize {
			return ids, nil
		}
		after = users[len(users)-1].ID
	}
}

func (b *Bot) handlers() (context.Context, CommandHandler, ReactionSink) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ctx, b.commands, b.reactions
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.ChannelID != b.cfg.CommandChannel {
		return
	}
	args, ok := commandArgs(m.Content)
	if !ok {
		return
	}

	ctx, commands, _ := b.handlers()
	if commands == nil {
		return
	}

	b.logger.Info("Handling schedule command from %s", m.Author.Username)
	reply := commands.HandleCommand(ctx, args)
	if _, err := s.ChannelMessageSend(m.ChannelID, reply, discordgo.WithContext(ctx)); err != nil {
		b.logger.Error("Failed to reply to command: %v", err)
	}
}

func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	ctx, _, reactions := b.handlers()
	if reactions == nil {
		return
	}

	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	reactions.Submit(ctx, toReaction(r, selfID))
}

// commandArgs returns the arguments of a schedule command
func commandArgs(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, commandPrefix) {
		return "", false
	}
	rest := content[len(commandPrefix):]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' && rest[0] != '\n' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func toReaction(r *discordgo.MessageReactionAdd, selfID string) models.Reaction {
	isBot := r.UserID == selfID
	if r.Member != nil && r.Member.User != nil && r.Member.User.Bot {
		isBot = true
	}
	return models.Reaction{
		Message: models.MessageRef{ChannelID: r.ChannelID, MessageID: r.MessageID},
		UserID:  r.UserID,
		Emoji:   r.Emoji.Name,
		IsBot:   isBot,
	}
}

func toMessageSend(r messages.Rendered) *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title:       r.Title,
		Description: r.Description,
		Color:       r.Color,
	}
	for _, f := range r.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	if r.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: r.Footer}
	}
	if !r.Timestamp.IsZero() {
		embed.Timestamp = r.Timestamp.UTC().Format(time.RFC3339)
	}

	return &discordgo.MessageSend{
		Content: r.Mention,
		Embeds:  []*discordgo.MessageEmbed{embed},
	}
}

// classify maps Discord REST failures onto the notify error taxonomy
func classify(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", notify.ErrNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", notify.ErrForbidden, err)
		}
	}
	return err
}
