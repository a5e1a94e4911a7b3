// Package messages renders announcements and reminders into a
// platform-neutral message that transports turn into embeds or text.
package messages

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Mrtrew97/Schedule-Bot--I/pkg/logger"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/models"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/notify"
	"github.com/Mrtrew97/Schedule-Bot--I/pkg/reminder"
)

// Embed colours
const (
	ColorGold   = 0xF1C40F
	ColorOrange = 0xE67E22
	ColorGreen  = 0x2ECC71
	ColorRed    = 0xE74C3C
)

const defaultHype = "LET'S DO THIS!!"

// Generator produces optional flavour text
type Generator interface {
	GenerateChatMessage(ctx context.Context, intent string, contextData map[string]interface{}) (string, error)
}

// Field is a titled block of a rendered message
type Field struct {
	Name  string
	Value string
}

// Rendered is a message ready for a transport
type Rendered struct {
	// Mention is sent as plain content next to the embed
	Mention     string
	Title       string
	Description string
	Fields      []Field
	Footer      string
	Color       int
	Timestamp   time.Time
}

// Text flattens the message for transports without embeds
func (r Rendered) Text() string {
	var b strings.Builder
	if r.Mention != "" {
		b.WriteString(r.Mention)
		b.WriteString("\n")
	}
	b.WriteString(r.Title)
	if r.Description != "" {
		b.WriteString("\n")
		b.WriteString(strings.ReplaceAll(r.Description, "**", ""))
	}
	for _, f := range r.Fields {
		b.WriteString("\n\n")
		b.WriteString(f.Name)
		b.WriteString("\n")
		b.WriteString(f.Value)
	}
	if r.Footer != "" {
		b.WriteString("\n\n")
		b.WriteString(r.Footer)
	}
	return b.String()
}

// Options tune rendering per transport
type Options struct {
	// Mention is prepended to every message, e.g. a role ping
	Mention string
	// FormatTime renders the start instant inside reminders
	FormatTime func(time.Time) string
	// Generator, when set, supplies the hype line of the start notice
	Generator Generator
}

// Service provides message rendering functionality
type Service struct {
	opts   Options
	logger *logger.Logger
}

// New creates a new message service
func New(opts Options) *Service {
	if opts.FormatTime == nil {
		opts.FormatTime = FormatTime
	}
	return &Service{
		opts:   opts,
		logger: logger.New("messages"),
	}
}

// Render builds the message for p
func (s *Service) Render(ctx context.Context, p notify.Payload) Rendered {
	if p.Kind == notify.KindAnnouncement {
		return s.announcement(p)
	}
	return s.reminder(ctx, p)
}

func (s *Service) announcement(p notify.Payload) Rendered {
	return Rendered{
		Mention:     s.opts.Mention,
		Title:       "🛡️ Scheduled " + Capitalize(p.Category),
		Description: p.Title,
		Fields: []Field{
			{Name: "🕒 Time", Value: FormatTime(p.StartAt)},
			{Name: "⏳ Time Remaining", Value: FormatRemaining(p.Remaining)},
			{Name: "🗳️ React with:", Value: voteLegend()},
		},
		Footer:    "Event ID: " + p.EventID,
		Color:     ColorGold,
		Timestamp: p.StartAt,
	}
}

func (s *Service) reminder(ctx context.Context, p notify.Payload) Rendered {
	category := Capitalize(p.Category)
	when := s.opts.FormatTime(p.StartAt)
	r := Rendered{
		Mention:   s.opts.Mention,
		Footer:    "Get ready!",
		Color:     ColorGreen,
		Timestamp: p.StartAt,
	}

	switch p.Tier {
	case reminder.TierHalfway:
		r.Title = fmt.Sprintf("⏰ Reminder: %s Halfway There!", category)
		r.Description = fmt.Sprintf("Event **%s - %s** is halfway there!\nHappening at %s", category, p.Title, when)
		r.Color = ColorOrange
	case reminder.TierStart:
		r.Title = fmt.Sprintf("🚨 %s Started!", category)
		r.Description = fmt.Sprintf("**%s - %s IS NOW!!! %s**", category, p.Title, s.hype(ctx, p))
		r.Color = ColorRed
		r.Footer = ""
	default:
		r.Title = fmt.Sprintf("⏰ Reminder: %s Left", TierText(p.Tier, true))
		r.Description = fmt.Sprintf("Event **%s - %s** starts in %s.\nTime: %s", category, p.Title, TierText(p.Tier, false), when)
	}
	return r
}

func (s *Service) hype(ctx context.Context, p notify.Payload) string {
	if s.opts.Generator == nil {
		return defaultHype
	}
	line, err := s.opts.Generator.GenerateChatMessage(ctx, "event_start", map[string]interface{}{
		"category": p.Category,
		"name":     p.Title,
	})
	if err != nil {
		s.logger.Warn("Failed to generate hype line for event %s: %v", p.EventID, err)
		return defaultHype
	}
	return line
}

func voteLegend() string {
	lines := make([]string, 0, len(models.VoteEmojis))
	for _, e := range models.VoteEmojis {
		lines = append(lines, fmt.Sprintf("%s — %s", e, e.Label()))
	}
	return strings.Join(lines, "\n")
}

// TierText spells out a tier label such as "12h" or "30m"; title selects
// "12 Hours" over "12 hours"
func TierText(label string, title bool) string {
	if len(label) < 2 {
		return label
	}
	n, unit := label[:len(label)-1], label[len(label)-1]
	var word string
	switch unit {
	case 'h':
		word = "hours"
	case 'm':
		word = "minutes"
	default:
		return label
	}
	if title {
		word = Capitalize(word)
	}
	return n + " " + word
}

// FormatTime renders t like "Sunday, March 1, 2026 12:00 PM UTC"
func FormatTime(t time.Time) string {
	return t.UTC().Format("Monday, January 2, 2006 3:04 PM") + " UTC"
}

// FormatRemaining renders d like "1 days 2 hours 3 minutes"; under a day the
// days part is omitted
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60

	if days > 0 {
		return fmt.Sprintf("%d days %d hours %d minutes", days, hours, minutes)
	}
	return fmt.Sprintf("%d hours %d minutes", hours, minutes)
}

// Capitalize upper-cases the first letter and lower-cases the rest
func Capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
