package announce

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
)

// Usage is shown when a schedule command cannot be parsed
const Usage = "Usage: `/schedule event_type HH:MM [dd/mm/yyyy] \"Event Name\"`"

var (
	// ErrUsage means the command does not have the expected shape
	ErrUsage = errors.New("invalid command format")
	// ErrInvalidTime means the time or date could not be parsed
	ErrInvalidTime = errors.New("invalid date/time format")
)

var datePattern = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)

// Command is a parsed schedule command
type Command struct {
	Category string
	Time     string
	// Date is empty when the command gave only a time of day
	Date string
	Name string
}

// ParseCommand parses the arguments of a schedule command, e.g.
// `hydra 20:30 01/03/2026 "Hydra hunt"`. Double quotes group words.
func ParseCommand(args string) (Command, error) {
	tokens, err := tokenize(args)
	if err != nil {
		return Command{}, err
	}
	if len(tokens) < 3 {
		return Command{}, ErrUsage
	}

	cmd := Command{Category: tokens[0], Time: tokens[1]}
	rest := tokens[2:]
	if len(rest) >= 2 && datePattern.MatchString(rest[0]) {
		cmd.Date = rest[0]
		rest = rest[1:]
	}
	cmd.Name = strings.Join(rest, " ")
	if strings.TrimSpace(cmd.Name) == "" {
		return Command{}, ErrUsage
	}
	return cmd, nil
}

// tokenize splits on whitespace, keeping double-quoted runs together
func tokenize(s string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range s {
		switch {
		case r == '"' || r == '“' || r == '”':
			quoted = !quoted
			started = true
		case unicode.IsSpace(r) && !quoted:
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: unterminated quote", ErrUsage)
	}
	if started {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}

// ResolveStart turns a HH:MM time and optional dd/mm/yyyy date into a UTC
// instant. Without a date the next occurrence of the time is used: today,
// or tomorrow when it has already passed.
func ResolveStart(timeOfDay, date string, now time.Time) (time.Time, error) {
	now = now.UTC()
	if date != "" {
		t, err := time.ParseInLocation("2/1/2006 15:04", date+" "+timeOfDay, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
		}
		return t, nil
	}

	clock, err := time.ParseInLocation("15:04", timeOfDay, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	t := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC)
	if t.Before(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}
