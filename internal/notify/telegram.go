// Package notify sends retrieval run summaries to operators. Alerting
// is optional: without a bot token every call is a no-op.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"

	"github.com/demandcast/demandcast/internal/models"
)

// Notifier reports retrieval run outcomes over Telegram.
type Notifier struct {
	bot    *bot.Bot
	chatID int64
	logger *logrus.Logger
}

// NewNotifier creates a notifier. An empty token disables alerting and
// returns a nil notifier, which is safe to call.
func NewNotifier(token, chatID string, logger *logrus.Logger) (*Notifier, error) {
	if token == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat ID %q: %w", chatID, err)
	}

	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	return &Notifier{bot: b, chatID: id, logger: logger}, nil
}

// NotifyRun sends a summary of a finished retrieval run. Fully
// successful runs are not announced.
func (n *Notifier) NotifyRun(ctx context.Context, run *models.RetrievalRun) error {
	if n == nil || run == nil || len(run.Failures) == 0 {
		return nil
	}

	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   FormatRunReport(run),
	})
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	n.logger.WithField("run", run.ID).Info("Sent retrieval failure alert")
	return nil
}

// FormatRunReport renders a run report as a plain-text alert, listing at
// most ten failures to stay under Telegram's message limits.
func FormatRunReport(run *models.RetrievalRun) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Retrieval run %s (%s): %d/%d tasks succeeded, %d failed\n",
		run.ID, run.Source, run.Succeeded, run.Tasks, len(run.Failures))

	const maxListed = 10
	for i, failure := range run.Failures {
		if i == maxListed {
			fmt.Fprintf(&b, "... and %d more\n", len(run.Failures)-maxListed)
			break
		}
		fmt.Fprintf(&b, "- %s %s %s: %s\n",
			failure.Timestamp.Format("2006-01-02 15:04"), failure.EntityCode, failure.Window, failure.Error)
	}
	return b.String()
}
