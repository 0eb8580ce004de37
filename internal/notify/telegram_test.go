package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/demandcast/demandcast/internal/models"
)

func testRun(failures int) *models.RetrievalRun {
	run := &models.RetrievalRun{
		ID:        "0b7e0a72-4b9a-4a8f-9b6e-000000000000",
		Source:    "CAMMESA",
		StartedAt: time.Date(2024, time.March, 1, 6, 0, 0, 0, time.UTC),
		Tasks:     20,
		Succeeded: 20 - failures,
	}
	for i := 0; i < failures; i++ {
		run.Failures = append(run.Failures, models.RetrievalFailureRecord{
			Timestamp:  time.Date(2024, time.March, 1, 6, 30, 0, 0, time.UTC),
			Source:     "CAMMESA",
			EntityCode: "AR",
			Window:     fmt.Sprintf("%d", 2000+i),
			Error:      "request to portal failed: 503",
		})
	}
	return run
}

func TestNewNotifier_DisabledWithoutToken(t *testing.T) {
	notifier, err := NewNotifier("", "123", nil)
	require.NoError(t, err)
	assert.Nil(t, notifier)

	// A nil notifier swallows calls.
	assert.NoError(t, notifier.NotifyRun(context.Background(), testRun(3)))
}

func TestNewNotifier_RejectsBadChatID(t *testing.T) {
	_, err := NewNotifier("123456:token", "not-a-number", nil)
	assert.Error(t, err)
}

func TestFormatRunReport(t *testing.T) {
	report := FormatRunReport(testRun(2))

	assert.Contains(t, report, "CAMMESA")
	assert.Contains(t, report, "18/20 tasks succeeded, 2 failed")
	assert.Contains(t, report, "AR 2000: request to portal failed: 503")
	assert.NotContains(t, report, "more")
}

func TestFormatRunReport_TruncatesLongFailureLists(t *testing.T) {
	report := FormatRunReport(testRun(15))

	assert.Contains(t, report, "5/20 tasks succeeded, 15 failed")
	assert.Contains(t, report, "... and 5 more")
	assert.NotContains(t, report, "2012")
}
