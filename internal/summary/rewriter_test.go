package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedCompleter struct {
	replies []string
	errs    []error
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, prompt string) (string, error) {
	i := len(s.prompts)
	s.prompts = append(s.prompts, prompt)

	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", nil
}

func newTestRewriter(c Completer) (*Rewriter, *[]time.Duration) {
	var waits []time.Duration
	r := NewRewriter(c, 3, []string{"today"}, []string{"i "})
	r.Sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return r, &waits
}

func TestEnhanceAccepted(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"  Central banks kept rates unchanged.  "}}
	r, _ := newTestRewriter(c)

	got, used := r.Enhance(context.Background(), "Central bank holds rates")

	assert.True(t, used)
	assert.Equal(t, "Central banks kept rates unchanged.", got)
	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], "Original (do not exceed 250 chars): Central bank holds rates")
}

func TestEnhanceRetriesRejectedOutput(t *testing.T) {
	c := &scriptedCompleter{
		replies: []string{"short", "CENTRAL BANK HOLDS RATES", strings.Repeat("x", 300)},
	}
	r, waits := newTestRewriter(c)

	got, used := r.Enhance(context.Background(), "Central bank holds rates")

	assert.False(t, used)
	assert.Equal(t, "Central bank holds rates", got)
	assert.Len(t, c.prompts, 3)
	assert.Empty(t, *waits)
}

func TestEnhanceBacksOffOnErrors(t *testing.T) {
	boom := errors.New("boom")
	c := &scriptedCompleter{
		errs:    []error{boom, boom},
		replies: []string{"", "", "Central banks kept rates unchanged."},
	}
	r, waits := newTestRewriter(c)

	got, used := r.Enhance(context.Background(), "Central bank holds rates")

	assert.True(t, used)
	assert.Equal(t, "Central banks kept rates unchanged.", got)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestEnhanceWithoutAI(t *testing.T) {
	r := NewRewriter(nil, 3, nil, nil)

	text := strings.Repeat("word ", 80) + "end."
	got, used := r.Enhance(context.Background(), text)

	assert.False(t, used)
	assert.LessOrEqual(t, len([]rune(got)), 280)
	assert.True(t, strings.HasSuffix(got, "..."))
}

func TestAssessRisk(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"SCORE: 7.5/10\nSUGGESTION: Drop the date reference."}}
	r, _ := newTestRewriter(c)

	score, suggestion := r.AssessRisk(context.Background(), "Rates fall.")

	assert.InDelta(t, 7.5, score, 1e-9)
	assert.Equal(t, "Drop the date reference.", suggestion)
	assert.Contains(t, c.prompts[0], "blocked_keywords=['today']")
	assert.Contains(t, c.prompts[0], "Post: Rates fall.")
}

func TestAssessRiskFailures(t *testing.T) {
	boom := errors.New("boom")
	r, waits := newTestRewriter(&scriptedCompleter{errs: []error{boom, boom, boom}})

	score, suggestion := r.AssessRisk(context.Background(), "Rates fall.")

	assert.InDelta(t, 5.0, score, 1e-9)
	assert.Equal(t, "Assessment failed", suggestion)
	assert.Len(t, *waits, 3)

	score, suggestion = NewRewriter(nil, 3, nil, nil).AssessRisk(context.Background(), "Rates fall.")
	assert.Zero(t, score)
	assert.Equal(t, "AI unavailable", suggestion)
}

func TestParseRisk(t *testing.T) {
	score, suggestion := ParseRisk("score: 2/10\nsuggestion: None")
	assert.InDelta(t, 2.0, score, 1e-9)
	assert.Equal(t, "None", suggestion)

	score, suggestion = ParseRisk("no idea")
	assert.InDelta(t, 5.0, score, 1e-9)
	assert.Equal(t, "None", suggestion)
}

func TestEnhanceRateLimited(t *testing.T) {
	c := &scriptedCompleter{replies: []string{"short", "Central banks kept rates unchanged."}}
	r, _ := newTestRewriter(c)
	r.WithRateLimit(1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	got, used := r.Enhance(ctx, "Central bank holds rates")

	assert.False(t, used)
	assert.Equal(t, "Central bank holds rates", got)
	assert.Len(t, c.prompts, 1)
}

func TestWithRateLimitDisabled(t *testing.T) {
	r := NewRewriter(&scriptedCompleter{}, 1, nil, nil).WithRateLimit(0)
	assert.Nil(t, r.limiter)
}
