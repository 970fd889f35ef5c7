package qc

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caldermed/psurd/internal/agentrun"
	"github.com/caldermed/psurd/internal/golden"
	"github.com/caldermed/psurd/internal/template"
)

func trendSection() template.SectionSpec {
	return template.SectionSpec{
		ID: "G", Number: 7, Name: "Trend Analysis", Agent: "Tara",
		RequiredContent: []string{"complaint rate per exposure"},
		WordLimit:       50,
		DependsOn:       []string{"C", "D", "E"},
	}
}

func snapshotWithDenominator() golden.Snapshot {
	store := golden.NewStore()
	store.MergeCalculated(golden.KeyExposureDenominator, 12847)
	return store.Snapshot()
}

func draft(content string) agentrun.Draft {
	return agentrun.Draft{
		SectionID: "G",
		Content:   content,
		Words:     len(strings.Fields(content)),
	}
}

func goodContent() string {
	return "Using the 12,847 units distributed (Section C), the complaint rate per exposure was 0.33 per 100 units, consistent with Section E."
}

func TestReview_ApprovesCompliantDraft(t *testing.T) {
	r := NewReviewer()
	v, err := r.Review(context.Background(), CheckInput{
		Section:  trendSection(),
		Draft:    draft(goodContent()),
		Snapshot: snapshotWithDenominator(),
	})
	require.NoError(t, err)
	assert.True(t, v.Approved)
}

func TestReview_RejectsMissingDenominator(t *testing.T) {
	r := NewReviewer()
	v, err := r.Review(context.Background(), CheckInput{
		Section:  trendSection(),
		Draft:    draft("The complaint rate per exposure was roughly 0.3 per 100 units, see Section C."),
		Snapshot: snapshotWithDenominator(),
	})
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.Contains(t, v.FeedbackText(), "[golden_denominator]")
	assert.Contains(t, v.FeedbackText(), "12,847")
}

func TestReview_AcceptsUngroupedDenominator(t *testing.T) {
	r := NewReviewer()
	v, err := r.Review(context.Background(), CheckInput{
		Section:  trendSection(),
		Draft:    draft("Across 12847 units the complaint rate per exposure was 0.33, per Section C."),
		Snapshot: snapshotWithDenominator(),
	})
	require.NoError(t, err)
	assert.True(t, v.Approved)
}

func TestReview_RejectsMissingRequiredContent(t *testing.T) {
	r := NewReviewer()
	v, err := r.Review(context.Background(), CheckInput{
		Section:  trendSection(),
		Draft:    draft("All was well across 12,847 units, see Section C."),
		Snapshot: snapshotWithDenominator(),
	})
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.Contains(t, v.FeedbackText(), "[required_content]")
}

func TestReview_RejectsMissingUpstreamCitation(t *testing.T) {
	r := NewReviewer()
	v, err := r.Review(context.Background(), CheckInput{
		Section:  trendSection(),
		Draft:    draft("The complaint rate per exposure across 12,847 units was 0.33 per 100."),
		Snapshot: snapshotWithDenominator(),
	})
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.Contains(t, v.FeedbackText(), "[upstream_citation]")
}

func TestReview_NoCitationNeededWithoutDependencies(t *testing.T) {
	sec := trendSection()
	sec.DependsOn = nil

	r := NewReviewer()
	v, err := r.Review(context.Background(), CheckInput{
		Section:  sec,
		Draft:    draft("The complaint rate per exposure across 12,847 units was 0.33 per 100."),
		Snapshot: snapshotWithDenominator(),
	})
	require.NoError(t, err)
	assert.True(t, v.Approved)
}

func TestReview_WordLimitIsAdvisoryOnly(t *testing.T) {
	long := goodContent()
	for len(strings.Fields(long)) <= 60 { // past 1.2 x 50
		long += " Additional commentary on the observed complaint trend follows here."
	}

	r := NewReviewer()
	v, err := r.Review(context.Background(), CheckInput{
		Section:  trendSection(),
		Draft:    draft(long),
		Snapshot: snapshotWithDenominator(),
	})
	require.NoError(t, err)
	assert.True(t, v.Approved)
	assert.Contains(t, v.FeedbackText(), "[word_limit]")
}

type errorChecker struct{}

func (errorChecker) Check(context.Context, CheckInput) ([]Finding, error) {
	return nil, errors.New("compliance service unreachable")
}

func TestReview_CheckerErrorIsNotARejection(t *testing.T) {
	r := NewReviewer(errorChecker{})
	_, err := r.Review(context.Background(), CheckInput{Section: trendSection()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "qc: check section G")
}

func TestFeedbackText_NamesEveryCheck(t *testing.T) {
	v := Verdict{Findings: []Finding{
		{Check: "required_content", Detail: "a", Blocking: true},
		{Check: "word_limit", Detail: "b"},
	}}
	assert.Equal(t, "[required_content] a; [word_limit] b", v.FeedbackText())
}
