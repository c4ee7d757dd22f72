package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carein/callboard/internal/api"
)

type stubService struct {
	summaries  []api.Summary
	listErr    error
	commlog    map[int64][]api.CommlogEntry
	commlogErr error
}

func (s *stubService) ListSummaries(context.Context, int) ([]api.Summary, error) {
	return s.summaries, s.listErr
}

func (s *stubService) CreateSummary(context.Context, string) (api.Summary, error) {
	return api.Summary{}, errors.New("not implemented")
}

func (s *stubService) RerunSummary(context.Context, int64) (api.Summary, error) {
	return api.Summary{}, errors.New("not implemented")
}

func (s *stubService) GetSummary(_ context.Context, id int64) (api.Summary, error) {
	for _, sum := range s.summaries {
		if sum.ID == id {
			return sum, nil
		}
	}
	return api.Summary{}, &api.Error{Kind: api.KindHTTP, Status: 404, Detail: "Call summary not found"}
}

func (s *stubService) Commlog(_ context.Context, id int64) ([]api.CommlogEntry, error) {
	if s.commlogErr != nil {
		return nil, s.commlogErr
	}
	return s.commlog[id], nil
}

func init() {
	color.NoColor = true
}

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestPrintSummariesOrdersByID(t *testing.T) {
	svc := &stubService{summaries: []api.Summary{
		{ID: 1, Transcript: "first", CreatedAt: api.NewTimestamp(t0)},
		{ID: 3, Transcript: "third", Summary: api.StringPtr("done"), CreatedAt: api.NewTimestamp(t0)},
		{ID: 2, Transcript: "second", CreatedAt: api.NewTimestamp(t0)},
	}}

	var buf bytes.Buffer
	require.NoError(t, printSummaries(context.Background(), &buf, svc, 20, false))
	out := buf.String()

	assert.Contains(t, out, "Call summaries (3):")
	i3 := strings.Index(out, "ID: 3")
	i2 := strings.Index(out, "ID: 2")
	i1 := strings.Index(out, "ID: 1")
	assert.True(t, i3 < i2 && i2 < i1, "want descending ids:\n%s", out)
	assert.Contains(t, out, "Summary: done")
	assert.Equal(t, 2, strings.Count(out, "No summary generated yet."))
	assert.NotContains(t, out, "Communication Log:")
}

func TestPrintSummariesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printSummaries(context.Background(), &buf, &stubService{}, 20, false))
	assert.Equal(t, "No summaries found. Submit a transcript to get started!\n", buf.String())
}

func TestPrintSummariesError(t *testing.T) {
	svc := &stubService{listErr: &api.Error{Kind: api.KindHTTP, Status: 500, Fallback: "HTTP error! status: 500"}}
	err := printSummaries(context.Background(), &bytes.Buffer{}, svc, 20, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP error! status: 500")
}

func TestPrintSummariesWithCommlog(t *testing.T) {
	svc := &stubService{
		summaries: []api.Summary{{ID: 1, Transcript: "a", CreatedAt: api.NewTimestamp(t0)}},
		commlog: map[int64][]api.CommlogEntry{1: {
			{ID: 2, CallSummaryID: 1, Action: "rerun", Message: api.StringPtr("again"), CreatedAt: api.NewTimestamp(t0.Add(time.Minute))},
			{ID: 1, CallSummaryID: 1, Action: "created", CreatedAt: api.NewTimestamp(t0)},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, printSummaries(context.Background(), &buf, svc, 20, true))
	out := buf.String()

	assert.Contains(t, out, "Communication Log:")
	assert.Less(t, strings.Index(out, "[RERUN]"), strings.Index(out, "[CREATED]"))
	assert.Contains(t, out, "again")
	assert.Contains(t, out, "No message.")
}

func TestPrintSummaryNotFound(t *testing.T) {
	err := printSummary(context.Background(), &bytes.Buffer{}, &stubService{}, 9)
	require.Error(t, err)
	assert.Equal(t, "summary 9 not found: Call summary not found", err.Error())
}

func TestPrintSummaryOtherErrors(t *testing.T) {
	svc := &stubService{
		summaries:  []api.Summary{{ID: 1, Transcript: "a", CreatedAt: api.NewTimestamp(t0)}},
		commlogErr: &api.Error{Kind: api.KindHTTP, Status: 500, Fallback: "HTTP error! status: 500"},
	}
	err := printSummary(context.Background(), &bytes.Buffer{}, svc, 1)
	require.Error(t, err)
	assert.Equal(t, "failed to fetch commlog: HTTP error! status: 500", err.Error())
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"list", "show", "commlog", "serve-stub"}, names)

	for _, flag := range []string{"config", "api", "timeout", "log-file", "log-level", "debug"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
	for _, flag := range []string{"limit", "optimistic-insert", "no-alt-screen"} {
		assert.NotNil(t, root.Flags().Lookup(flag), flag)
	}
}
