package validator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/models"
	"github.com/starford/noteintel/internal/testutil"
)

func newValidator(s Store) *Validator {
	return New(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestValidateAllLinks_OrphanAndBroken(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("A", "B", "D")
	s.AddNote(models.Note{ID: "C", Tags: models.Tags{"lonely"}})
	s.Link("A", "B")
	broken := s.Link("D", "E")

	res, err := newValidator(s).ValidateAllLinks(context.Background())
	require.NoError(t, err)
	assert.False(t, res.IsHealthy())
	assert.Equal(t, 4, res.TotalNotes)
	assert.Equal(t, 2, res.TotalLinks)
	assert.False(t, res.ValidationTime.IsZero())

	require.Len(t, res.OrphanNotes, 1)
	assert.Equal(t, "C", res.OrphanNotes[0].NoteID)
	assert.Equal(t, models.Tags{"lonely"}, res.OrphanNotes[0].Tags)

	require.Len(t, res.BrokenLinks, 1)
	assert.Equal(t, broken.ID, res.BrokenLinks[0].LinkID)
	assert.Equal(t, "E", res.BrokenLinks[0].ToNoteID)
	assert.Equal(t, "Target note not found", res.BrokenLinks[0].Issue)
}

func TestValidateAllLinks_CircularAndDuplicates(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a", "b", "c")
	s.Link("b", "a")
	s.Link("a", "b")
	s.Link("a", "b")
	s.Link("b", "c")
	s.AddLink(models.Link{FromNoteID: "b", ToNoteID: "c", LinkType: models.LinkMention})

	res, err := newValidator(s).ValidateAllLinks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []CircularLink{{NoteA: "a", NoteB: "b"}}, res.CircularLinks)
	require.Len(t, res.DuplicateLinks, 1)
	assert.Equal(t, "a", res.DuplicateLinks[0].FromNoteID)
	assert.Equal(t, 2, res.DuplicateLinks[0].DuplicateCount)
	assert.Empty(t, res.BrokenLinks)
	assert.Empty(t, res.OrphanNotes)
}

func TestValidateAllLinks_HealthyStore(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a", "b")
	s.Link("a", "b")

	res, err := newValidator(s).ValidateAllLinks(context.Background())
	require.NoError(t, err)
	assert.True(t, res.IsHealthy())
}

func TestValidateAllLinks_StoreFailure(t *testing.T) {
	s := testutil.NewMemStore()
	s.Err = errors.New("unreachable")

	_, err := newValidator(s).ValidateAllLinks(context.Background())
	require.ErrorIs(t, err, apperr.ErrLinkValidation)
	assert.Equal(t, "validate_all_links", apperr.Op(err))
}

func TestRepair_DuplicatesKeepOldest(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a", "b")
	oldest := s.Link("a", "b")
	s.Link("a", "b")
	s.Link("a", "b")
	v := newValidator(s)
	ctx := context.Background()

	res, err := v.ValidateAllLinks(ctx)
	require.NoError(t, err)
	require.Len(t, res.DuplicateLinks, 1)
	assert.Equal(t, 3, res.DuplicateLinks[0].DuplicateCount)

	report, err := v.RepairBrokenLinks(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, 2, report.DuplicateLinksRemoved)
	assert.Equal(t, 0, report.BrokenLinksRemoved)

	left, _ := s.GetLinks(ctx, "a", "b")
	require.Len(t, left, 1)
	assert.Equal(t, oldest.ID, left[0].ID)

	// Re-running against the stale result is safe.
	report, err = v.RepairBrokenLinks(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, 2, report.DuplicateLinksRemoved)
	left, _ = s.GetLinks(ctx, "a", "b")
	assert.Len(t, left, 1)
}

func TestRepair_BrokenLinks(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a")
	s.Link("a", "gone")
	s.Link("a", "gone")
	v := newValidator(s)
	ctx := context.Background()

	res, err := v.ValidateAllLinks(ctx)
	require.NoError(t, err)
	report, err := v.RepairBrokenLinks(ctx, res)
	require.NoError(t, err)
	assert.Equal(t, 2, report.BrokenLinksRemoved)
	assert.Equal(t, 0, report.DuplicateLinksRemoved)
	n, _ := s.CountLinks(ctx)
	assert.Zero(t, n)
}

func TestRepair_StopsOnCancellation(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a")
	s.Link("a", "x")
	s.Link("a", "y")
	v := newValidator(s)

	res, err := v.ValidateAllLinks(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := v.RepairBrokenLinks(ctx, res)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Zero(t, report.BrokenLinksRemoved)
	n, _ := s.CountLinks(context.Background())
	assert.Equal(t, 2, n)
}

func TestValidateNoteLinks(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNote(models.Note{ID: "a", Title: "Alpha"})
	s.AddNote(models.Note{ID: "b", Title: "Beta"})
	s.AddNotes("c")
	s.Link("a", "b")
	s.Link("a", "missing")
	s.Link("b", "a")
	s.Link("ghost", "a")
	v := newValidator(s)
	ctx := context.Background()

	r, err := v.ValidateNoteLinks(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", r.Note.Title)
	require.Len(t, r.OutgoingLinks.Valid, 1)
	assert.Equal(t, "Beta", r.OutgoingLinks.Valid[0].Title)
	require.Len(t, r.OutgoingLinks.Broken, 1)
	assert.Equal(t, "missing", r.OutgoingLinks.Broken[0].ToNoteID)
	assert.Len(t, r.IncomingLinks.Valid, 1)
	assert.Len(t, r.IncomingLinks.Broken, 1)
	assert.Equal(t, 2, r.TotalBroken)
	assert.False(t, r.IsOrphan)

	r, err = v.ValidateNoteLinks(ctx, "c")
	require.NoError(t, err)
	assert.True(t, r.IsOrphan)

	_, err = v.ValidateNoteLinks(ctx, "nope")
	require.ErrorIs(t, err, apperr.ErrLinkValidation)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFindMissingBidirectionalLinks(t *testing.T) {
	s := testutil.NewMemStore()
	s.AddNotes("a", "b", "c")
	s.Link("a", "b")
	s.Link("b", "a")
	s.Link("a", "c")
	s.Link("a", "c")
	s.Link("c", "ghost")

	got, err := newValidator(s).FindMissingBidirectionalLinks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []BidirectionalSuggestion{
		{FromNoteID: "c", ToNoteID: "a", SuggestedLinkType: models.LinkReference},
	}, got)
}
