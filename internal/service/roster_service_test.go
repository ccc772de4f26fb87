package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
)

type rosterStub struct {
	entries []models.RosterEntry
}

func (r *rosterStub) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	return r.entries, nil
}

type classReaderStub struct {
	classes map[string]*models.ClassOffering
}

func (c *classReaderStub) FindByID(ctx context.Context, id string) (*models.ClassOffering, error) {
	class, ok := c.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return class, nil
}

func newTestRoster() *RosterService {
	classes := &classReaderStub{classes: map[string]*models.ClassOffering{
		"class-1": {ID: "class-1", Name: "Algebra I", Period: 2},
	}}
	roster := &rosterStub{entries: []models.RosterEntry{
		{StudentID: "student-1", Username: "dlee", StudentName: "Dana Lee", EnrolledAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)},
		{StudentID: "student-2", Username: "sortiz", StudentName: "Sam Ortiz", EnrolledAt: time.Date(2026, 8, 21, 9, 0, 0, 0, time.UTC)},
	}}
	return NewRosterService(roster, classes, nil)
}

func TestRosterServiceExportCSV(t *testing.T) {
	svc := newTestRoster()

	result, err := svc.Export(context.Background(), "class-1", RosterFormatCSV)
	require.NoError(t, err)
	require.Equal(t, "text/csv", result.ContentType)
	require.True(t, strings.HasSuffix(result.Filename, ".csv"))

	content := string(result.Content)
	require.Contains(t, content, "Student,Username,Enrolled At")
	require.Contains(t, content, "Dana Lee,dlee")
	require.Contains(t, content, "Sam Ortiz,sortiz")
}

func TestRosterServiceExportPDF(t *testing.T) {
	svc := newTestRoster()

	result, err := svc.Export(context.Background(), "class-1", RosterFormatPDF)
	require.NoError(t, err)
	require.Equal(t, "application/pdf", result.ContentType)
	require.True(t, strings.HasSuffix(result.Filename, ".pdf"))
	require.True(t, strings.HasPrefix(string(result.Content), "%PDF"))
}

func TestRosterServiceExportUnknownFormat(t *testing.T) {
	svc := newTestRoster()

	_, err := svc.Export(context.Background(), "class-1", "xlsx")
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRosterServiceExportMissingClass(t *testing.T) {
	svc := newTestRoster()

	_, err := svc.Export(context.Background(), "ghost", RosterFormatCSV)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
