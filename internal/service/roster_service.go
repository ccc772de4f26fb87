package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-registration-api/internal/models"
	appErrors "github.com/noah-isme/course-registration-api/pkg/errors"
	"github.com/noah-isme/course-registration-api/pkg/export"
)

// RosterFormat selects the export encoding.
type RosterFormat string

const (
	RosterFormatCSV RosterFormat = "csv"
	RosterFormatPDF RosterFormat = "pdf"
)

type rosterReader interface {
	Roster(ctx context.Context, classID string) ([]models.RosterEntry, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassOffering, error)
}

// RosterExport is a rendered roster document.
type RosterExport struct {
	Content     []byte
	ContentType string
	Filename    string
}

// RosterService renders class rosters as downloadable documents.
type RosterService struct {
	enrollments rosterReader
	classes     classReader
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewRosterService constructs the roster exporter.
func NewRosterService(enrollments rosterReader, classes classReader, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{
		enrollments: enrollments,
		classes:     classes,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Export renders the roster of a class in the requested format.
func (s *RosterService) Export(ctx context.Context, classID string, format RosterFormat) (*RosterExport, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	entries, err := s.enrollments.Roster(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	data := export.Dataset{
		Headers: []string{"Student", "Username", "Enrolled At"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		data.Rows = append(data.Rows, map[string]string{
			"Student":     entry.StudentName,
			"Username":    entry.Username,
			"Enrolled At": entry.EnrolledAt.Format(time.RFC3339),
		})
	}

	stamp := time.Now().UTC().Format("20060102")
	switch format {
	case RosterFormatCSV, "":
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &RosterExport{
			Content:     content,
			ContentType: "text/csv",
			Filename:    fmt.Sprintf("roster_%s_%s.csv", class.ID, stamp),
		}, nil
	case RosterFormatPDF:
		title := fmt.Sprintf("%s (Period %d)", class.Name, class.Period)
		content, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &RosterExport{
			Content:     content,
			ContentType: "application/pdf",
			Filename:    fmt.Sprintf("roster_%s_%s.pdf", class.ID, stamp),
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
