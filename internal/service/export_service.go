package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nadir-hamid/fst-exams-api/internal/models"
	"github.com/nadir-hamid/fst-exams-api/pkg/export"
	"github.com/nadir-hamid/fst-exams-api/pkg/storage"
)

type studentLister interface {
	ListEnrolledStudentIDs(ctx context.Context) ([]string, error)
}

type requestLister interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.ModificationRequestDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files. Conflict
// datasets are computed fresh at generation time, never read from a cache.
type ExportService struct {
	conflicts *ConflictService
	students  studentLister
	requests  requestLister
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(conflicts *ConflictService, students studentLister, requests requestLister, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		conflicts: conflicts,
		students:  students,
		requests:  requests,
		storage:   store,
		csv:       csv,
		pdf:       pdf,
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (the configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	scope := "all"
	if job.Params.StudentID != nil && *job.Params.StudentID != "" {
		scope = sanitizeFilename(*job.Params.StudentID)
	}
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), scope, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeConflicts:
		return s.buildConflictDataset(ctx, job.Params)
	case models.ReportTypeRequests:
		return s.buildRequestDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

// buildConflictDataset runs a detection pass for every scoped student and
// flattens the result, one row per conflict.
func (s *ExportService) buildConflictDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	studentIDs, err := s.scopedStudents(ctx, params)
	if err != nil {
		return export.Dataset{}, "", err
	}

	dataRows := make([]map[string]string, 0, len(studentIDs))
	for _, studentID := range studentIDs {
		report, err := s.conflicts.Report(ctx, studentID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, conflict := range report.Conflicts {
			dataRows = append(dataRows, map[string]string{
				"Student ID": studentID,
				"Type":       string(conflict.Type),
				"Severity":   string(conflict.Severity),
				"Exams":      strings.Join(conflict.ExamIDs, " "),
				"Occurs At":  conflict.OccursAt.UTC().Format(time.RFC3339),
				"Detail":     conflict.Detail,
			})
		}
	}

	dataset := export.Dataset{
		Headers: []string{"Student ID", "Type", "Severity", "Exams", "Occurs At", "Detail"},
		Rows:    dataRows,
	}
	title := "Conflict Report"
	if params.StudentID != nil && *params.StudentID != "" {
		title = fmt.Sprintf("Conflict Report %s", *params.StudentID)
	}
	return dataset, title, nil
}

func (s *ExportService) buildRequestDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	filter := models.RequestFilter{
		CreatedFrom: params.From,
		CreatedTo:   params.To,
		Limit:       200,
	}
	if params.StudentID != nil {
		filter.StudentID = *params.StudentID
	}

	// Page through the store so large request logs export completely.
	requests := make([]models.ModificationRequestDetail, 0, filter.Limit)
	for {
		page, err := s.requests.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, "", err
		}
		requests = append(requests, page...)
		if len(page) < filter.Limit {
			break
		}
		filter.Offset += filter.Limit
	}

	dataRows := make([]map[string]string, 0, len(requests))
	for _, request := range requests {
		dataRows = append(dataRows, map[string]string{
			"Request ID":   request.ID,
			"Student ID":   request.StudentID,
			"Module":       request.ModuleName,
			"Exam Start":   request.ExamStart.UTC().Format(time.RFC3339),
			"Type":         string(request.Type),
			"Status":       string(request.Status),
			"Reason":       request.Reason,
			"Response":     deref(request.Response),
			"Responded At": formatReportTime(request.RespondedAt),
		})
	}

	dataset := export.Dataset{
		Headers: []string{"Request ID", "Student ID", "Module", "Exam Start", "Type", "Status", "Reason", "Response", "Responded At"},
		Rows:    dataRows,
	}
	title := "Modification Request Report"
	if params.StudentID != nil && *params.StudentID != "" {
		title = fmt.Sprintf("Modification Request Report %s", *params.StudentID)
	}
	return dataset, title, nil
}

func (s *ExportService) scopedStudents(ctx context.Context, params models.ReportJobParams) ([]string, error) {
	if params.StudentID != nil && *params.StudentID != "" {
		return []string{*params.StudentID}, nil
	}
	return s.students.ListEnrolledStudentIDs(ctx)
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
