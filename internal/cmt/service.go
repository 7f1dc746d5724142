package cmt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sharath018/bgv-verification-backend/config"
	"github.com/sharath018/bgv-verification-backend/internal/access"
	"github.com/sharath018/bgv-verification-backend/internal/activitylog"
	"github.com/sharath018/bgv-verification-backend/internal/clientapplication"
	"github.com/sharath018/bgv-verification-backend/internal/customer"
	"github.com/sharath018/bgv-verification-backend/internal/mailer"
)

var ErrUnknownAnnexureTable = errors.New("unknown annexure table")

// completedColorStatuses gates the ready-for-report notification: every
// annexure must carry one of these, lowercased.
var completedColorStatuses = map[string]bool{
	"completed":        true,
	"completed_green":  true,
	"completed_red":    true,
	"completed_yellow": true,
	"completed_pink":   true,
	"completed_orange": true,
}

// AnnexureInput is one per-service sub-form as submitted with a report.
type AnnexureInput struct {
	ServiceTable string                 `json:"service_table"`
	ColorStatus  string                 `json:"color_status"`
	Data         map[string]interface{} `json:"data"`
}

// GenerateReportInput carries one report-generation request.
type GenerateReportInput struct {
	BranchID      uint
	CustomerID    uint
	ApplicationID string
	UpdatedJSON   map[string]interface{}
	Annexures     []AnnexureInput
	SendMail      bool
}

// GenerateReportResult reports what was written and whether a notification
// went out.
type GenerateReportResult struct {
	CMT        *CMTApplication
	EmailCode  int
	MailQueued bool
	Message    string
}

// ApplicationAggregate joins the applicant row with its tracker record and
// annexures.
type ApplicationAggregate struct {
	Application *clientapplication.ClientApplication `json:"application"`
	CMT         *CMTApplication                      `json:"cmt"`
	Annexures   []AnnexureRecord                     `json:"annexures"`
}

type Service interface {
	TrackerList(ctx context.Context) ([]TrackerRow, error)
	ApplicationByID(ctx context.Context, applicationID string) (*ApplicationAggregate, error)
	AnnexureData(ctx context.Context, applicationID, serviceTable string) (*AnnexureRecord, error)
	Get(ctx context.Context, applicationID string) (*CMTApplication, error)
	GenerateReport(ctx context.Context, in GenerateReportInput, actorKind access.ActorKind, actorID uint, ip string) (*GenerateReportResult, error)
	TriggerEmail(ctx context.Context, applicationID string, emailCode int) error
	SaveUploads(ctx context.Context, applicationID string, paths []string) (*CMTApplication, error)
	ExportTracker(ctx context.Context, format string) ([]byte, string, string, error)
}

type service struct {
	repo         Repository
	applications clientapplication.Repository
	customers    customer.Repository
	logs         activitylog.Service
	mail         mailer.Dispatcher
	exporter     TrackerExporter
	backend      string
}

func NewService(repo Repository, applications clientapplication.Repository, customers customer.Repository, logs activitylog.Service, mail mailer.Dispatcher, cfg *config.Config) Service {
	return &service{
		repo:         repo,
		applications: applications,
		customers:    customers,
		logs:         logs,
		mail:         mail,
		exporter:     NewTrackerExporter(),
		backend:      cfg.BackendURL,
	}
}

func (s *service) TrackerList(ctx context.Context) ([]TrackerRow, error) {
	return s.repo.TrackerRows(ctx)
}

func (s *service) ApplicationByID(ctx context.Context, applicationID string) (*ApplicationAggregate, error) {
	app, err := s.applications.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	agg := &ApplicationAggregate{Application: app}
	cmt, err := s.repo.FindByApplicationID(ctx, applicationID)
	if err != nil {
		if err == ErrNotFound {
			return agg, nil // report not generated yet
		}
		return nil, err
	}
	agg.CMT = cmt

	annexures, err := s.repo.AnnexuresByCMT(ctx, cmt.ID)
	if err != nil {
		return nil, err
	}
	agg.Annexures = annexures
	return agg, nil
}

func (s *service) AnnexureData(ctx context.Context, applicationID, serviceTable string) (*AnnexureRecord, error) {
	table, ok := NormalizeServiceTable(serviceTable)
	if !ok {
		return nil, ErrAnnexureNotFound
	}
	cmt, err := s.repo.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return s.repo.AnnexureByTable(ctx, cmt.ID, table)
}

func (s *service) Get(ctx context.Context, applicationID string) (*CMTApplication, error) {
	return s.repo.FindByApplicationID(ctx, applicationID)
}

// GenerateReport runs the report pipeline as one ordered sequence: load the
// applicant, upsert the aggregate and its annexures, derive the notification
// and queue it. A failed mail dispatch never unwinds the data write.
func (s *service) GenerateReport(ctx context.Context, in GenerateReportInput, actorKind access.ActorKind, actorID uint, ip string) (*GenerateReportResult, error) {
	result, err := s.generateReport(ctx, in)

	payload := map[string]interface{}{"application_id": in.ApplicationID}
	if result != nil {
		payload["email_code"] = result.EmailCode
		payload["mail_queued"] = result.MailQueued
	}
	s.logs.Record(ctx, actorID, string(actorKind), "cmt_application", "generate_report", err == nil, payload, err, ip)

	return result, err
}

func (s *service) generateReport(ctx context.Context, in GenerateReportInput) (*GenerateReportResult, error) {
	app, err := s.applications.FindByApplicationID(ctx, in.ApplicationID)
	if err != nil {
		return nil, err
	}

	cmt := buildCMT(app, in)
	annexures := make([]AnnexureRecord, 0, len(in.Annexures))
	for _, a := range in.Annexures {
		table, ok := NormalizeServiceTable(a.ServiceTable)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownAnnexureTable, a.ServiceTable)
		}
		data, err := json.Marshal(a.Data)
		if err != nil {
			return nil, err
		}
		annexures = append(annexures, AnnexureRecord{
			ServiceTable: table,
			ColorStatus:  strings.ToLower(strings.TrimSpace(a.ColorStatus)),
			Data:         data,
		})
	}

	cmt, err = s.repo.UpsertReport(ctx, cmt, annexures)
	if err != nil {
		return nil, err
	}

	if err := s.applications.UpdateStatus(ctx, app.ID, cmt.OverallStatus); err != nil {
		return nil, err
	}

	colorStatuses := annexureColorStatuses(in.Annexures)
	if len(in.Annexures) == 0 {
		stored, err := s.repo.AnnexuresByCMT(ctx, cmt.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range stored {
			colorStatuses = append(colorStatuses, a.ColorStatus)
		}
	}

	code := DeriveNotification(cmt.OverallStatus, cmt.IsVerify, colorStatuses)

	result := &GenerateReportResult{CMT: cmt, EmailCode: code}
	if code == EmailNone {
		result.Message = "Report saved"
		return result, nil
	}
	if !in.SendMail {
		result.Message = "Report saved, notification suppressed"
		return result, nil
	}

	if err := s.dispatchNotification(ctx, cmt, code); err != nil {
		// Data write already succeeded; report the miss, never fail.
		result.Message = "Report saved, notification could not be sent"
		return result, nil
	}
	result.MailQueued = true
	result.Message = "Report saved, notification sent"
	return result, nil
}

func buildCMT(app *clientapplication.ClientApplication, in GenerateReportInput) *CMTApplication {
	fields := in.UpdatedJSON
	get := func(key string) string {
		if v, ok := fields[key]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
		return ""
	}

	gender := strings.ToLower(get("gender"))
	marital := strings.ToLower(get("marital_status"))
	name := get("candidate_name")
	if name == "" {
		name = app.Name
	}

	// Everything outside the typed columns rides along as-is.
	extra := map[string]interface{}{}
	for k, v := range fields {
		switch k {
		case "overall_status", "is_verify", "gender", "marital_status", "candidate_name":
		default:
			extra[k] = v
		}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		extraJSON = []byte("{}")
	}

	return &CMTApplication{
		ApplicationID: app.ApplicationID,
		BranchID:      in.BranchID,
		CustomerID:    app.CustomerID,
		CandidateName: name,
		Gender:        gender,
		MaritalStatus: marital,
		GenderTitle:   GenderTitle(gender, marital),
		OverallStatus: strings.ToLower(get("overall_status")),
		IsVerify:      strings.ToLower(get("is_verify")),
		Extra:         extraJSON,
	}
}

func annexureColorStatuses(annexures []AnnexureInput) []string {
	out := make([]string, 0, len(annexures))
	for _, a := range annexures {
		out = append(out, a.ColorStatus)
	}
	return out
}

// DeriveNotification decides which email a report generation fires.
// Completed statuses branch on is_verify; anything else requires every
// annexure's color status to signal completion before the ready-for-report
// mail goes out.
func DeriveNotification(overallStatus, isVerify string, colorStatuses []string) int {
	status := strings.ToLower(strings.TrimSpace(overallStatus))
	verify := strings.ToLower(strings.TrimSpace(isVerify))

	if status == "completed" || status == "complete" {
		switch verify {
		case "yes":
			return EmailFinalReport
		case "no":
			return EmailQCCheck
		default:
			return EmailNone
		}
	}

	if len(colorStatuses) == 0 {
		return EmailNone
	}
	for _, cs := range colorStatuses {
		if !completedColorStatuses[strings.ToLower(strings.TrimSpace(cs))] {
			return EmailNone
		}
	}
	return EmailReadyForReport
}

// GenderTitle maps gender + marital status onto a salutation.
func GenderTitle(gender, maritalStatus string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male":
		return "Mr."
	case "female":
		if strings.ToLower(strings.TrimSpace(maritalStatus)) == "married" {
			return "Mrs."
		}
		return "Ms."
	default:
		return "Mx."
	}
}

func mailActionFor(code int) string {
	switch code {
	case EmailFinalReport:
		return "final_report"
	case EmailQCCheck:
		return "qc_report_check"
	case EmailReadyForReport:
		return "ready_for_report"
	default:
		return ""
	}
}

func (s *service) dispatchNotification(ctx context.Context, cmt *CMTApplication, code int) error {
	action := mailActionFor(code)
	if action == "" {
		return fmt.Errorf("no mail action for code %d", code)
	}

	cust, err := s.customers.FindByID(ctx, cmt.CustomerID)
	if err != nil {
		return err
	}
	to := cust.EmailList()
	if len(to) == 0 {
		return fmt.Errorf("customer %d has no contact emails", cust.ID)
	}

	s.mail.Dispatch(ctx, mailer.Job{
		Module: "cmt",
		Action: action,
		Vars: map[string]string{
			"gender_title":   cmt.GenderTitle,
			"candidate_name": cmt.CandidateName,
			"application_id": cmt.ApplicationID,
			"customer_name":  cust.Name,
			"overall_status": cmt.OverallStatus,
		},
		To:             to,
		AttachmentURLs: s.attachmentURLs(cmt),
	})
	return nil
}

// attachmentURLs resolves the report's stored documents against the public
// upload route so the mailer can probe and attach them.
func (s *service) attachmentURLs(cmt *CMTApplication) []string {
	docs := cmt.DocumentList()
	if len(docs) == 0 || s.backend == "" {
		return nil
	}
	urls := make([]string, 0, len(docs))
	for _, p := range docs {
		urls = append(urls, s.backend+"/uploads/"+p)
	}
	return urls
}

// TriggerEmail fires one of the three notifications directly, bypassing the
// derivation. Used by the upload endpoint's email_status field.
func (s *service) TriggerEmail(ctx context.Context, applicationID string, emailCode int) error {
	cmt, err := s.repo.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return err
	}
	return s.dispatchNotification(ctx, cmt, emailCode)
}

func (s *service) SaveUploads(ctx context.Context, applicationID string, paths []string) (*CMTApplication, error) {
	cmt, err := s.repo.FindByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	docs := cmt.DocumentList()
	docs = append(docs, paths...)
	if err := s.repo.UpdateDocumentPaths(ctx, cmt.ID, strings.Join(docs, ",")); err != nil {
		return nil, err
	}
	return s.repo.FindByApplicationID(ctx, applicationID)
}

func (s *service) ExportTracker(ctx context.Context, format string) ([]byte, string, string, error) {
	rows, err := s.repo.TrackerRows(ctx)
	if err != nil {
		return nil, "", "", err
	}
	return s.exporter.Export(format, rows)
}
