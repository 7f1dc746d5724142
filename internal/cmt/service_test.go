package cmt

import (
	"context"
	"errors"
	"testing"

	"github.com/sharath018/bgv-verification-backend/config"
	"github.com/sharath018/bgv-verification-backend/internal/access"
	"github.com/sharath018/bgv-verification-backend/internal/activitylog"
	"github.com/sharath018/bgv-verification-backend/internal/clientapplication"
	"github.com/sharath018/bgv-verification-backend/internal/customer"
	"github.com/sharath018/bgv-verification-backend/internal/mailer"
)

// ===============================
// fakes
// ===============================

type fakeRepo struct {
	cmt       *CMTApplication
	annexures []AnnexureRecord
	upserts   int
	docPaths  string
}

func (f *fakeRepo) FindByApplicationID(ctx context.Context, applicationID string) (*CMTApplication, error) {
	if f.cmt == nil || f.cmt.ApplicationID != applicationID {
		return nil, ErrNotFound
	}
	cp := *f.cmt
	return &cp, nil
}

func (f *fakeRepo) UpsertReport(ctx context.Context, cmt *CMTApplication, annexures []AnnexureRecord) (*CMTApplication, error) {
	f.upserts++
	if f.cmt != nil && f.cmt.ApplicationID == cmt.ApplicationID {
		cmt.ID = f.cmt.ID
	} else if cmt.ID == 0 {
		cmt.ID = 1
	}
	cp := *cmt
	f.cmt = &cp
	if len(annexures) > 0 {
		f.annexures = annexures
	}
	return cmt, nil
}

func (f *fakeRepo) AnnexuresByCMT(ctx context.Context, cmtID uint) ([]AnnexureRecord, error) {
	return f.annexures, nil
}

func (f *fakeRepo) AnnexureByTable(ctx context.Context, cmtID uint, serviceTable string) (*AnnexureRecord, error) {
	for i := range f.annexures {
		if f.annexures[i].ServiceTable == serviceTable {
			return &f.annexures[i], nil
		}
	}
	return nil, ErrAnnexureNotFound
}

func (f *fakeRepo) UpdateDocumentPaths(ctx context.Context, cmtID uint, paths string) error {
	if f.cmt == nil {
		return ErrNotFound
	}
	f.docPaths = paths
	f.cmt.DocumentPaths = paths
	return nil
}

func (f *fakeRepo) TrackerRows(ctx context.Context) ([]TrackerRow, error) {
	return []TrackerRow{{CustomerID: 1, CustomerName: "Acme Corp", ClientUniqueID: "ACME"}}, nil
}

type fakeApplications struct {
	app          *clientapplication.ClientApplication
	statusUpdate string
}

func (f *fakeApplications) Create(ctx context.Context, app *clientapplication.ClientApplication) error {
	return nil
}

func (f *fakeApplications) CreateBatch(ctx context.Context, apps []clientapplication.ClientApplication) error {
	return nil
}

func (f *fakeApplications) FindByID(ctx context.Context, id uint) (*clientapplication.ClientApplication, error) {
	if f.app == nil || f.app.ID != id {
		return nil, clientapplication.ErrNotFound
	}
	return f.app, nil
}

func (f *fakeApplications) FindByApplicationID(ctx context.Context, applicationID string) (*clientapplication.ClientApplication, error) {
	if f.app == nil || f.app.ApplicationID != applicationID {
		return nil, clientapplication.ErrNotFound
	}
	return f.app, nil
}

func (f *fakeApplications) List(ctx context.Context, filter clientapplication.Filter) ([]clientapplication.ClientApplication, int64, error) {
	return nil, 0, nil
}

func (f *fakeApplications) Update(ctx context.Context, app *clientapplication.ClientApplication) error {
	return nil
}

func (f *fakeApplications) UpdateStatus(ctx context.Context, id uint, status string) error {
	f.statusUpdate = status
	return nil
}

func (f *fakeApplications) UpdateUploadPaths(ctx context.Context, id uint, photoPath, documentPaths string) error {
	return nil
}

func (f *fakeApplications) DeleteCascade(ctx context.Context, id uint) error { return nil }

func (f *fakeApplications) LatestApplicationID(ctx context.Context, customerID uint) (string, error) {
	return "", nil
}

func (f *fakeApplications) EmployeeIDExists(ctx context.Context, employeeID string, excludeID uint) (bool, error) {
	return false, nil
}

type fakeCustomers struct {
	cust customer.Customer
}

func (f *fakeCustomers) FindByID(ctx context.Context, id uint) (*customer.Customer, error) {
	cp := f.cust
	return &cp, nil
}

func (f *fakeCustomers) FindByBranchID(ctx context.Context, branchID uint) (*customer.Customer, error) {
	cp := f.cust
	return &cp, nil
}

func (f *fakeCustomers) ListActive(ctx context.Context) ([]customer.Customer, error) {
	return []customer.Customer{f.cust}, nil
}

type noopLogs struct{}

func (noopLogs) Record(ctx context.Context, actorID uint, actorKind, module, action string, ok bool, payload map[string]interface{}, opErr error, ip string) {
}

func (noopLogs) List(ctx context.Context, filter activitylog.Filter) (*activitylog.PaginatedLogs, error) {
	return nil, nil
}

type recordingMail struct {
	jobs []mailer.Job
}

func (r *recordingMail) Dispatch(ctx context.Context, job mailer.Job) {
	r.jobs = append(r.jobs, job)
}

// ===============================
// notification derivation
// ===============================

func TestDeriveNotification(t *testing.T) {
	tests := []struct {
		name          string
		overallStatus string
		isVerify      string
		colorStatuses []string
		want          int
	}{
		{"completed verified", "completed", "yes", nil, EmailFinalReport},
		{"complete spelling verified", "Complete", "YES", nil, EmailFinalReport},
		{"completed unverified", "completed", "no", nil, EmailQCCheck},
		{"completed verify blank", "completed", "", nil, EmailNone},
		{"completed verify other", "completed", "maybe", nil, EmailNone},
		{"in review all annexures done", "in_review", "", []string{"completed_green", "completed_red"}, EmailReadyForReport},
		{"in review plain completed", "in_review", "", []string{"completed", "Completed_Yellow"}, EmailReadyForReport},
		{"in review one pending", "in_review", "", []string{"completed_green", "pending"}, EmailNone},
		{"in review blank status", "in_review", "", []string{"completed_green", ""}, EmailNone},
		{"in review no annexures", "in_review", "", nil, EmailNone},
		{"pending ignores verify flag", "pending", "yes", nil, EmailNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveNotification(tt.overallStatus, tt.isVerify, tt.colorStatuses)
			if got != tt.want {
				t.Fatalf("DeriveNotification(%q, %q, %v) = %d, want %d",
					tt.overallStatus, tt.isVerify, tt.colorStatuses, got, tt.want)
			}
		})
	}
}

func TestGenderTitle(t *testing.T) {
	tests := []struct {
		gender  string
		marital string
		want    string
	}{
		{"male", "married", "Mr."},
		{"Male", "", "Mr."},
		{"female", "married", "Mrs."},
		{"female", "single", "Ms."},
		{"female", "", "Ms."},
		{"", "", "Mx."},
		{"other", "married", "Mx."},
	}
	for _, tt := range tests {
		if got := GenderTitle(tt.gender, tt.marital); got != tt.want {
			t.Errorf("GenderTitle(%q, %q) = %q, want %q", tt.gender, tt.marital, got, tt.want)
		}
	}
}

func TestNormalizeServiceTable(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"address_verification", "address_verification", true},
		{"Address-Verification", "address_verification", true},
		{"  DRUG_TEST  ", "drug_test", true},
		{"credit-check", "credit_check", true},
		{"users", "", false},
		{"address_verification; DROP TABLE x", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeServiceTable(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NormalizeServiceTable(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

// ===============================
// report generation pipeline
// ===============================

func testApp() *clientapplication.ClientApplication {
	return &clientapplication.ClientApplication{
		ID:            10,
		ApplicationID: "ACME-BLR-5",
		BranchID:      3,
		CustomerID:    7,
		Name:          "Asha Rao",
	}
}

func testCustomer() customer.Customer {
	return customer.Customer{ID: 7, Name: "Acme Corp", ClientUniqueID: "ACME", Emails: "hr@acme.example"}
}

func newReportService(repo *fakeRepo, apps *fakeApplications, custs *fakeCustomers) (Service, *recordingMail) {
	mail := &recordingMail{}
	cfg := &config.Config{BackendURL: "https://api.bgv.example"}
	return NewService(repo, apps, custs, noopLogs{}, mail, cfg), mail
}

func TestGenerateReportCompletedVerifiedSendsFinalReport(t *testing.T) {
	repo := &fakeRepo{}
	apps := &fakeApplications{app: testApp()}
	svc, mail := newReportService(repo, apps, &fakeCustomers{cust: testCustomer()})

	result, err := svc.GenerateReport(context.Background(), GenerateReportInput{
		BranchID:      3,
		CustomerID:    7,
		ApplicationID: "ACME-BLR-5",
		UpdatedJSON: map[string]interface{}{
			"overall_status": "Completed",
			"is_verify":      "Yes",
			"gender":         "Female",
			"marital_status": "Married",
			"father_name":    "R Rao",
		},
		Annexures: []AnnexureInput{
			{ServiceTable: "address-verification", ColorStatus: "Completed_Green", Data: map[string]interface{}{"result": "clear"}},
		},
		SendMail: true,
	}, access.ActorAdmin, 1, "10.0.0.1")
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}

	if result.EmailCode != EmailFinalReport {
		t.Fatalf("email code = %d, want %d", result.EmailCode, EmailFinalReport)
	}
	if !result.MailQueued {
		t.Fatal("mail should be queued")
	}
	if result.CMT.GenderTitle != "Mrs." {
		t.Fatalf("gender title = %q", result.CMT.GenderTitle)
	}
	if result.CMT.OverallStatus != "completed" {
		t.Fatalf("overall status = %q", result.CMT.OverallStatus)
	}
	if apps.statusUpdate != "completed" {
		t.Fatalf("applicant status not synced, got %q", apps.statusUpdate)
	}
	if repo.upserts != 1 {
		t.Fatalf("upserts = %d", repo.upserts)
	}
	if len(repo.annexures) != 1 || repo.annexures[0].ServiceTable != "address_verification" {
		t.Fatalf("annexures = %+v", repo.annexures)
	}
	if repo.annexures[0].ColorStatus != "completed_green" {
		t.Fatalf("color status not lowercased: %q", repo.annexures[0].ColorStatus)
	}

	if len(mail.jobs) != 1 {
		t.Fatalf("mail jobs = %d", len(mail.jobs))
	}
	job := mail.jobs[0]
	if job.Module != "cmt" || job.Action != "final_report" {
		t.Fatalf("mail job %s/%s", job.Module, job.Action)
	}
	if job.Vars["gender_title"] != "Mrs." || job.Vars["application_id"] != "ACME-BLR-5" {
		t.Fatalf("mail vars = %v", job.Vars)
	}
}

func TestGenerateReportQCCheckOnUnverified(t *testing.T) {
	repo := &fakeRepo{}
	apps := &fakeApplications{app: testApp()}
	svc, mail := newReportService(repo, apps, &fakeCustomers{cust: testCustomer()})

	result, err := svc.GenerateReport(context.Background(), GenerateReportInput{
		ApplicationID: "ACME-BLR-5",
		UpdatedJSON:   map[string]interface{}{"overall_status": "completed", "is_verify": "no"},
		SendMail:      true,
	}, access.ActorAdmin, 1, "")
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if result.EmailCode != EmailQCCheck {
		t.Fatalf("email code = %d, want %d", result.EmailCode, EmailQCCheck)
	}
	if len(mail.jobs) != 1 || mail.jobs[0].Action != "qc_report_check" {
		t.Fatalf("mail jobs = %+v", mail.jobs)
	}
}

func TestGenerateReportUsesStoredAnnexuresWhenNoneSubmitted(t *testing.T) {
	repo := &fakeRepo{
		cmt: &CMTApplication{ID: 4, ApplicationID: "ACME-BLR-5"},
		annexures: []AnnexureRecord{
			{CMTApplicationID: 4, ServiceTable: "address_verification", ColorStatus: "completed_green"},
			{CMTApplicationID: 4, ServiceTable: "drug_test", ColorStatus: "completed_red"},
		},
	}
	apps := &fakeApplications{app: testApp()}
	svc, mail := newReportService(repo, apps, &fakeCustomers{cust: testCustomer()})

	result, err := svc.GenerateReport(context.Background(), GenerateReportInput{
		ApplicationID: "ACME-BLR-5",
		UpdatedJSON:   map[string]interface{}{"overall_status": "in_review"},
		SendMail:      true,
	}, access.ActorAdmin, 1, "")
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if result.EmailCode != EmailReadyForReport {
		t.Fatalf("email code = %d, want %d", result.EmailCode, EmailReadyForReport)
	}
	if len(mail.jobs) != 1 || mail.jobs[0].Action != "ready_for_report" {
		t.Fatalf("mail jobs = %+v", mail.jobs)
	}
}

func TestGenerateReportSuppressedMail(t *testing.T) {
	repo := &fakeRepo{}
	apps := &fakeApplications{app: testApp()}
	svc, mail := newReportService(repo, apps, &fakeCustomers{cust: testCustomer()})

	result, err := svc.GenerateReport(context.Background(), GenerateReportInput{
		ApplicationID: "ACME-BLR-5",
		UpdatedJSON:   map[string]interface{}{"overall_status": "completed", "is_verify": "yes"},
		SendMail:      false,
	}, access.ActorAdmin, 1, "")
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if result.EmailCode != EmailFinalReport {
		t.Fatalf("email code still derived even when suppressed, got %d", result.EmailCode)
	}
	if result.MailQueued || len(mail.jobs) != 0 {
		t.Fatal("no mail may go out when send_mail is false")
	}
}

func TestGenerateReportMailFailureDoesNotFail(t *testing.T) {
	repo := &fakeRepo{}
	apps := &fakeApplications{app: testApp()}
	// Customer with no contact emails makes the dispatch fail.
	svc, mail := newReportService(repo, apps, &fakeCustomers{cust: customer.Customer{ID: 7, Name: "Acme Corp"}})

	result, err := svc.GenerateReport(context.Background(), GenerateReportInput{
		ApplicationID: "ACME-BLR-5",
		UpdatedJSON:   map[string]interface{}{"overall_status": "completed", "is_verify": "yes"},
		SendMail:      true,
	}, access.ActorAdmin, 1, "")
	if err != nil {
		t.Fatalf("mail failure must not fail the report: %v", err)
	}
	if result.MailQueued {
		t.Fatal("mail cannot be queued without recipients")
	}
	if repo.upserts != 1 {
		t.Fatal("report data must still be written")
	}
	if len(mail.jobs) != 0 {
		t.Fatalf("mail jobs = %d", len(mail.jobs))
	}
}

func TestGenerateReportRejectsUnknownAnnexureTable(t *testing.T) {
	repo := &fakeRepo{}
	apps := &fakeApplications{app: testApp()}
	svc, _ := newReportService(repo, apps, &fakeCustomers{cust: testCustomer()})

	_, err := svc.GenerateReport(context.Background(), GenerateReportInput{
		ApplicationID: "ACME-BLR-5",
		UpdatedJSON:   map[string]interface{}{"overall_status": "in_review"},
		Annexures:     []AnnexureInput{{ServiceTable: "users", ColorStatus: "completed"}},
		SendMail:      true,
	}, access.ActorAdmin, 1, "")
	if !errors.Is(err, ErrUnknownAnnexureTable) {
		t.Fatalf("expected ErrUnknownAnnexureTable, got %v", err)
	}
	if repo.upserts != 0 {
		t.Fatal("nothing may be written for an unknown annexure table")
	}
}

func TestGenerateReportUnknownApplication(t *testing.T) {
	svc, _ := newReportService(&fakeRepo{}, &fakeApplications{}, &fakeCustomers{cust: testCustomer()})

	_, err := svc.GenerateReport(context.Background(), GenerateReportInput{
		ApplicationID: "NOPE-X-1",
		UpdatedJSON:   map[string]interface{}{},
		SendMail:      true,
	}, access.ActorAdmin, 1, "")
	if !errors.Is(err, clientapplication.ErrNotFound) {
		t.Fatalf("expected clientapplication.ErrNotFound, got %v", err)
	}
}

func TestBuildCMTFallsBackToApplicantName(t *testing.T) {
	app := testApp()
	cmt := buildCMT(app, GenerateReportInput{
		BranchID:    3,
		UpdatedJSON: map[string]interface{}{"overall_status": "pending", "father_name": "R Rao"},
	})
	if cmt.CandidateName != "Asha Rao" {
		t.Fatalf("candidate name = %q, want applicant name", cmt.CandidateName)
	}
	if cmt.GenderTitle != "Mx." {
		t.Fatalf("gender title = %q", cmt.GenderTitle)
	}
	if string(cmt.Extra) == "" || string(cmt.Extra) == "{}" {
		t.Fatalf("extra fields lost: %s", cmt.Extra)
	}
}

// ===============================
// aggregate fetch, emails, uploads
// ===============================

func TestApplicationByIDWithoutReport(t *testing.T) {
	apps := &fakeApplications{app: testApp()}
	svc, _ := newReportService(&fakeRepo{}, apps, &fakeCustomers{cust: testCustomer()})

	agg, err := svc.ApplicationByID(context.Background(), "ACME-BLR-5")
	if err != nil {
		t.Fatalf("ApplicationByID: %v", err)
	}
	if agg.Application == nil || agg.CMT != nil {
		t.Fatalf("expected applicant without tracker record, got %+v", agg)
	}
}

func TestAnnexureDataRejectsUnknownTable(t *testing.T) {
	repo := &fakeRepo{cmt: &CMTApplication{ID: 4, ApplicationID: "ACME-BLR-5"}}
	svc, _ := newReportService(repo, &fakeApplications{app: testApp()}, &fakeCustomers{cust: testCustomer()})

	if _, err := svc.AnnexureData(context.Background(), "ACME-BLR-5", "users"); !errors.Is(err, ErrAnnexureNotFound) {
		t.Fatalf("expected ErrAnnexureNotFound, got %v", err)
	}
}

func TestTriggerEmailDirect(t *testing.T) {
	repo := &fakeRepo{cmt: &CMTApplication{ID: 4, ApplicationID: "ACME-BLR-5", CustomerID: 7, CandidateName: "Asha Rao", GenderTitle: "Ms."}}
	svc, mail := newReportService(repo, &fakeApplications{app: testApp()}, &fakeCustomers{cust: testCustomer()})

	if err := svc.TriggerEmail(context.Background(), "ACME-BLR-5", EmailQCCheck); err != nil {
		t.Fatalf("TriggerEmail: %v", err)
	}
	if len(mail.jobs) != 1 || mail.jobs[0].Action != "qc_report_check" {
		t.Fatalf("mail jobs = %+v", mail.jobs)
	}

	if err := svc.TriggerEmail(context.Background(), "ACME-BLR-5", 9); err == nil {
		t.Fatal("expected error for unknown email code")
	}
}

func TestTriggerEmailAttachesUploadedDocuments(t *testing.T) {
	repo := &fakeRepo{cmt: &CMTApplication{
		ID:            4,
		ApplicationID: "ACME-BLR-5",
		CustomerID:    7,
		CandidateName: "Asha Rao",
		GenderTitle:   "Ms.",
		DocumentPaths: "customer_7/cmt/final_ab12.pdf, customer_7/cmt/annexure_cd34.pdf",
	}}
	svc, mail := newReportService(repo, &fakeApplications{app: testApp()}, &fakeCustomers{cust: testCustomer()})

	if err := svc.TriggerEmail(context.Background(), "ACME-BLR-5", EmailFinalReport); err != nil {
		t.Fatalf("TriggerEmail: %v", err)
	}
	if len(mail.jobs) != 1 {
		t.Fatalf("mail jobs = %d", len(mail.jobs))
	}

	want := []string{
		"https://api.bgv.example/uploads/customer_7/cmt/final_ab12.pdf",
		"https://api.bgv.example/uploads/customer_7/cmt/annexure_cd34.pdf",
	}
	got := mail.jobs[0].AttachmentURLs
	if len(got) != len(want) {
		t.Fatalf("attachment urls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("attachment url[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSaveUploadsAppendsPaths(t *testing.T) {
	repo := &fakeRepo{cmt: &CMTApplication{ID: 4, ApplicationID: "ACME-BLR-5", DocumentPaths: "a.pdf"}}
	svc, _ := newReportService(repo, &fakeApplications{app: testApp()}, &fakeCustomers{cust: testCustomer()})

	cmt, err := svc.SaveUploads(context.Background(), "ACME-BLR-5", []string{"b.pdf"})
	if err != nil {
		t.Fatalf("SaveUploads: %v", err)
	}
	if got := cmt.DocumentList(); len(got) != 2 || got[1] != "b.pdf" {
		t.Fatalf("documents = %v", got)
	}
}
