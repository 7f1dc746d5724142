package clientapplication

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sharath018/bgv-verification-backend/internal/access"
	"github.com/sharath018/bgv-verification-backend/internal/activitylog"
	"github.com/sharath018/bgv-verification-backend/internal/customer"
	"github.com/sharath018/bgv-verification-backend/internal/mailer"
)

// ===============================
// fakes
// ===============================

type fakeRepo struct {
	latest       string
	existing     map[string]bool // employee ids already persisted
	created      []ClientApplication
	batchCalls   int
	createCalls  int
	byID         map[uint]*ClientApplication
	updated      *ClientApplication
	deletedID    uint
	statusByID   map[uint]string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		existing:   map[string]bool{},
		byID:       map[uint]*ClientApplication{},
		statusByID: map[uint]string{},
	}
}

func (f *fakeRepo) Create(ctx context.Context, app *ClientApplication) error {
	f.createCalls++
	f.created = append(f.created, *app)
	return nil
}

func (f *fakeRepo) CreateBatch(ctx context.Context, apps []ClientApplication) error {
	f.batchCalls++
	f.created = append(f.created, apps...)
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uint) (*ClientApplication, error) {
	app, ok := f.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *app
	return &cp, nil
}

func (f *fakeRepo) FindByApplicationID(ctx context.Context, applicationID string) (*ClientApplication, error) {
	for _, app := range f.byID {
		if app.ApplicationID == applicationID {
			cp := *app
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) List(ctx context.Context, filter Filter) ([]ClientApplication, int64, error) {
	return nil, 0, nil
}

func (f *fakeRepo) Update(ctx context.Context, app *ClientApplication) error {
	if _, ok := f.byID[app.ID]; !ok {
		return ErrNotFound
	}
	cp := *app
	f.updated = &cp
	f.byID[app.ID] = &cp
	return nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, id uint, status string) error {
	if _, ok := f.byID[id]; !ok {
		return ErrNotFound
	}
	f.statusByID[id] = status
	return nil
}

func (f *fakeRepo) UpdateUploadPaths(ctx context.Context, id uint, photoPath, documentPaths string) error {
	app, ok := f.byID[id]
	if !ok {
		return ErrNotFound
	}
	if photoPath != "" {
		app.PhotoPath = photoPath
	}
	if documentPaths != "" {
		app.DocumentPaths = documentPaths
	}
	return nil
}

func (f *fakeRepo) DeleteCascade(ctx context.Context, id uint) error {
	if _, ok := f.byID[id]; !ok {
		return ErrNotFound
	}
	delete(f.byID, id)
	f.deletedID = id
	return nil
}

func (f *fakeRepo) LatestApplicationID(ctx context.Context, customerID uint) (string, error) {
	return f.latest, nil
}

func (f *fakeRepo) EmployeeIDExists(ctx context.Context, employeeID string, excludeID uint) (bool, error) {
	return f.existing[employeeID], nil
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

type countingLogs struct {
	records int
}

func (l *countingLogs) Record(ctx context.Context, actorID uint, actorKind, module, action string, ok bool, payload map[string]interface{}, opErr error, ip string) {
	l.records++
}

func (l *countingLogs) List(ctx context.Context, filter activitylog.Filter) (*activitylog.PaginatedLogs, error) {
	return nil, nil
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

func newTestService(repo *fakeRepo, custs *fakeCustomers) (Service, *recordingMail) {
	mail := &recordingMail{}
	return NewService(repo, custs, noopLogs{}, mail), mail
}

// ===============================
// application id sequencing
// ===============================

func TestNextApplicationID(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		latest string
		want   string
	}{
		{"no prior applications", "ACME", "", "ACME-1"},
		{"increments trailing number", "ACME", "ACME-HR-7", "ACME-HR-8"},
		{"two segments restarts", "ACME", "ACME-7", "ACME-1"},
		{"four segments restarts", "ACME", "ACME-HR-X-7", "ACME-1"},
		{"non-numeric tail restarts", "ACME", "ACME-HR-seven", "ACME-1"},
		{"prefix kept from latest not code", "NEWCO", "OLD-HR-3", "OLD-HR-4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextApplicationID(tt.code, tt.latest); got != tt.want {
				t.Fatalf("nextApplicationID(%q, %q) = %q, want %q", tt.code, tt.latest, got, tt.want)
			}
		})
	}
}

// ===============================
// create
// ===============================

func TestCreateGeneratesIDAndNotifies(t *testing.T) {
	repo := newFakeRepo()
	repo.latest = "ACME-BLR-4"
	custs := &fakeCustomers{cust: customer.Customer{
		ID:             7,
		ClientUniqueID: "ACME",
		Name:           "Acme Corp",
		Emails:         "hr@acme.example, ops@acme.example",
	}}
	svc, mail := newTestService(repo, custs)

	app, err := svc.Create(context.Background(), 3, ApplicantInput{
		Name:       "  Asha Rao ",
		EmployeeID: "E100",
		Location:   "Bangalore",
		Services:   []string{"address", "education"},
	}, access.ActorBranch, 3, "10.0.0.1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if app.ApplicationID != "ACME-BLR-5" {
		t.Fatalf("application id = %q, want ACME-BLR-5", app.ApplicationID)
	}
	if app.Name != "Asha Rao" {
		t.Fatalf("name not trimmed: %q", app.Name)
	}
	if app.OverallStatus != "pending" {
		t.Fatalf("overall status = %q, want pending", app.OverallStatus)
	}
	if app.Services != "address,education" {
		t.Fatalf("services = %q", app.Services)
	}

	if len(mail.jobs) != 1 {
		t.Fatalf("expected 1 mail job, got %d", len(mail.jobs))
	}
	job := mail.jobs[0]
	if job.Module != "client_application" || job.Action != "created" {
		t.Fatalf("unexpected mail job %s/%s", job.Module, job.Action)
	}
	if len(job.To) != 2 {
		t.Fatalf("expected both customer contacts, got %v", job.To)
	}
}

func TestCreateRejectsMissingFields(t *testing.T) {
	repo := newFakeRepo()
	svc, mail := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	_, err := svc.Create(context.Background(), 1, ApplicantInput{Name: "Only Name"}, access.ActorBranch, 1, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Missing) != 2 {
		t.Fatalf("missing = %v, want employee id and location", verr.Missing)
	}
	if repo.createCalls != 0 {
		t.Fatal("nothing should be persisted on validation failure")
	}
	if len(mail.jobs) != 0 {
		t.Fatal("no mail on failure")
	}
}

func TestCreateRejectsDuplicateEmployeeID(t *testing.T) {
	repo := newFakeRepo()
	repo.existing["E100"] = true
	svc, _ := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	_, err := svc.Create(context.Background(), 1, ApplicantInput{
		Name: "A", EmployeeID: "E100", Location: "Pune",
	}, access.ActorBranch, 1, "")
	if !errors.Is(err, ErrEmployeeIDExists) {
		t.Fatalf("expected ErrEmployeeIDExists, got %v", err)
	}
}

// ===============================
// bulk create
// ===============================

func TestBulkCreateSequencesIDsAndDropsBlankRows(t *testing.T) {
	repo := newFakeRepo()
	repo.latest = "ACME-BLR-9"
	custs := &fakeCustomers{cust: customer.Customer{ID: 7, ClientUniqueID: "ACME", Emails: "hr@acme.example"}}
	svc, mail := newTestService(repo, custs)

	rows := []ApplicantInput{
		{Name: "One", EmployeeID: "E1", Location: "Pune"},
		{}, // fully blank, dropped
		{Name: "Two", EmployeeID: "E2", Location: "Pune"},
	}
	apps, err := svc.BulkCreate(context.Background(), 3, rows, access.ActorBranch, 3, "")
	if err != nil {
		t.Fatalf("BulkCreate: %v", err)
	}
	if len(apps) != 2 {
		t.Fatalf("created %d rows, want 2", len(apps))
	}
	if apps[0].ApplicationID != "ACME-BLR-10" || apps[1].ApplicationID != "ACME-BLR-11" {
		t.Fatalf("ids = %q, %q", apps[0].ApplicationID, apps[1].ApplicationID)
	}
	if repo.batchCalls != 1 {
		t.Fatalf("batchCalls = %d", repo.batchCalls)
	}
	if len(mail.jobs) != 1 {
		t.Fatalf("expected one aggregate mail, got %d", len(mail.jobs))
	}
}

func TestBulkCreateRejectsWholeBatchNamingApplicant(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	rows := []ApplicantInput{
		{Name: "One", EmployeeID: "E1", Location: "Pune"},
		{Name: "Two", Location: "Pune"}, // missing employee id
	}
	_, err := svc.BulkCreate(context.Background(), 1, rows, access.ActorBranch, 1, "")

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	found := false
	for _, m := range verr.Missing {
		if strings.Contains(m, "applicant #2") && strings.Contains(m, "employee id") {
			found = true
		}
	}
	if !found {
		t.Fatalf("error should name applicant #2's employee id: %v", verr.Missing)
	}
	if repo.batchCalls != 0 || len(repo.created) != 0 {
		t.Fatal("nothing may be persisted when the batch is rejected")
	}
}

func TestBulkCreateRejectsInBatchDuplicates(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	rows := []ApplicantInput{
		{Name: "One", EmployeeID: "E1", Location: "Pune"},
		{Name: "Two", EmployeeID: "E1", Location: "Pune"},
	}
	_, err := svc.BulkCreate(context.Background(), 1, rows, access.ActorBranch, 1, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if repo.batchCalls != 0 {
		t.Fatal("duplicate employee ids must reject the whole batch")
	}
}

func TestBulkCreateRejectsExistingEmployeeID(t *testing.T) {
	repo := newFakeRepo()
	repo.existing["E2"] = true
	svc, _ := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	rows := []ApplicantInput{
		{Name: "One", EmployeeID: "E1", Location: "Pune"},
		{Name: "Two", EmployeeID: "E2", Location: "Pune"},
	}
	_, err := svc.BulkCreate(context.Background(), 1, rows, access.ActorBranch, 1, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if repo.batchCalls != 0 {
		t.Fatal("existing employee id must reject the whole batch")
	}
}

func TestBulkCreateAllBlankRows(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	_, err := svc.BulkCreate(context.Background(), 1, []ApplicantInput{{}, {}}, access.ActorBranch, 1, "")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// ===============================
// update
// ===============================

func TestUpdateChecksEmployeeIDOnlyWhenChanged(t *testing.T) {
	repo := newFakeRepo()
	repo.existing["E1"] = true // own id is already stored
	repo.byID[5] = &ClientApplication{ID: 5, ApplicationID: "C-X-1", Name: "Old", EmployeeID: "E1", Location: "Pune"}
	svc, _ := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	app, err := svc.Update(context.Background(), 5, ApplicantInput{
		Name: "New Name", EmployeeID: "E1", Location: "Pune",
	}, access.ActorBranch, 1, "")
	if err != nil {
		t.Fatalf("Update with unchanged employee id: %v", err)
	}
	if app.Name != "New Name" {
		t.Fatalf("name = %q", app.Name)
	}

	repo.existing["E9"] = true
	_, err = svc.Update(context.Background(), 5, ApplicantInput{
		Name: "New Name", EmployeeID: "E9", Location: "Pune",
	}, access.ActorBranch, 1, "")
	if !errors.Is(err, ErrEmployeeIDExists) {
		t.Fatalf("expected ErrEmployeeIDExists on collision, got %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	_, err := svc.Update(context.Background(), 99, ApplicantInput{
		Name: "X", EmployeeID: "E1", Location: "Pune",
	}, access.ActorBranch, 1, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDiffApplicationsRecordsChangedFieldsOnly(t *testing.T) {
	prior := &ClientApplication{Name: "A", EmployeeID: "E1", Location: "Pune", SpocID: 1}
	next := &ClientApplication{Name: "B", EmployeeID: "E1", Location: "Pune", SpocID: 2}

	diff := diffApplications(prior, next)
	if len(diff) != 2 {
		t.Fatalf("diff = %v, want name and spoc_id only", diff)
	}
	if _, ok := diff["name"]; !ok {
		t.Fatalf("diff missing name: %v", diff)
	}
	if _, ok := diff["spoc_id"]; !ok {
		t.Fatalf("diff missing spoc_id: %v", diff)
	}
}

// ===============================
// status, delete, uploads
// ===============================

func TestUpdateStatusNormalizes(t *testing.T) {
	repo := newFakeRepo()
	repo.byID[5] = &ClientApplication{ID: 5}
	svc, _ := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	if err := svc.UpdateStatus(context.Background(), 5, "  Completed ", access.ActorAdmin, 1, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if got := repo.statusByID[5]; got != "completed" {
		t.Fatalf("stored status = %q, want completed", got)
	}
}

func TestUpdateStatusRepeatIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	repo.byID[5] = &ClientApplication{ID: 5}
	logs := &countingLogs{}
	svc := NewService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}}, logs, &recordingMail{})

	if err := svc.UpdateStatus(context.Background(), 5, "completed", access.ActorAdmin, 1, ""); err != nil {
		t.Fatalf("first UpdateStatus: %v", err)
	}
	if err := svc.UpdateStatus(context.Background(), 5, "completed", access.ActorAdmin, 1, ""); err != nil {
		t.Fatalf("second UpdateStatus: %v", err)
	}

	if got := repo.statusByID[5]; got != "completed" {
		t.Fatalf("stored status = %q, want completed", got)
	}
	// One audit row per call, nothing beyond the two invocations.
	if logs.records != 2 {
		t.Fatalf("audit records = %d, want 2", logs.records)
	}
}

func TestDelete(t *testing.T) {
	repo := newFakeRepo()
	repo.byID[5] = &ClientApplication{ID: 5, ApplicationID: "C-X-1"}
	svc, _ := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	if err := svc.Delete(context.Background(), 5, access.ActorAdmin, 1, ""); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if repo.deletedID != 5 {
		t.Fatalf("deletedID = %d", repo.deletedID)
	}
	if err := svc.Delete(context.Background(), 5, access.ActorAdmin, 1, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSaveUploadsAppendsDocuments(t *testing.T) {
	repo := newFakeRepo()
	repo.byID[5] = &ClientApplication{ID: 5, DocumentPaths: "a.pdf"}
	svc, _ := newTestService(repo, &fakeCustomers{cust: customer.Customer{ID: 1, ClientUniqueID: "C"}})

	app, err := svc.SaveUploads(context.Background(), 5, "photo.jpg", []string{"b.pdf", "c.pdf"})
	if err != nil {
		t.Fatalf("SaveUploads: %v", err)
	}
	if app.PhotoPath != "photo.jpg" {
		t.Fatalf("photo path = %q", app.PhotoPath)
	}
	if got := app.DocumentList(); len(got) != 3 || got[0] != "a.pdf" || got[2] != "c.pdf" {
		t.Fatalf("documents = %v", got)
	}
}
