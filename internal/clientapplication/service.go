package clientapplication

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sharath018/bgv-verification-backend/internal/access"
	"github.com/sharath018/bgv-verification-backend/internal/activitylog"
	"github.com/sharath018/bgv-verification-backend/internal/customer"
	"github.com/sharath018/bgv-verification-backend/internal/mailer"
)

var ErrEmployeeIDExists = errors.New("employee id already exists")

// ValidationError lists every missing field by human-readable name.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

// ApplicantInput is one applicant row as submitted by a branch.
type ApplicantInput struct {
	Name       string   `json:"name"`
	EmployeeID string   `json:"employee_id"`
	Location   string   `json:"location"`
	Mobile     string   `json:"mobile"`
	Email      string   `json:"email"`
	SpocID     uint     `json:"spoc_id"`
	Services   []string `json:"services"`
	Package    string   `json:"package"`
}

type Service interface {
	GenerateApplicationID(ctx context.Context, branchID uint) (string, error)
	Create(ctx context.Context, branchID uint, in ApplicantInput, actorKind access.ActorKind, actorID uint, ip string) (*ClientApplication, error)
	BulkCreate(ctx context.Context, branchID uint, rows []ApplicantInput, actorKind access.ActorKind, actorID uint, ip string) ([]ClientApplication, error)
	List(ctx context.Context, filter Filter) (*PaginatedApplications, error)
	Get(ctx context.Context, id uint) (*ClientApplication, error)
	Update(ctx context.Context, id uint, in ApplicantInput, actorKind access.ActorKind, actorID uint, ip string) (*ClientApplication, error)
	UpdateStatus(ctx context.Context, id uint, status string, actorKind access.ActorKind, actorID uint, ip string) error
	Delete(ctx context.Context, id uint, actorKind access.ActorKind, actorID uint, ip string) error
	SaveUploads(ctx context.Context, id uint, photoPath string, documentPaths []string) (*ClientApplication, error)
}

type service struct {
	repo      Repository
	customers customer.Repository
	logs      activitylog.Service
	mail      mailer.Dispatcher
}

func NewService(repo Repository, customers customer.Repository, logs activitylog.Service, mail mailer.Dispatcher) Service {
	return &service{repo: repo, customers: customers, logs: logs, mail: mail}
}

// GenerateApplicationID derives the next id for the branch's customer. Ids
// carry the customer's client code as prefix; the trailing numeric segment
// increments when the latest id splits into exactly three dash segments,
// anything else restarts the sequence at {code}-1.
func (s *service) GenerateApplicationID(ctx context.Context, branchID uint) (string, error) {
	cust, err := s.customers.FindByBranchID(ctx, branchID)
	if err != nil {
		return "", err
	}

	latest, err := s.repo.LatestApplicationID(ctx, cust.ID)
	if err != nil {
		return "", err
	}
	return nextApplicationID(cust.ClientUniqueID, latest), nil
}

func nextApplicationID(code, latest string) string {
	if latest == "" {
		return code + "-1"
	}
	parts := strings.Split(latest, "-")
	if len(parts) != 3 {
		return code + "-1"
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil {
		return code + "-1"
	}
	return fmt.Sprintf("%s-%s-%d", parts[0], parts[1], n+1)
}

func (s *service) Create(ctx context.Context, branchID uint, in ApplicantInput, actorKind access.ActorKind, actorID uint, ip string) (*ClientApplication, error) {
	app, err := s.create(ctx, branchID, in)

	payload := map[string]interface{}{"name": in.Name, "employee_id": in.EmployeeID}
	if app != nil {
		payload["application_id"] = app.ApplicationID
	}
	s.logs.Record(ctx, actorID, string(actorKind), "client_application", "create", err == nil, payload, err, ip)

	if err == nil {
		s.notifyCreated(ctx, app.CustomerID, []ClientApplication{*app})
	}
	return app, err
}

func (s *service) create(ctx context.Context, branchID uint, in ApplicantInput) (*ClientApplication, error) {
	if missing := missingFields(in); len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	// Pre-check is best-effort under concurrency; the unique index on
	// employee_id is the real guard.
	exists, err := s.repo.EmployeeIDExists(ctx, in.EmployeeID, 0)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmployeeIDExists
	}

	cust, err := s.customers.FindByBranchID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.LatestApplicationID(ctx, cust.ID)
	if err != nil {
		return nil, err
	}

	app := buildApplication(branchID, cust.ID, nextApplicationID(cust.ClientUniqueID, latest), in)
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// BulkCreate persists a batch all-or-nothing. Rows where name, employee id
// and location are all blank are dropped; any remaining row missing a
// required field, or any employee id collision (within the batch or against
// existing rows), rejects the whole batch with nothing persisted.
func (s *service) BulkCreate(ctx context.Context, branchID uint, rows []ApplicantInput, actorKind access.ActorKind, actorID uint, ip string) ([]ClientApplication, error) {
	apps, err := s.bulkCreate(ctx, branchID, rows)

	s.logs.Record(ctx, actorID, string(actorKind), "client_application", "bulk_create", err == nil,
		map[string]interface{}{"submitted": len(rows), "created": len(apps)}, err, ip)

	if err == nil && len(apps) > 0 {
		s.notifyCreated(ctx, apps[0].CustomerID, apps)
	}
	return apps, err
}

func (s *service) bulkCreate(ctx context.Context, branchID uint, rows []ApplicantInput) ([]ClientApplication, error) {
	type numbered struct {
		idx int // 1-based position in the submitted batch
		in  ApplicantInput
	}

	var kept []numbered
	for i, row := range rows {
		if strings.TrimSpace(row.Name) == "" &&
			strings.TrimSpace(row.EmployeeID) == "" &&
			strings.TrimSpace(row.Location) == "" {
			continue
		}
		kept = append(kept, numbered{idx: i + 1, in: row})
	}
	if len(kept) == 0 {
		return nil, &ValidationError{Missing: []string{"at least one applicant"}}
	}

	var missing []string
	seen := map[string]int{}
	for _, row := range kept {
		for _, field := range missingFields(row.in) {
			missing = append(missing, fmt.Sprintf("applicant #%d: %s", row.idx, field))
		}
		empID := strings.TrimSpace(row.in.EmployeeID)
		if empID == "" {
			continue
		}
		if prev, dup := seen[empID]; dup {
			missing = append(missing, fmt.Sprintf("applicant #%d: employee id duplicates applicant #%d", row.idx, prev))
			continue
		}
		seen[empID] = row.idx

		exists, err := s.repo.EmployeeIDExists(ctx, empID, 0)
		if err != nil {
			return nil, err
		}
		if exists {
			missing = append(missing, fmt.Sprintf("applicant #%d: employee id %q already exists", row.idx, empID))
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	cust, err := s.customers.FindByBranchID(ctx, branchID)
	if err != nil {
		return nil, err
	}
	latest, err := s.repo.LatestApplicationID(ctx, cust.ID)
	if err != nil {
		return nil, err
	}

	apps := make([]ClientApplication, 0, len(kept))
	for _, row := range kept {
		latest = nextApplicationID(cust.ClientUniqueID, latest)
		apps = append(apps, *buildApplication(branchID, cust.ID, latest, row.in))
	}
	if err := s.repo.CreateBatch(ctx, apps); err != nil {
		return nil, err
	}
	return apps, nil
}

func missingFields(in ApplicantInput) []string {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.EmployeeID) == "" {
		missing = append(missing, "employee id")
	}
	if strings.TrimSpace(in.Location) == "" {
		missing = append(missing, "location")
	}
	return missing
}

func buildApplication(branchID, customerID uint, applicationID string, in ApplicantInput) *ClientApplication {
	return &ClientApplication{
		ApplicationID: applicationID,
		BranchID:      branchID,
		CustomerID:    customerID,
		Name:          strings.TrimSpace(in.Name),
		EmployeeID:    strings.TrimSpace(in.EmployeeID),
		Location:      strings.TrimSpace(in.Location),
		Mobile:        strings.TrimSpace(in.Mobile),
		Email:         strings.TrimSpace(in.Email),
		SpocID:        in.SpocID,
		Services:      strings.Join(in.Services, ","),
		Package:       in.Package,
		OverallStatus: "pending",
	}
}

// notifyCreated fans out one aggregate email per create/bulk-create to the
// customer's contact list. Delivery is fire-and-forget.
func (s *service) notifyCreated(ctx context.Context, customerID uint, apps []ClientApplication) {
	cust, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return
	}
	to := cust.EmailList()
	if len(to) == 0 {
		return
	}

	names := make([]string, 0, len(apps))
	for _, a := range apps {
		names = append(names, fmt.Sprintf("%s (%s)", a.Name, a.ApplicationID))
	}
	s.mail.Dispatch(ctx, mailer.Job{
		Module: "client_application",
		Action: "created",
		Vars: map[string]string{
			"customer_name": cust.Name,
			"applicants":    strings.Join(names, ", "),
			"count":         strconv.Itoa(len(apps)),
		},
		To: to,
	})
}

func (s *service) Get(ctx context.Context, id uint) (*ClientApplication, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) (*PaginatedApplications, error) {
	apps, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	totalPages := 0
	if filter.Limit > 0 {
		totalPages = int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	}
	return &PaginatedApplications{
		Data:       apps,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}, nil
}

// Update is a full-column overwrite. The prior row is diffed field by field
// so the audit entry records what actually changed.
func (s *service) Update(ctx context.Context, id uint, in ApplicantInput, actorKind access.ActorKind, actorID uint, ip string) (*ClientApplication, error) {
	app, diff, err := s.update(ctx, id, in)
	s.logs.Record(ctx, actorID, string(actorKind), "client_application", "update", err == nil,
		map[string]interface{}{"id": id, "changes": diff}, err, ip)
	return app, err
}

func (s *service) update(ctx context.Context, id uint, in ApplicantInput) (*ClientApplication, map[string]interface{}, error) {
	if missing := missingFields(in); len(missing) > 0 {
		return nil, nil, &ValidationError{Missing: missing}
	}

	prior, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if in.EmployeeID != prior.EmployeeID {
		exists, err := s.repo.EmployeeIDExists(ctx, in.EmployeeID, id)
		if err != nil {
			return nil, nil, err
		}
		if exists {
			return nil, nil, ErrEmployeeIDExists
		}
	}

	next := *prior
	next.Name = strings.TrimSpace(in.Name)
	next.EmployeeID = strings.TrimSpace(in.EmployeeID)
	next.Location = strings.TrimSpace(in.Location)
	next.Mobile = strings.TrimSpace(in.Mobile)
	next.Email = strings.TrimSpace(in.Email)
	next.SpocID = in.SpocID
	next.Services = strings.Join(in.Services, ",")
	next.Package = in.Package

	diff := diffApplications(prior, &next)
	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, diff, err
	}
	return &next, diff, nil
}

func diffApplications(prior, next *ClientApplication) map[string]interface{} {
	diff := map[string]interface{}{}
	add := func(field, from, to string) {
		if from != to {
			diff[field] = map[string]string{"from": from, "to": to}
		}
	}
	add("name", prior.Name, next.Name)
	add("employee_id", prior.EmployeeID, next.EmployeeID)
	add("location", prior.Location, next.Location)
	add("mobile", prior.Mobile, next.Mobile)
	add("email", prior.Email, next.Email)
	add("services", prior.Services, next.Services)
	add("package", prior.Package, next.Package)
	if prior.SpocID != next.SpocID {
		diff["spoc_id"] = map[string]uint{"from": prior.SpocID, "to": next.SpocID}
	}
	return diff
}

func (s *service) UpdateStatus(ctx context.Context, id uint, status string, actorKind access.ActorKind, actorID uint, ip string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	err := s.repo.UpdateStatus(ctx, id, status)
	s.logs.Record(ctx, actorID, string(actorKind), "client_application", "update_status", err == nil,
		map[string]interface{}{"id": id, "status": status}, err, ip)
	return err
}

func (s *service) Delete(ctx context.Context, id uint, actorKind access.ActorKind, actorID uint, ip string) error {
	err := s.repo.DeleteCascade(ctx, id)
	s.logs.Record(ctx, actorID, string(actorKind), "client_application", "delete", err == nil,
		map[string]interface{}{"id": id}, err, ip)
	return err
}

func (s *service) SaveUploads(ctx context.Context, id uint, photoPath string, documentPaths []string) (*ClientApplication, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	docs := app.DocumentList()
	docs = append(docs, documentPaths...)
	if err := s.repo.UpdateUploadPaths(ctx, id, photoPath, strings.Join(docs, ",")); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}
