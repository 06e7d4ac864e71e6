package services

import (
	"context"
	"errors"
	"fmt"
	"solar-workflow-api/models"
	"solar-workflow-api/store"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SeedOptions controls Seed.
type SeedOptions struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
	DemoClients   int
}

// SeedReport summarises a seed run.
type SeedReport struct {
	AdminCreated   bool    `json:"admin_created"`
	ClientsCreated int     `json:"clients_created"`
	Errors         []error `json:"-"`
}

// FixReport summarises a back-fill over clients, steps and sub-steps.
type FixReport struct {
	Updated       int      `json:"updated"`
	Skipped       int      `json:"skipped"`
	Failed        int      `json:"failed"`
	Discrepancies []string `json:"discrepancies"`
}

// MaintenanceService runs the operator tasks behind solarctl.
type MaintenanceService struct {
	store   *store.Store
	db      *gorm.DB
	users   *UserService
	clients *ClientService
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewMaintenanceService builds the service. db is nil for the Firestore
// backend, where collections need no provisioning.
func NewMaintenanceService(st *store.Store, db *gorm.DB, users *UserService, clients *ClientService, log logrus.FieldLogger) *MaintenanceService {
	return &MaintenanceService{store: st, db: db, users: users, clients: clients, log: log, now: time.Now}
}

// CreateTables creates or migrates every table.
func (s *MaintenanceService) CreateTables() error {
	if s.db == nil {
		s.log.Info("firestore backend: collections are created on first write")
		return nil
	}
	if err := store.Migrate(s.db); err != nil {
		return err
	}
	s.log.WithField("tables", len(store.AllModels())).Info("tables ready")
	return nil
}

// DropTables removes every table.
func (s *MaintenanceService) DropTables() error {
	if s.db == nil {
		s.log.Info("firestore backend: nothing to drop, use cleanup instead")
		return nil
	}
	if err := store.DropAll(s.db); err != nil {
		return err
	}
	s.log.Info("tables dropped")
	return nil
}

// Cleanup deletes every record of every collection and reports the counts.
func (s *MaintenanceService) Cleanup(ctx context.Context) (map[string]int64, error) {
	steps := []struct {
		name string
		del  func() (int64, error)
	}{
		{"follow_ups", func() (int64, error) { return s.store.FollowUps.DeleteWhere(ctx) }},
		{"step5_data", func() (int64, error) { return s.store.Step5.DeleteWhere(ctx) }},
		{"step4_data", func() (int64, error) { return s.store.Step4.DeleteWhere(ctx) }},
		{"step3_data", func() (int64, error) { return s.store.Step3.DeleteWhere(ctx) }},
		{"step2_data", func() (int64, error) { return s.store.Step2.DeleteWhere(ctx) }},
		{"step1_data", func() (int64, error) { return s.store.Step1.DeleteWhere(ctx) }},
		{"expenses", func() (int64, error) { return s.store.Expenses.DeleteWhere(ctx) }},
		{"payment_logs", func() (int64, error) { return s.store.Payments.DeleteWhere(ctx) }},
		{"gps_images", func() (int64, error) { return s.store.GpsImages.DeleteWhere(ctx) }},
		{"document_files", func() (int64, error) { return s.store.Documents.DeleteWhere(ctx) }},
		{"client_sub_steps", func() (int64, error) { return s.store.SubSteps.DeleteWhere(ctx) }},
		{"client_steps", func() (int64, error) { return s.store.Steps.DeleteWhere(ctx) }},
		{"clients", func() (int64, error) { return s.store.Clients.DeleteWhere(ctx) }},
		{"phone_numbers", func() (int64, error) { return s.store.PhoneNumbers.DeleteWhere(ctx) }},
	}
	removed := make(map[string]int64, len(steps))
	var errs []error
	for _, step := range steps {
		n, err := step.del()
		removed[step.name] = n
		if err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", step.name, err))
			continue
		}
		s.log.WithFields(logrus.Fields{"collection": step.name, "removed": n}).Info("cleanup")
	}
	return removed, errors.Join(errs...)
}

var demoClients = []ClientInput{
	{Name: "Anil Sharma", Mobile: "+919812345670", City: "Jaipur", Address: "12 MI Road"},
	{Name: "Priya Nair", Mobile: "+919845012345", City: "Kochi", Address: "4 Marine Drive"},
	{Name: "Rahul Verma", Mobile: "+919911223344", City: "Lucknow", Address: "88 Hazratganj"},
	{Name: "Sunita Patil", Mobile: "+919822334455", City: "Pune", Address: "7 FC Road"},
	{Name: "Vikram Singh", Mobile: "+919876501234", City: "Chandigarh", Address: "Sector 17"},
}

// Seed creates the admin account and up to DemoClients demo clients
// assigned to it. Existing admin accounts are reused.
func (s *MaintenanceService) Seed(ctx context.Context, opts SeedOptions) (*SeedReport, error) {
	if opts.AdminEmail == "" || opts.AdminPassword == "" {
		return nil, invalid("admin_email", "admin e-mail and password are required")
	}
	name := opts.AdminName
	if name == "" {
		name = "Administrator"
	}
	admin, created, err := s.users.EnsureUser(ctx, UserInput{
		Name:     name,
		Email:    opts.AdminEmail,
		Password: opts.AdminPassword,
		Role:     models.RoleAdmin,
	})
	if err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	report := &SeedReport{AdminCreated: created}

	n := opts.DemoClients
	if n > len(demoClients) {
		n = len(demoClients)
	}
	for _, in := range demoClients[:n] {
		in.AssignedTo = admin.ID
		if _, err := s.clients.CreateClient(ctx, in, admin.ID); err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("seed client %s: %w", in.Name, err))
			continue
		}
		report.ClientsCreated++
	}
	s.log.WithFields(logrus.Fields{"admin_created": created, "clients": report.ClientsCreated}).Info("seed finished")
	return report, errors.Join(report.Errors...)
}

// FixAssignments assigns defaultUser to every client, step and sub-step with
// an empty assignee. Each write is conditional on the assignee still being
// empty, so records assigned concurrently are skipped. With dryRun nothing is
// written. Clients whose steps end up assigned to someone other than the
// client's assignee are listed as discrepancies.
func (s *MaintenanceService) FixAssignments(ctx context.Context, defaultUser string, dryRun bool) (*FixReport, error) {
	if _, err := s.store.Users.Get(ctx, defaultUser); err != nil {
		return nil, notFound("user", defaultUser, err)
	}
	report := &FixReport{}
	cond := store.Eq("assigned_to", "")
	updates := func() map[string]any {
		return map[string]any{"assigned_to": defaultUser, "updated_at": s.now()}
	}
	apply := func(kind, id string, update func() error) {
		if dryRun {
			report.Updated++
			return
		}
		switch err := update(); {
		case err == nil:
			report.Updated++
		case errors.Is(err, store.ErrConditionFailed):
			report.Skipped++
		default:
			report.Failed++
			s.log.WithError(err).WithFields(logrus.Fields{"kind": kind, "id": id}).Error("fix assignment")
		}
	}

	clients, err := s.store.Clients.Find(ctx, store.Query{})
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	owners := make(map[string]string, len(clients))
	for _, c := range clients {
		owners[c.ID] = c.AssignedTo
		if c.AssignedTo != "" {
			continue
		}
		owners[c.ID] = defaultUser
		apply("client", c.ID, func() error { return s.store.Clients.UpdateIf(ctx, c.ID, cond, updates()) })
	}

	steps, err := s.store.Steps.Find(ctx, store.Query{})
	if err != nil {
		return report, fmt.Errorf("list steps: %w", err)
	}
	mismatched := map[string]bool{}
	for _, st := range steps {
		assignee := st.AssignedTo
		if assignee == "" {
			assignee = defaultUser
			apply("step", st.ID, func() error { return s.store.Steps.UpdateIf(ctx, st.ID, cond, updates()) })
		}
		if owner, ok := owners[st.ClientID]; !ok {
			report.Discrepancies = append(report.Discrepancies, fmt.Sprintf("step %s references missing client %s", st.ID, st.ClientID))
		} else if owner != assignee && !mismatched[st.ClientID] {
			mismatched[st.ClientID] = true
			report.Discrepancies = append(report.Discrepancies, fmt.Sprintf("client %s is assigned to %s but step %d is assigned to %s", st.ClientID, owner, st.StepNumber, assignee))
		}
	}

	subs, err := s.store.SubSteps.Find(ctx, store.Query{})
	if err != nil {
		return report, fmt.Errorf("list sub-steps: %w", err)
	}
	for _, sub := range subs {
		if sub.AssignedTo != "" {
			continue
		}
		apply("sub_step", sub.ID, func() error { return s.store.SubSteps.UpdateIf(ctx, sub.ID, cond, updates()) })
	}

	s.log.WithFields(logrus.Fields{
		"updated": report.Updated, "skipped": report.Skipped, "failed": report.Failed,
		"discrepancies": len(report.Discrepancies), "dry_run": dryRun,
	}).Info("fix assignments finished")
	return report, nil
}

// FixLegacyOverdue rewrites stored "overdue" statuses to in-progress. The
// overdue flag is derived from due dates, so nothing else changes.
func (s *MaintenanceService) FixLegacyOverdue(ctx context.Context) (*FixReport, error) {
	report := &FixReport{}
	legacy := store.Eq("status", models.StepStatusOverdue)
	record := func(kind, id string, err error) {
		switch {
		case err == nil:
			report.Updated++
		case errors.Is(err, store.ErrConditionFailed):
			report.Skipped++
		default:
			report.Failed++
			s.log.WithError(err).WithFields(logrus.Fields{"kind": kind, "id": id}).Error("fix legacy status")
		}
	}
	updates := map[string]any{"status": models.StepStatusInProgress, "updated_at": s.now()}

	steps, err := s.store.Steps.Find(ctx, store.Where(legacy))
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	for _, st := range steps {
		record("step", st.ID, s.store.Steps.UpdateIf(ctx, st.ID, legacy, updates))
	}
	subs, err := s.store.SubSteps.Find(ctx, store.Where(legacy))
	if err != nil {
		return report, fmt.Errorf("list sub-steps: %w", err)
	}
	for _, sub := range subs {
		record("sub_step", sub.ID, s.store.SubSteps.UpdateIf(ctx, sub.ID, legacy, updates))
	}
	s.log.WithFields(logrus.Fields{"updated": report.Updated, "skipped": report.Skipped, "failed": report.Failed}).Info("fix legacy statuses finished")
	return report, nil
}
