// Package memory holds map-backed repositories used by service and handler tests.
// WithinTx snapshots the whole store and restores it when fn fails, so rollback
// behaviour can be asserted without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/referral-api/internal/model"
	"github.com/jwalitptl/referral-api/internal/repository"
)

type tables struct {
	users      map[int64]model.User
	roles      map[int64]model.Role
	userRoles  map[int64][]int64
	supervises map[int64][]int64
	patients   map[string]model.Patient
	readings   map[string]model.Reading
	referrals  map[int64]model.Referral
	followUps  map[int64]model.FollowUp
	facilities map[string]bool
	villages   map[string]model.Village
	audit      []model.AuditLog
	outbox     []model.OutboxEvent
	nextID     int64
}

func (t *tables) clone() *tables {
	c := &tables{
		users:      make(map[int64]model.User, len(t.users)),
		roles:      make(map[int64]model.Role, len(t.roles)),
		userRoles:  make(map[int64][]int64, len(t.userRoles)),
		supervises: make(map[int64][]int64, len(t.supervises)),
		patients:   make(map[string]model.Patient, len(t.patients)),
		readings:   make(map[string]model.Reading, len(t.readings)),
		referrals:  make(map[int64]model.Referral, len(t.referrals)),
		followUps:  make(map[int64]model.FollowUp, len(t.followUps)),
		facilities: make(map[string]bool, len(t.facilities)),
		villages:   make(map[string]model.Village, len(t.villages)),
		audit:      append([]model.AuditLog(nil), t.audit...),
		outbox:     append([]model.OutboxEvent(nil), t.outbox...),
		nextID:     t.nextID,
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.roles {
		c.roles[k] = v
	}
	for k, v := range t.userRoles {
		c.userRoles[k] = append([]int64(nil), v...)
	}
	for k, v := range t.supervises {
		c.supervises[k] = append([]int64(nil), v...)
	}
	for k, v := range t.patients {
		c.patients[k] = v
	}
	for k, v := range t.readings {
		c.readings[k] = v
	}
	for k, v := range t.referrals {
		c.referrals[k] = v
	}
	for k, v := range t.followUps {
		c.followUps[k] = v
	}
	for k, v := range t.facilities {
		c.facilities[k] = v
	}
	for k, v := range t.villages {
		c.villages[k] = v
	}
	return c
}

// Store is an in-memory database shared by the repositories it hands out.
type Store struct {
	mu sync.Mutex
	t  *tables
}

// NewStore returns an empty store with the four roles seeded as ids 1-4.
func NewStore() *Store {
	t := &tables{
		users:      map[int64]model.User{},
		roles:      map[int64]model.Role{},
		userRoles:  map[int64][]int64{},
		supervises: map[int64][]int64{},
		patients:   map[string]model.Patient{},
		readings:   map[string]model.Reading{},
		referrals:  map[int64]model.Referral{},
		followUps:  map[int64]model.FollowUp{},
		facilities: map[string]bool{},
		villages:   map[string]model.Village{},
	}
	for i, name := range model.AllRoles {
		id := int64(i + 1)
		t.roles[id] = model.Role{ID: id, Name: name}
	}
	t.nextID = int64(len(model.AllRoles))
	return &Store{t: t}
}

func (s *Store) id() int64 {
	s.t.nextID++
	return s.t.nextID
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	snapshot := s.t.clone()
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.t = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Users() repository.UserRepository { return &userRepo{s} }
func (s *Store) Roles() repository.RoleRepository { return &roleRepo{s} }
func (s *Store) Patients() repository.PatientRepository { return &patientRepo{s} }
func (s *Store) Readings() repository.ReadingRepository { return &readingRepo{s} }
func (s *Store) Referrals() repository.ReferralRepository { return &referralRepo{s} }
func (s *Store) FollowUps() repository.FollowUpRepository { return &followUpRepo{s} }
func (s *Store) Facilities() repository.FacilityRepository { return &facilityRepo{s} }
func (s *Store) Audit() repository.AuditRepository { return &auditRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository { return &outboxRepo{s} }

// AuditLogs returns a copy of every audit entry written so far.
func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.t.audit...)
}

// OutboxEvents returns a copy of every outbox event written so far.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.t.outbox...)
}

// users

type userRepo struct{ s *Store }

func (r *userRepo) load(u model.User) *model.User {
	t := r.s.t
	u.Roles = []model.RoleName{}
	roleIDs := append([]int64(nil), t.userRoles[u.ID]...)
	sort.Slice(roleIDs, func(i, j int) bool { return roleIDs[i] < roleIDs[j] })
	for _, id := range roleIDs {
		u.Roles = append(u.Roles, t.roles[id].Name)
	}
	u.Supervises = []*model.User{}
	for _, id := range t.supervises[u.ID] {
		u.Supervises = append(u.Supervises, &model.User{ID: id})
	}
	return &u
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.t.users {
		if u.Email == user.Email {
			return fmt.Errorf("failed to create user: %w", repository.ErrDuplicate)
		}
		if user.Username != nil && u.Username != nil && *u.Username == *user.Username {
			return fmt.Errorf("failed to create user: %w: users_username_key", repository.ErrDuplicate)
		}
	}
	if user.HealthFacilityName != nil && !r.s.t.facilities[*user.HealthFacilityName] {
		return fmt.Errorf("failed to create user: %w", repository.ErrForeignKey)
	}
	user.ID = r.s.id()
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	stored.Roles, stored.Supervises = nil, nil
	r.s.t.users[user.ID] = stored
	return nil
}

func (r *userRepo) Get(ctx context.Context, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.t.users[id]
	if !ok {
		return nil, notFound("failed to get user")
	}
	return r.load(u), nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.t.users {
		if u.Email == email {
			return r.load(u), nil
		}
	}
	return nil, notFound("failed to get user by email")
}

func (r *userRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (r *userRepo) List(ctx context.Context) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]*model.User, 0, len(r.s.t.users))
	for _, u := range r.s.t.users {
		users = append(users, r.load(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *userRepo) ListIDsByRole(ctx context.Context, role model.RoleName) ([]int64, error) {
	users, _ := r.List(ctx)
	ids := []int64{}
	for _, u := range users {
		if u.HasRole(role) {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

func (r *userRepo) Update(ctx context.Context, id int64, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.t.users[id]
	if !ok {
		return notFound("failed to update user")
	}
	for col, v := range fields {
		switch col {
		case "username":
			u.Username = optString(v)
		case "email":
			if s := optString(v); s != nil {
				for otherID, other := range r.s.t.users {
					if otherID != id && other.Email == *s {
						return fmt.Errorf("failed to update user: %w", repository.ErrDuplicate)
					}
				}
				u.Email = *s
			}
		case "first_name":
			u.FirstName = optString(v)
		case "health_facility_name":
			name := optString(v)
			if name != nil && !r.s.t.facilities[*name] {
				return fmt.Errorf("failed to update user: %w", repository.ErrForeignKey)
			}
			u.HealthFacilityName = name
		default:
			return fmt.Errorf("failed to update user: column %q is not updatable", col)
		}
	}
	u.UpdatedAt = time.Now().UTC()
	r.s.t.users[id] = u
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.s.t
	if _, ok := t.users[id]; !ok {
		return notFound("failed to delete user")
	}
	for _, f := range t.followUps {
		if f.HealthcareWorkerID == id {
			return fmt.Errorf("failed to delete user: %w", repository.ErrForeignKey)
		}
	}
	delete(t.users, id)
	delete(t.userRoles, id)
	delete(t.supervises, id)
	for cho, vhts := range t.supervises {
		kept := vhts[:0:0]
		for _, v := range vhts {
			if v != id {
				kept = append(kept, v)
			}
		}
		t.supervises[cho] = kept
	}
	for k, rd := range t.readings {
		if rd.UserID != nil && *rd.UserID == id {
			rd.UserID = nil
			t.readings[k] = rd
		}
	}
	for k, ref := range t.referrals {
		if ref.UserID != nil && *ref.UserID == id {
			ref.UserID = nil
			t.referrals[k] = ref
		}
	}
	return nil
}

func (r *userRepo) AddSupervision(ctx context.Context, choID, vhtID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.s.t
	if _, ok := t.users[choID]; !ok {
		return fmt.Errorf("failed to add supervision: %w", repository.ErrForeignKey)
	}
	if _, ok := t.users[vhtID]; !ok {
		return fmt.Errorf("failed to add supervision: %w", repository.ErrForeignKey)
	}
	for _, v := range t.supervises[choID] {
		if v == vhtID {
			return nil
		}
	}
	t.supervises[choID] = append(t.supervises[choID], vhtID)
	sort.Slice(t.supervises[choID], func(i, j int) bool { return t.supervises[choID][i] < t.supervises[choID][j] })
	return nil
}

func (r *userRepo) ListSupervised(ctx context.Context, choID int64) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := []*model.User{}
	for _, id := range r.s.t.supervises[choID] {
		if u, ok := r.s.t.users[id]; ok {
			users = append(users, r.load(u))
		}
	}
	return users, nil
}

func optString(v interface{}) *string {
	switch s := v.(type) {
	case string:
		return &s
	case *string:
		return s
	}
	return nil
}

// roles

type roleRepo struct{ s *Store }

func (r *roleRepo) Get(ctx context.Context, id int64) (*model.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	role, ok := r.s.t.roles[id]
	if !ok {
		return nil, notFound("failed to get role")
	}
	return &role, nil
}

func (r *roleRepo) GetByName(ctx context.Context, name model.RoleName) (*model.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, role := range r.s.t.roles {
		if role.Name == name {
			role := role
			return &role, nil
		}
	}
	return nil, notFound("failed to get role by name")
}

func (r *roleRepo) List(ctx context.Context) ([]*model.Role, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	roles := make([]*model.Role, 0, len(r.s.t.roles))
	for _, role := range r.s.t.roles {
		role := role
		roles = append(roles, &role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles, nil
}

func (r *roleRepo) AssignToUser(ctx context.Context, userID, roleID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.s.t
	if _, ok := t.users[userID]; !ok {
		return fmt.Errorf("failed to assign role: %w", repository.ErrForeignKey)
	}
	if _, ok := t.roles[roleID]; !ok {
		return fmt.Errorf("failed to assign role: %w", repository.ErrForeignKey)
	}
	for _, id := range t.userRoles[userID] {
		if id == roleID {
			return nil
		}
	}
	t.userRoles[userID] = append(t.userRoles[userID], roleID)
	return nil
}

func (r *roleRepo) ListUserRoles(ctx context.Context, userID int64) ([]model.RoleName, error) {
	u, err := (&userRepo{r.s}).Get(ctx, userID)
	if err != nil {
		return []model.RoleName{}, nil
	}
	return u.Roles, nil
}

// patients

type patientRepo struct{ s *Store }

func (r *patientRepo) Create(ctx context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.patients[patient.PatientID]; ok {
		return fmt.Errorf("failed to create patient: %w", repository.ErrDuplicate)
	}
	patient.CreatedAt = time.Now().UTC()
	patient.UpdatedAt = patient.CreatedAt
	r.s.t.patients[patient.PatientID] = *patient
	return nil
}

func (r *patientRepo) Get(ctx context.Context, id string) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.t.patients[id]
	if !ok {
		return nil, notFound("failed to get patient")
	}
	return &p, nil
}

func (r *patientRepo) List(ctx context.Context) ([]*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	patients := make([]*model.Patient, 0, len(r.s.t.patients))
	for _, p := range r.s.t.patients {
		p := p
		patients = append(patients, &p)
	}
	sort.Slice(patients, func(i, j int) bool { return patients[i].PatientID < patients[j].PatientID })
	return patients, nil
}

func (r *patientRepo) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.t.patients[id]
	if !ok {
		return notFound("failed to update patient")
	}
	for col, v := range fields {
		switch col {
		case "patient_name":
			p.PatientName = optString(v)
		case "patient_age":
			if n, ok := v.(int); ok {
				p.PatientAge = n
			}
		case "patient_sex":
			if s := optString(v); s != nil {
				p.PatientSex = model.Sex(*s)
			}
		case "is_pregnant":
			if b, ok := v.(bool); ok {
				p.IsPregnant = &b
			} else {
				p.IsPregnant = nil
			}
		case "gestational_age_unit":
			p.GestationalAgeUnit = optString(v)
		case "gestational_age_value":
			p.GestationalAgeValue = optString(v)
		case "medical_history":
			p.MedicalHistory = optString(v)
		case "drug_history":
			p.DrugHistory = optString(v)
		case "zone":
			p.Zone = optString(v)
		case "tank":
			p.Tank = optString(v)
		case "block":
			p.Block = optString(v)
		case "village_number":
			p.VillageNumber = optString(v)
		default:
			return fmt.Errorf("failed to update patient: column %q is not updatable", col)
		}
	}
	p.UpdatedAt = time.Now().UTC()
	r.s.t.patients[id] = p
	return nil
}

// readings

type readingRepo struct{ s *Store }

func (r *readingRepo) Create(ctx context.Context, reading *model.Reading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.readings[reading.ReadingID]; ok {
		return fmt.Errorf("failed to create reading: %w", repository.ErrDuplicate)
	}
	if _, ok := r.s.t.patients[reading.PatientID]; !ok {
		return fmt.Errorf("failed to create reading: %w", repository.ErrForeignKey)
	}
	r.s.t.readings[reading.ReadingID] = *reading
	return nil
}

func (r *readingRepo) Get(ctx context.Context, id string) (*model.Reading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rd, ok := r.s.t.readings[id]
	if !ok {
		return nil, notFound("failed to get reading")
	}
	return &rd, nil
}

func (r *readingRepo) ListByPatient(ctx context.Context, patientID string) ([]*model.Reading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	readings := []*model.Reading{}
	for _, rd := range r.s.t.readings {
		if rd.PatientID == patientID {
			rd := rd
			readings = append(readings, &rd)
		}
	}
	sort.Slice(readings, func(i, j int) bool { return readings[i].ReadingID < readings[j].ReadingID })
	return readings, nil
}

// referrals

type referralRepo struct{ s *Store }

func (r *referralRepo) Create(ctx context.Context, referral *model.Referral) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.s.t
	if _, ok := t.patients[referral.PatientID]; !ok {
		return fmt.Errorf("failed to create referral: %w", repository.ErrForeignKey)
	}
	if !t.facilities[referral.ReferralHealthFacilityName] {
		return fmt.Errorf("failed to create referral: %w", repository.ErrForeignKey)
	}
	if referral.ReadingID != nil {
		if _, ok := t.readings[*referral.ReadingID]; !ok {
			return fmt.Errorf("failed to create referral: %w", repository.ErrForeignKey)
		}
		for _, other := range t.referrals {
			if other.ReadingID != nil && *other.ReadingID == *referral.ReadingID {
				return fmt.Errorf("failed to create referral: %w", repository.ErrDuplicate)
			}
		}
	}
	referral.ID = r.s.id()
	stored := *referral
	stored.FollowUp = nil
	t.referrals[referral.ID] = stored
	return nil
}

func (r *referralRepo) withFollowUp(ref model.Referral) *model.Referral {
	if ref.FollowUpID != nil {
		if f, ok := r.s.t.followUps[*ref.FollowUpID]; ok {
			ref.FollowUp = &f
		}
	}
	return &ref
}

func (r *referralRepo) Get(ctx context.Context, id int64) (*model.Referral, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.t.referrals[id]
	if !ok {
		return nil, notFound("failed to get referral")
	}
	return r.withFollowUp(ref), nil
}

func (r *referralRepo) List(ctx context.Context, filter *model.ReferralFilter) ([]*model.Referral, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	referrals := []*model.Referral{}
	for _, ref := range r.s.t.referrals {
		if filter != nil && filter.HealthFacilityName != "" && ref.ReferralHealthFacilityName != filter.HealthFacilityName {
			continue
		}
		if filter != nil && filter.PatientID != "" && ref.PatientID != filter.PatientID {
			continue
		}
		referrals = append(referrals, r.withFollowUp(ref))
	}
	sort.Slice(referrals, func(i, j int) bool { return referrals[i].ID < referrals[j].ID })
	return referrals, nil
}

func (r *referralRepo) SetFollowUp(ctx context.Context, referralID, followUpID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ref, ok := r.s.t.referrals[referralID]
	if !ok {
		return notFound("failed to set referral follow-up")
	}
	if ref.FollowUpID != nil {
		return fmt.Errorf("failed to set referral follow-up: %w", repository.ErrDuplicate)
	}
	ref.FollowUpID = &followUpID
	r.s.t.referrals[referralID] = ref
	return nil
}

// follow-ups

type followUpRepo struct{ s *Store }

func (r *followUpRepo) Create(ctx context.Context, followUp *model.FollowUp) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.users[followUp.HealthcareWorkerID]; !ok {
		return fmt.Errorf("failed to create follow-up: %w", repository.ErrForeignKey)
	}
	followUp.ID = r.s.id()
	r.s.t.followUps[followUp.ID] = *followUp
	return nil
}

func (r *followUpRepo) Get(ctx context.Context, id int64) (*model.FollowUp, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	f, ok := r.s.t.followUps[id]
	if !ok {
		return nil, notFound("failed to get follow-up")
	}
	return &f, nil
}

func (r *followUpRepo) Update(ctx context.Context, followUp *model.FollowUp) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.followUps[followUp.ID]; !ok {
		return notFound("failed to update follow-up")
	}
	r.s.t.followUps[followUp.ID] = *followUp
	return nil
}

// facilities and villages

type facilityRepo struct{ s *Store }

func (r *facilityRepo) CreateFacility(ctx context.Context, facility *model.HealthFacility) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.t.facilities[facility.HealthFacilityName] {
		return fmt.Errorf("failed to create health facility: %w", repository.ErrDuplicate)
	}
	r.s.t.facilities[facility.HealthFacilityName] = true
	return nil
}

func (r *facilityRepo) ListFacilities(ctx context.Context) ([]*model.HealthFacility, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	facilities := []*model.HealthFacility{}
	for name := range r.s.t.facilities {
		facilities = append(facilities, &model.HealthFacility{HealthFacilityName: name})
	}
	sort.Slice(facilities, func(i, j int) bool {
		return facilities[i].HealthFacilityName < facilities[j].HealthFacilityName
	})
	return facilities, nil
}

func (r *facilityRepo) FacilityExists(ctx context.Context, name string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.t.facilities[name], nil
}

func (r *facilityRepo) CreateVillage(ctx context.Context, village *model.Village) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.villages[village.VillageNumber]; ok {
		return fmt.Errorf("failed to create village: %w", repository.ErrDuplicate)
	}
	r.s.t.villages[village.VillageNumber] = *village
	return nil
}

func (r *facilityRepo) ListVillages(ctx context.Context) ([]*model.Village, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	villages := []*model.Village{}
	for _, v := range r.s.t.villages {
		v := v
		villages = append(villages, &v)
	}
	sort.Slice(villages, func(i, j int) bool { return villages[i].VillageNumber < villages[j].VillageNumber })
	return villages, nil
}

// audit

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(ctx context.Context, log *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	r.s.t.audit = append(r.s.t.audit, *log)
	return nil
}

func (r *auditRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.t.audit[:0:0]
	for _, l := range r.s.t.audit {
		if !l.CreatedAt.Before(cutoff) {
			kept = append(kept, l)
		}
	}
	deleted := int64(len(r.s.t.audit) - len(kept))
	r.s.t.audit = kept
	return deleted, nil
}

// outbox

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = now
	event.UpdatedAt = now
	r.s.t.outbox = append(r.s.t.outbox, *event)
	return nil
}

func (r *outboxRepo) ClaimPending(ctx context.Context, limit int, fn func(ctx context.Context, events []*model.OutboxEvent) error) error {
	r.s.mu.Lock()
	var events []*model.OutboxEvent
	for _, e := range r.s.t.outbox {
		if e.Status != model.OutboxStatusPending {
			continue
		}
		e := e
		events = append(events, &e)
		if len(events) == limit {
			break
		}
	}
	r.s.mu.Unlock()

	if len(events) == 0 {
		return nil
	}
	return r.s.WithinTx(ctx, func(ctx context.Context) error {
		return fn(ctx, events)
	})
}

func (r *outboxRepo) update(id uuid.UUID, fn func(e *model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.t.outbox {
		if r.s.t.outbox[i].ID == id {
			fn(&r.s.t.outbox[i])
			r.s.t.outbox[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return notFound("failed to update outbox event")
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.update(id, func(e *model.OutboxEvent) {
		now := time.Now().UTC()
		e.Status = model.OutboxStatusProcessed
		e.ErrorMessage = nil
		e.ProcessedAt = &now
	})
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string, maxRetries int) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.RetryCount++
		e.ErrorMessage = &reason
		if e.RetryCount >= maxRetries {
			e.Status = model.OutboxStatusFailed
		}
	})
}

func (r *outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.t.outbox[:0:0]
	for _, e := range r.s.t.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	deleted := int64(len(r.s.t.outbox) - len(kept))
	r.s.t.outbox = kept
	return deleted, nil
}
