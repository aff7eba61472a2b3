package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/external"
	"tripmate/internal/models"
	"tripmate/internal/repository"
)

type pair [2]int64

// memStore is an in-memory repository.Store with the same conditional-update
// semantics as the Postgres repositories. Transactions are serialized and
// rolled back by restoring a snapshot.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID       int64
	plans        map[int64]models.TravelPlan
	interests    map[pair]models.TravelPlanInterest
	trips        map[int64]models.OrganizedTrip
	participants map[pair]models.TripParticipant
	payments     map[int64]models.Payment
}

func newMemStore() *memStore {
	return &memStore{
		plans:        map[int64]models.TravelPlan{},
		interests:    map[pair]models.TravelPlanInterest{},
		trips:        map[int64]models.OrganizedTrip{},
		participants: map[pair]models.TripParticipant{},
		payments:     map[int64]models.Payment{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) Plans() repository.PlanStore               { return memPlans{s} }
func (s *memStore) Interests() repository.InterestStore       { return memInterests{s} }
func (s *memStore) Trips() repository.TripStore               { return memTrips{s} }
func (s *memStore) Participants() repository.ParticipantStore { return memParticipants{s} }
func (s *memStore) Payments() repository.PaymentStore         { return memPayments{s} }

func (s *memStore) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := s.snapshot()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restore(snap)
		s.mu.Unlock()
		return err
	}
	return nil
}

type memSnapshot struct {
	nextID       int64
	plans        map[int64]models.TravelPlan
	interests    map[pair]models.TravelPlanInterest
	trips        map[int64]models.OrganizedTrip
	participants map[pair]models.TripParticipant
	payments     map[int64]models.Payment
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	return memSnapshot{
		nextID:       s.nextID,
		plans:        cloneMap(s.plans),
		interests:    cloneMap(s.interests),
		trips:        cloneMap(s.trips),
		participants: cloneMap(s.participants),
		payments:     cloneMap(s.payments),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.nextID = snap.nextID
	s.plans = snap.plans
	s.interests = snap.interests
	s.trips = snap.trips
	s.participants = snap.participants
	s.payments = snap.payments
}

// test accessors

func (s *memStore) plan(id int64) models.TravelPlan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plans[id]
}

func (s *memStore) trip(id int64) models.OrganizedTrip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trips[id]
}

func (s *memStore) tripForPlan(planID int64) (models.OrganizedTrip, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.trips {
		if t.TravelPlanID != nil && *t.TravelPlanID == planID {
			return t, true
		}
	}
	return models.OrganizedTrip{}, false
}

func (s *memStore) tripCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trips)
}

func (s *memStore) payment(tranID string) models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.TransactionID == tranID {
			return p
		}
	}
	return models.Payment{}
}

func (s *memStore) participant(tripID, userID int64) (models.TripParticipant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[pair{tripID, userID}]
	return p, ok
}

func (s *memStore) putTrip(t models.OrganizedTrip) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	s.trips[t.ID] = t
	return t.ID
}

func (s *memStore) putParticipant(p models.TripParticipant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.participants[pair{p.TripID, p.UserID}] = p
}

func (s *memStore) setPaymentDate(tranID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.payments {
		if p.TransactionID == tranID {
			p.PaymentDate = at
			s.payments[id] = p
		}
	}
}

func (s *memStore) putPayment(p models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.payments[p.ID] = p
}

// plans

type memPlans struct{ s *memStore }

func (r memPlans) Create(ctx context.Context, plan *models.TravelPlan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	plan.ID = r.s.id()
	r.s.plans[plan.ID] = *plan
	return nil
}

func (r memPlans) GetByID(ctx context.Context, id int64) (*models.TravelPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memPlans) GetByIDForUpdate(ctx context.Context, id int64) (*models.TravelPlan, error) {
	return r.GetByID(ctx, id)
}

func (r memPlans) ListByUser(ctx context.Context, userID int64) ([]models.TravelPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TravelPlan
	for _, p := range r.s.plans {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memPlans) Search(ctx context.Context, f models.PlanSearchFilter) ([]models.TravelPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TravelPlan
	for _, p := range r.s.plans {
		if p.Status != models.PlanStatusOpen || p.UserID == f.ExcludeUserID || p.StartDate.Before(f.Today) {
			continue
		}
		if f.Destination != "" && !strings.Contains(strings.ToLower(p.Destination), strings.ToLower(f.Destination)) {
			continue
		}
		if f.StartDate != nil && p.StartDate.Before(*f.StartDate) {
			continue
		}
		if f.BudgetRange != "" && p.BudgetRange != f.BudgetRange {
			continue
		}
		if f.Purpose != "" && p.Purpose != f.Purpose {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memPlans) UpdateDetails(ctx context.Context, plan *models.TravelPlan) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.plans[plan.ID]
	if !ok || cur.Status != models.PlanStatusOpen {
		return false, nil
	}
	r.s.plans[plan.ID] = *plan
	return true, nil
}

func (r memPlans) Delete(ctx context.Context, id, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.plans[id]
	if !ok || cur.UserID != userID || cur.Status != models.PlanStatusOpen {
		return false, nil
	}
	delete(r.s.plans, id)
	for k := range r.s.interests {
		if k[0] == id {
			delete(r.s.interests, k)
		}
	}
	return true, nil
}

func (r memPlans) Finalize(ctx context.Context, plan *models.TravelPlan) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.plans[plan.ID]
	if !ok || cur.Status != models.PlanStatusClosed {
		return false, nil
	}
	r.s.plans[plan.ID] = *plan
	return true, nil
}

func (r memPlans) TransitionStatus(ctx context.Context, id int64, from []string, to string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.plans[id]
	if !ok || !slices.Contains(from, cur.Status) {
		return false, nil
	}
	cur.Status = to
	r.s.plans[id] = cur
	return true, nil
}

func (r memPlans) CloseExpired(ctx context.Context, now time.Time) ([]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []int64
	for id, p := range r.s.plans {
		if p.Status == models.PlanStatusOpen && p.JoinDeadline.Before(now) {
			p.Status = models.PlanStatusClosed
			r.s.plans[id] = p
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r memPlans) ListFinalizedWithoutTrip(ctx context.Context) ([]models.TravelPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TravelPlan
	for _, p := range r.s.plans {
		if p.Status != models.PlanStatusFinalized {
			continue
		}
		hasTrip := false
		for _, t := range r.s.trips {
			if t.TravelPlanID != nil && *t.TravelPlanID == p.ID && t.TripStatus != models.TripStatusPlanning {
				hasTrip = true
			}
		}
		if !hasTrip {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// interests

type memInterests struct{ s *memStore }

func (r memInterests) Create(ctx context.Context, i *models.TravelPlanInterest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{i.PlanID, i.UserID}
	if _, ok := r.s.interests[key]; ok {
		return apperrors.ErrAlreadyJoined
	}
	i.ID = r.s.id()
	r.s.interests[key] = *i
	return nil
}

func (r memInterests) Get(ctx context.Context, planID, userID int64) (*models.TravelPlanInterest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.interests[pair{planID, userID}]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (r memInterests) Delete(ctx context.Context, planID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{planID, userID}
	i, ok := r.s.interests[key]
	if !ok || i.Agreed {
		return false, nil
	}
	delete(r.s.interests, key)
	return true, nil
}

func (r memInterests) Agree(ctx context.Context, planID, userID int64, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{planID, userID}
	i, ok := r.s.interests[key]
	if !ok || i.Agreed {
		return false, nil
	}
	i.Agreed = true
	i.AgreedAt = &at
	r.s.interests[key] = i
	return true, nil
}

func (r memInterests) CountByPlan(ctx context.Context, planID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for k := range r.s.interests {
		if k[0] == planID {
			n++
		}
	}
	return n, nil
}

func (r memInterests) ListAgreed(ctx context.Context, planID int64) ([]models.TravelPlanInterest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TravelPlanInterest
	for k, i := range r.s.interests {
		if k[0] == planID && i.Agreed {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].UserID < out[b].UserID })
	return out, nil
}

// trips

type memTrips struct{ s *memStore }

func (r memTrips) Create(ctx context.Context, t *models.OrganizedTrip) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	r.s.trips[t.ID] = *t
	return nil
}

func (r memTrips) GetByID(ctx context.Context, id int64) (*models.OrganizedTrip, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trips[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r memTrips) GetByIDForUpdate(ctx context.Context, id int64) (*models.OrganizedTrip, error) {
	return r.GetByID(ctx, id)
}

func (r memTrips) GetByPlanID(ctx context.Context, planID int64) (*models.OrganizedTrip, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.trips {
		if t.TravelPlanID != nil && *t.TravelPlanID == planID {
			return &t, nil
		}
	}
	return nil, nil
}

func (r memTrips) ListByStatus(ctx context.Context, statuses []string) ([]models.OrganizedTrip, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.OrganizedTrip
	for _, t := range r.s.trips {
		if slices.Contains(statuses, t.TripStatus) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTrips) Update(ctx context.Context, t *models.OrganizedTrip) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.trips[t.ID] = *t
	return nil
}

func (r memTrips) Confirm(ctx context.Context, id int64, departure, ret time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trips[id]
	if !ok || (t.TripStatus != models.TripStatusOpen && t.TripStatus != models.TripStatusPlanning) {
		return false, nil
	}
	t.TripStatus = models.TripStatusConfirmed
	t.DepartureTime = departure
	t.ReturnTime = ret
	r.s.trips[id] = t
	return true, nil
}

func (r memTrips) TransitionStatus(ctx context.Context, id int64, from []string, to string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.trips[id]
	if !ok || !slices.Contains(from, t.TripStatus) {
		return false, nil
	}
	t.TripStatus = to
	r.s.trips[id] = t
	return true, nil
}

func (r memTrips) AdjustParticipants(ctx context.Context, id int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := r.s.trips[id]
	t.TotalParticipants = max(0, t.TotalParticipants+delta)
	r.s.trips[id] = t
	return nil
}

// participants

type memParticipants struct{ s *memStore }

func (r memParticipants) Create(ctx context.Context, p *models.TripParticipant) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{p.TripID, p.UserID}
	if _, ok := r.s.participants[key]; ok {
		return false, nil
	}
	p.ID = r.s.id()
	r.s.participants[key] = *p
	return true, nil
}

func (r memParticipants) Get(ctx context.Context, tripID, userID int64) (*models.TripParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[pair{tripID, userID}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memParticipants) ListByTrip(ctx context.Context, tripID int64) ([]models.TripParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.TripParticipant
	for k, p := range r.s.participants {
		if k[0] == tripID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r memParticipants) MarkPaid(ctx context.Context, tripID, userID int64, amount decimal.Decimal) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{tripID, userID}
	p, ok := r.s.participants[key]
	if !ok || p.PaymentStatus == models.ParticipantPaid {
		return false, nil
	}
	p.PaymentStatus = models.ParticipantPaid
	p.AmountPaid = amount
	r.s.participants[key] = p
	return true, nil
}

func (r memParticipants) MarkRefunded(ctx context.Context, tripID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{tripID, userID}
	p, ok := r.s.participants[key]
	if !ok || p.PaymentStatus != models.ParticipantPaid {
		return false, nil
	}
	p.PaymentStatus = models.ParticipantRefunded
	r.s.participants[key] = p
	return true, nil
}

func (r memParticipants) CountPaid(ctx context.Context, tripID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for k, p := range r.s.participants {
		if k[0] == tripID && p.PaymentStatus == models.ParticipantPaid {
			n++
		}
	}
	return n, nil
}

func (r memParticipants) Delete(ctx context.Context, tripID, userID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := pair{tripID, userID}
	p, ok := r.s.participants[key]
	if !ok || p.PaymentStatus == models.ParticipantPaid {
		return false, nil
	}
	delete(r.s.participants, key)
	return true, nil
}

// payments

type memPayments struct{ s *memStore }

func (r memPayments) Create(ctx context.Context, p *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p.ID = r.s.id()
	r.s.payments[p.ID] = *p
	return nil
}

func (r memPayments) find(tranID string) (models.Payment, bool) {
	for _, p := range r.s.payments {
		if p.TransactionID == tranID {
			return p, true
		}
	}
	return models.Payment{}, false
}

func (r memPayments) GetByTransactionID(ctx context.Context, tranID string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.find(tranID)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r memPayments) SetSessionKey(ctx context.Context, id int64, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p := r.s.payments[id]
	p.SessionKey = &key
	r.s.payments[id] = p
	return nil
}

func (r memPayments) MarkCompleted(ctx context.Context, tranID, method string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.find(tranID)
	if !ok || p.PaymentStatus == models.PaymentCompleted || p.PaymentStatus == models.PaymentRefunding ||
		p.PaymentStatus == models.PaymentRefunded {
		return false, nil
	}
	p.PaymentStatus = models.PaymentCompleted
	p.PaymentMethod = method
	r.s.payments[p.ID] = p
	return true, nil
}

func (r memPayments) MarkFailed(ctx context.Context, tranID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.find(tranID)
	if !ok || (p.PaymentStatus != models.PaymentPending && p.PaymentStatus != models.PaymentProcessing) {
		return false, nil
	}
	p.PaymentStatus = models.PaymentFailed
	r.s.payments[p.ID] = p
	return true, nil
}

func (r memPayments) moveStatus(id int64, from, to string) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.PaymentStatus != from {
		return false
	}
	p.PaymentStatus = to
	p.RefundStatus = to == models.PaymentRefunded
	r.s.payments[id] = p
	return true
}

func (r memPayments) ClaimRefund(ctx context.Context, id int64) (bool, error) {
	return r.moveStatus(id, models.PaymentCompleted, models.PaymentRefunding), nil
}

func (r memPayments) ReleaseRefund(ctx context.Context, id int64) (bool, error) {
	return r.moveStatus(id, models.PaymentRefunding, models.PaymentCompleted), nil
}

func (r memPayments) MarkRefunded(ctx context.Context, id int64) (bool, error) {
	return r.moveStatus(id, models.PaymentRefunding, models.PaymentRefunded), nil
}

func (r memPayments) AttachToTrip(ctx context.Context, id, tripID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || p.TripID != nil || p.PaymentStatus != models.PaymentCompleted {
		return false, nil
	}
	p.TripID = &tripID
	r.s.payments[id] = p
	return true, nil
}

func (r memPayments) LatestCompleted(ctx context.Context, tripID, userID int64) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.Payment
	for _, p := range r.s.payments {
		if p.TripID == nil || *p.TripID != tripID || p.UserID != userID || p.PaymentStatus != models.PaymentCompleted {
			continue
		}
		if latest == nil || p.PaymentDate.After(latest.PaymentDate) {
			p := p
			latest = &p
		}
	}
	return latest, nil
}

func (r memPayments) HasCompletedForPlan(ctx context.Context, planID, userID int64, since time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.PlanID != nil && *p.PlanID == planID && p.UserID == userID &&
			p.PaymentStatus == models.PaymentCompleted && !p.PaymentDate.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r memPayments) LinkToTrip(ctx context.Context, planID int64, userIDs []int64, since time.Time, tripID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, p := range r.s.payments {
		if p.PlanID != nil && *p.PlanID == planID && slices.Contains(userIDs, p.UserID) &&
			p.PaymentStatus == models.PaymentCompleted && p.TripID == nil && !p.PaymentDate.Before(since) {
			t := tripID
			p.TripID = &t
			r.s.payments[id] = p
			n++
		}
	}
	return n, nil
}

func (r memPayments) ListByUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Payment
	for _, p := range r.s.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// fakeGateway approves everything unless told otherwise and remembers the
// amount of every session so validation can echo it back.
type fakeGateway struct {
	mu sync.Mutex

	sessionFailure string
	validateStatus string
	queryStatus    string
	refundFailure  string

	amounts map[string]decimal.Decimal
	calls   map[string]int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{amounts: map[string]decimal.Decimal{}, calls: map[string]int{}}
}

func (g *fakeGateway) called(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) Currency() string { return "BDT" }

func (g *fakeGateway) CreateSession(ctx context.Context, req external.SessionRequest) *external.SessionResponse {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["session"]++
	if g.sessionFailure != "" {
		return &external.SessionResponse{Status: external.StatusFailed, FailedReason: g.sessionFailure}
	}
	g.amounts[req.TransactionID] = req.Amount
	return &external.SessionResponse{
		Status:         external.StatusSuccess,
		SessionKey:     "sess-" + req.TransactionID,
		GatewayPageURL: "https://gateway.test/pay/" + req.TransactionID,
	}
}

func (g *fakeGateway) ValidateTransaction(ctx context.Context, valID, tranID string) *external.ValidationResponse {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["validate"]++
	status := external.StatusValid
	if g.validateStatus != "" {
		status = g.validateStatus
	}
	return &external.ValidationResponse{
		Status:   status,
		TranID:   tranID,
		ValID:    valID,
		Amount:   g.amounts[tranID].StringFixed(2),
		CardType: "VISA",
	}
}

func (g *fakeGateway) InitiateRefund(ctx context.Context, bankTranID string, amount decimal.Decimal, remarks string) *external.RefundResponse {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["refund"]++
	if g.refundFailure != "" {
		return &external.RefundResponse{Status: external.StatusFailed, ErrorReason: g.refundFailure}
	}
	return &external.RefundResponse{Status: "success", BankTranID: bankTranID, RefundRefID: "R-" + bankTranID}
}

func (g *fakeGateway) QueryTransaction(ctx context.Context, tranID string) *external.QueryResponse {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["query"]++
	status := external.StatusValid
	if g.queryStatus != "" {
		status = g.queryStatus
	}
	return &external.QueryResponse{Status: status, TranID: tranID, BankTranID: "BANK-" + tranID}
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (p *recordingPublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	return nil
}

func (p *recordingPublisher) count(subject string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.subjects {
		if s == subject {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
