package auction

// In-memory stores, runner and fixtures backing the service tests. The runner
// serializes every unit of work behind one mutex, which is a strictly
// stronger guarantee than the per-key advisory locks of the real engine.

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type memState struct {
	drafts  map[uuid.UUID]*Draft
	order   map[uuid.UUID][]DraftOrderEntry
	lots    map[uuid.UUID]*Lot
	proxies map[uuid.UUID][]*memProxy // by lot, insertion order
	history []BidHistoryEntry
	rosters map[uuid.UUID]*Roster
	players map[uuid.UUID]float64     // id -> adp
	queues  map[uuid.UUID][]uuid.UUID // roster -> player queue
	seq     int
}

type memProxy struct {
	ProxyBid
	seq int
}

func newMemState() *memState {
	return &memState{
		drafts:  make(map[uuid.UUID]*Draft),
		order:   make(map[uuid.UUID][]DraftOrderEntry),
		lots:    make(map[uuid.UUID]*Lot),
		proxies: make(map[uuid.UUID][]*memProxy),
		rosters: make(map[uuid.UUID]*Roster),
		players: make(map[uuid.UUID]float64),
		queues:  make(map[uuid.UUID][]uuid.UUID),
	}
}

// memRunner serializes all work behind one mutex.
type memRunner struct {
	mu    sync.Mutex
	state *memState
}

func (r *memRunner) InLockedTx(ctx context.Context, domain LockDomain, key uuid.UUID, fn func(ctx context.Context, s Stores) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memStores{state: r.state})
}

func (r *memRunner) Read(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memStores{state: r.state})
}

type memStores struct {
	state *memState
}

func (s *memStores) Drafts() DraftStore     { return &memDrafts{s.state} }
func (s *memStores) Lots() LotStore         { return &memLots{s.state} }
func (s *memStores) Rosters() RosterStore   { return &memRosters{s.state} }
func (s *memStores) Players() PlayerCatalog { return &memPlayers{s.state} }

type memDrafts struct{ st *memState }

func (m *memDrafts) Get(ctx context.Context, id uuid.UUID) (*Draft, error) {
	d, ok := m.st.drafts[id]
	if !ok {
		return nil, NotFoundf("draft %s", id)
	}
	c := *d
	return &c, nil
}

func (m *memDrafts) GetForUpdate(ctx context.Context, id uuid.UUID) (*Draft, error) {
	return m.Get(ctx, id)
}

func (m *memDrafts) Order(ctx context.Context, draftID uuid.UUID) ([]DraftOrderEntry, error) {
	order := append([]DraftOrderEntry(nil), m.st.order[draftID]...)
	sort.Slice(order, func(i, j int) bool { return order[i].Position < order[j].Position })
	return order, nil
}

func (m *memDrafts) SetNominator(ctx context.Context, draftID uuid.UUID, pick int, rosterID uuid.UUID, deadline *time.Time) error {
	d := m.st.drafts[draftID]
	d.CurrentPick = pick
	d.CurrentRosterID = rosterID
	d.PickDeadline = deadline
	return nil
}

func (m *memDrafts) SetPickDeadline(ctx context.Context, draftID uuid.UUID, deadline *time.Time) error {
	m.st.drafts[draftID].PickDeadline = deadline
	return nil
}

func (m *memDrafts) SetStatus(ctx context.Context, draftID uuid.UUID, status DraftStatus) error {
	m.st.drafts[draftID].Status = status
	return nil
}

func (m *memDrafts) SetPausedRemaining(ctx context.Context, draftID uuid.UUID, seconds *int64) error {
	m.st.drafts[draftID].PausedRemainingSec = seconds
	return nil
}

func (m *memDrafts) MarkCompleted(ctx context.Context, draftID uuid.UUID, at time.Time) error {
	d := m.st.drafts[draftID]
	d.Status = DraftCompleted
	d.PickDeadline = nil
	d.CurrentRosterID = uuid.Nil
	return nil
}

func (m *memDrafts) ExpiredNominations(ctx context.Context, now time.Time) ([]*Draft, error) {
	var out []*Draft
	for _, d := range m.st.drafts {
		if d.Status != DraftInProgress || d.Type != DraftTypeAuction {
			continue
		}
		if d.PickDeadline == nil || d.PickDeadline.After(now) {
			continue
		}
		if activeLot(m.st, d.ID) != nil {
			continue
		}
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

func activeLot(st *memState, draftID uuid.UUID) *Lot {
	for _, l := range st.lots {
		if l.DraftID == draftID && l.Status == LotActive {
			return l
		}
	}
	return nil
}

type memLots struct{ st *memState }

func (m *memLots) Get(ctx context.Context, id uuid.UUID) (*Lot, error) {
	l, ok := m.st.lots[id]
	if !ok {
		return nil, NotFoundf("lot %s", id)
	}
	c := *l
	return &c, nil
}

func (m *memLots) GetForUpdate(ctx context.Context, id uuid.UUID) (*Lot, error) {
	return m.Get(ctx, id)
}

func (m *memLots) ActiveLot(ctx context.Context, draftID uuid.UUID) (*Lot, error) {
	if l := activeLot(m.st, draftID); l != nil {
		c := *l
		return &c, nil
	}
	return nil, nil
}

func (m *memLots) ByIdempotencyKey(ctx context.Context, draftID uuid.UUID, key string) (*Lot, error) {
	for _, l := range m.st.lots {
		if l.DraftID == draftID && l.IdempotencyKey != nil && *l.IdempotencyKey == key {
			c := *l
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memLots) PlayerHasLot(ctx context.Context, draftID, playerID uuid.UUID) (bool, error) {
	for _, l := range m.st.lots {
		if l.DraftID == draftID && l.PlayerID == playerID && (l.Status == LotActive || l.Status == LotWon) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memLots) Insert(ctx context.Context, lot *Lot) error {
	c := *lot
	m.st.lots[lot.ID] = &c
	return nil
}

func (m *memLots) UpdateBidCAS(ctx context.Context, lotID uuid.UUID, prevBid int64, prevLeader *uuid.UUID, newBid int64, newLeader uuid.UUID, newBidCount int) (bool, error) {
	l, ok := m.st.lots[lotID]
	if !ok || l.Status != LotActive || l.CurrentBid != prevBid {
		return false, nil
	}
	if (l.CurrentBidderID == nil) != (prevLeader == nil) {
		return false, nil
	}
	if l.CurrentBidderID != nil && *l.CurrentBidderID != *prevLeader {
		return false, nil
	}
	l.CurrentBid = newBid
	leader := newLeader
	l.CurrentBidderID = &leader
	l.BidCount = newBidCount
	return true, nil
}

func (m *memLots) SetDeadline(ctx context.Context, lotID uuid.UUID, deadline *time.Time) error {
	m.st.lots[lotID].BidDeadline = deadline
	return nil
}

func (m *memLots) SetPausedRemaining(ctx context.Context, lotID uuid.UUID, seconds *int64) error {
	m.st.lots[lotID].PausedRemainingSec = seconds
	return nil
}

func (m *memLots) Settle(ctx context.Context, lotID uuid.UUID, status LotStatus, winner *uuid.UUID, winningBid *int64) error {
	l := m.st.lots[lotID]
	if l.Status != LotActive {
		return nil
	}
	l.Status = status
	l.WinningRosterID = winner
	l.WinningBid = winningBid
	l.BidDeadline = nil
	return nil
}

func (m *memLots) Expired(ctx context.Context, now time.Time) ([]*Lot, error) {
	var out []*Lot
	for _, l := range m.st.lots {
		if l.Status == LotActive && l.BidDeadline != nil && !l.BidDeadline.After(now) {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memLots) WonLots(ctx context.Context, draftID uuid.UUID) ([]*Lot, error) {
	var out []*Lot
	for _, l := range m.st.lots {
		if l.DraftID == draftID && l.Status == LotWon {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *memLots) ProxyBids(ctx context.Context, lotID uuid.UUID) ([]RankedProxyBid, error) {
	proxies := append([]*memProxy(nil), m.st.proxies[lotID]...)
	sort.SliceStable(proxies, func(i, j int) bool {
		if proxies[i].MaxBid != proxies[j].MaxBid {
			return proxies[i].MaxBid > proxies[j].MaxBid
		}
		return proxies[i].seq < proxies[j].seq
	})
	out := make([]RankedProxyBid, 0, len(proxies))
	for _, p := range proxies {
		out = append(out, RankedProxyBid{RosterID: p.RosterID, MaxBid: p.MaxBid})
	}
	return out, nil
}

func (m *memLots) GetProxyBid(ctx context.Context, lotID, rosterID uuid.UUID) (*ProxyBid, error) {
	for _, p := range m.st.proxies[lotID] {
		if p.RosterID == rosterID {
			c := p.ProxyBid
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memLots) UpsertProxyBid(ctx context.Context, lotID, rosterID uuid.UUID, maxBid int64, now time.Time) error {
	for _, p := range m.st.proxies[lotID] {
		if p.RosterID == rosterID {
			p.MaxBid = maxBid
			p.UpdatedAt = now
			return nil
		}
	}
	m.st.seq++
	m.st.proxies[lotID] = append(m.st.proxies[lotID], &memProxy{
		ProxyBid: ProxyBid{LotID: lotID, RosterID: rosterID, MaxBid: maxBid, CreatedAt: now, UpdatedAt: now},
		seq:      m.st.seq,
	})
	return nil
}

func (m *memLots) AppendHistory(ctx context.Context, e *BidHistoryEntry) error {
	if e.IdempotencyKey != nil {
		for _, h := range m.st.history {
			if h.LotID == e.LotID && h.RosterID == e.RosterID &&
				h.IdempotencyKey != nil && *h.IdempotencyKey == *e.IdempotencyKey {
				return nil
			}
		}
	}
	m.st.history = append(m.st.history, *e)
	return nil
}

func (m *memLots) HistoryByIdempotencyKey(ctx context.Context, lotID, rosterID uuid.UUID, key string) (*BidHistoryEntry, error) {
	for _, h := range m.st.history {
		if h.LotID == lotID && h.RosterID == rosterID && h.IdempotencyKey != nil && *h.IdempotencyKey == key {
			c := h
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memLots) History(ctx context.Context, lotID uuid.UUID) ([]BidHistoryEntry, error) {
	var out []BidHistoryEntry
	for _, h := range m.st.history {
		if h.LotID == lotID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memLots) BudgetSnapshot(ctx context.Context, draftID, rosterID uuid.UUID) (BudgetSnapshot, error) {
	var snap BudgetSnapshot
	for _, l := range m.st.lots {
		if l.DraftID != draftID {
			continue
		}
		if l.Status == LotWon && l.WinningRosterID != nil && *l.WinningRosterID == rosterID {
			snap.WonCount++
			if l.WinningBid != nil {
				snap.Spent += *l.WinningBid
			}
		}
		if l.Status == LotActive && l.CurrentBidderID != nil && *l.CurrentBidderID == rosterID {
			snap.LeadingCommitment += l.CurrentBid
		}
	}
	return snap, nil
}

func (m *memLots) BudgetSnapshots(ctx context.Context, draftID uuid.UUID) (map[uuid.UUID]BudgetSnapshot, error) {
	snaps := make(map[uuid.UUID]BudgetSnapshot)
	for _, entry := range m.st.order[draftID] {
		snap, _ := m.BudgetSnapshot(ctx, draftID, entry.RosterID)
		snaps[entry.RosterID] = snap
	}
	return snaps, nil
}

type memRosters struct{ st *memState }

func (m *memRosters) Get(ctx context.Context, id uuid.UUID) (*Roster, error) {
	r, ok := m.st.rosters[id]
	if !ok {
		return nil, NotFoundf("roster %s", id)
	}
	c := *r
	return &c, nil
}

func (m *memRosters) ByUser(ctx context.Context, leagueID, userID uuid.UUID) (*Roster, error) {
	for _, r := range m.st.rosters {
		if r.LeagueID == leagueID && r.UserID == userID {
			c := *r
			return &c, nil
		}
	}
	return nil, Forbiddenf("user is not a member of this league")
}

type memPlayers struct{ st *memState }

func (m *memPlayers) Exists(ctx context.Context, playerID uuid.UUID) (bool, error) {
	_, ok := m.st.players[playerID]
	return ok, nil
}

func (m *memPlayers) available(ctx context.Context, draftID, playerID uuid.UUID) bool {
	lots := &memLots{m.st}
	taken, _ := lots.PlayerHasLot(ctx, draftID, playerID)
	return !taken
}

func (m *memPlayers) BestAvailable(ctx context.Context, draftID, rosterID uuid.UUID) (uuid.UUID, bool, error) {
	for _, pid := range m.st.queues[rosterID] {
		if m.available(ctx, draftID, pid) {
			return pid, true, nil
		}
	}
	type ranked struct {
		id  uuid.UUID
		adp float64
	}
	var pool []ranked
	for pid, adp := range m.st.players {
		if m.available(ctx, draftID, pid) {
			pool = append(pool, ranked{pid, adp})
		}
	}
	if len(pool) == 0 {
		return uuid.Nil, false, nil
	}
	sort.Slice(pool, func(i, j int) bool {
		if pool[i].adp != pool[j].adp {
			return pool[i].adp < pool[j].adp
		}
		return pool[i].id.String() < pool[j].id.String()
	})
	return pool[0].id, true, nil
}

func (m *memPlayers) AnyAvailable(ctx context.Context, draftID uuid.UUID) (bool, error) {
	for pid := range m.st.players {
		if m.available(ctx, draftID, pid) {
			return true, nil
		}
	}
	return false, nil
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
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

// captureSink records published events in order.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *captureSink) byName(name string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.EventName() == name {
			out = append(out, ev)
		}
	}
	return out
}

// testEnv bundles the service and its fakes.
type testEnv struct {
	state   *memState
	runner  *memRunner
	clock   *fakeClock
	sink    *captureSink
	service *Service

	leagueID uuid.UUID
	draftID  uuid.UUID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	state := newMemState()
	env := &testEnv{
		state:    state,
		runner:   &memRunner{state: state},
		clock:    newFakeClock(),
		sink:     &captureSink{},
		leagueID: uuid.New(),
		draftID:  uuid.New(),
	}
	env.service = NewService(env.runner,
		WithClock(env.clock),
		WithBus(env.sink),
	)
	return env
}

// addRoster registers a league member and returns (rosterID, userID).
func (e *testEnv) addRoster() (uuid.UUID, uuid.UUID) {
	r := &Roster{ID: uuid.New(), LeagueID: e.leagueID, UserID: uuid.New()}
	e.state.rosters[r.ID] = r
	return r.ID, r.UserID
}

// addPlayer registers an undrafted player at the given ADP rank.
func (e *testEnv) addPlayer(adp float64) uuid.UUID {
	id := uuid.New()
	e.state.players[id] = adp
	return id
}

// startDraft creates an in-progress fast auction draft with the given roster
// order. The first roster holds the clock at pick 1.
func (e *testEnv) startDraft(settings DraftSettings, rosterIDs ...uuid.UUID) {
	deadline := e.clock.Now().Add(settings.NominationWindow())
	e.state.drafts[e.draftID] = &Draft{
		ID:              e.draftID,
		LeagueID:        e.leagueID,
		Status:          DraftInProgress,
		Type:            DraftTypeAuction,
		CurrentPick:     1,
		CurrentRosterID: rosterIDs[0],
		PickDeadline:    &deadline,
		Settings:        settings,
		CreatedAt:       e.clock.Now(),
	}
	for i, id := range rosterIDs {
		e.state.order[e.draftID] = append(e.state.order[e.draftID], DraftOrderEntry{
			DraftID:  e.draftID,
			RosterID: id,
			Position: i + 1,
		})
	}
}

// wonLot records a settled won lot so budget snapshots reflect past spending.
func (e *testEnv) wonLot(rosterID uuid.UUID, amount int64) {
	id := uuid.New()
	player := e.addPlayer(999)
	e.state.lots[id] = &Lot{
		ID:                id,
		DraftID:           e.draftID,
		PlayerID:          player,
		NominatorRosterID: rosterID,
		Status:            LotWon,
		WinningRosterID:   &rosterID,
		WinningBid:        &amount,
		CreatedAt:         e.clock.Now(),
	}
}
