package auction

import (
	"context"
	"testing"
	"time"
)

func TestSettleContestedLotWinnerPaysDisplayedPrice(t *testing.T) {
	env := newTestEnv(t)
	r1, u1 := env.addRoster()
	r2, u2 := env.addRoster()
	env.startDraft(DefaultSettings(), r1, r2)
	player := env.addPlayer(1)
	env.addPlayer(2)

	if _, err := env.service.Nominate(context.Background(), NominateRequest{DraftID: env.draftID, UserID: u1, PlayerID: player}); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	lot := activeLot(env.state, env.draftID)
	if _, err := env.service.SetMaxBid(context.Background(), BidRequest{DraftID: env.draftID, UserID: u2, LotID: lot.ID, MaxBid: 30}); err != nil {
		t.Fatalf("bid: %v", err)
	}

	env.clock.Advance(2 * time.Minute)
	if err := env.service.SettleExpiredLot(context.Background(), env.draftID, lot.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	settled := env.state.lots[lot.ID]
	if settled.Status != LotWon {
		t.Fatalf("status = %s, want won", settled.Status)
	}
	// r2 overtook at minBid+minIncrement = 2 and nobody raised.
	if settled.WinningRosterID == nil || *settled.WinningRosterID != r2 {
		t.Errorf("winner = %v, want %s", settled.WinningRosterID, r2)
	}
	if settled.WinningBid == nil || *settled.WinningBid != 2 {
		t.Errorf("winning bid = %v, want 2", settled.WinningBid)
	}

	if got := env.sink.byName("auction:lot_settled"); len(got) != 1 {
		t.Errorf("lot_settled events = %d, want 1", len(got))
	}
	// Settlement hands the clock to the next nominator in its own
	// transaction.
	if got := env.sink.byName("auction:nominator_changed"); len(got) != 1 {
		t.Errorf("nominator_changed events = %d, want 1", len(got))
	}
	if d := env.state.drafts[env.draftID]; d.CurrentPick != 2 || d.CurrentRosterID != r2 {
		t.Errorf("rotation: pick=%d roster=%s, want 2/%s", d.CurrentPick, d.CurrentRosterID, r2)
	}
}

func TestSettleUncontestedLotPasses(t *testing.T) {
	env := newTestEnv(t)
	r1, u1 := env.addRoster()
	r2, _ := env.addRoster()
	env.startDraft(DefaultSettings(), r1, r2)
	player := env.addPlayer(1)
	env.addPlayer(2)

	if _, err := env.service.Nominate(context.Background(), NominateRequest{DraftID: env.draftID, UserID: u1, PlayerID: player}); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	lot := activeLot(env.state, env.draftID)

	env.clock.Advance(2 * time.Minute)
	if err := env.service.SettleExpiredLot(context.Background(), env.draftID, lot.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	settled := env.state.lots[lot.ID]
	if settled.Status != LotPassed {
		t.Fatalf("status = %s, want passed: the nominator's opening proxy is not a rival", settled.Status)
	}
	if settled.WinningRosterID != nil {
		t.Errorf("winner = %s, want none", *settled.WinningRosterID)
	}
}

func TestSettleFallsBackWhenLeaderCannotPay(t *testing.T) {
	env := newTestEnv(t)
	r1, _ := env.addRoster()
	r2, _ := env.addRoster()
	r3, _ := env.addRoster()
	env.startDraft(DefaultSettings(), r1, r2, r3)
	player := env.addPlayer(1)
	env.addPlayer(2)

	// r2 leads at 50 but has burned its budget since bidding; r3's proxy
	// backstops the lot.
	for i := 0; i < 5; i++ {
		env.wonLot(r2, 38)
	}
	deadline := env.clock.Now().Add(10 * time.Second)
	lot := env.addLot(player, r1, 50, &r2, deadline)
	env.addProxy(lot.ID, r2, 60)
	env.addProxy(lot.ID, r3, 40)

	env.clock.Advance(11 * time.Second)
	if err := env.service.SettleExpiredLot(context.Background(), env.draftID, lot.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	settled := env.state.lots[lot.ID]
	if settled.Status != LotWon {
		t.Fatalf("status = %s, want won", settled.Status)
	}
	if settled.WinningRosterID == nil || *settled.WinningRosterID != r3 {
		t.Errorf("winner = %v, want fallback %s", settled.WinningRosterID, r3)
	}
}

func TestSettleStaleWorkItemNoOps(t *testing.T) {
	env := newTestEnv(t)
	r1, _ := env.addRoster()
	env.startDraft(DefaultSettings(), r1)
	player := env.addPlayer(1)
	lot := env.addLot(player, r1, 1, &r1, env.clock.Now().Add(30*time.Second))
	env.addProxy(lot.ID, r1, 1)

	if err := env.service.SettleExpiredLot(context.Background(), env.draftID, lot.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got := env.state.lots[lot.ID]; got.Status != LotActive {
		t.Errorf("status = %s, want still active", got.Status)
	}
	if got := env.sink.byName("auction:lot_settled"); len(got) != 0 {
		t.Errorf("events published for stale item: %d", len(got))
	}
}

func TestSettleBidWarCompletesDraftWhenPoolExhausts(t *testing.T) {
	env := newTestEnv(t)
	r1, u1 := env.addRoster()
	r2, u2 := env.addRoster()
	env.startDraft(DefaultSettings(), r1, r2)
	player := env.addPlayer(1)

	if _, err := env.service.Nominate(context.Background(), NominateRequest{DraftID: env.draftID, UserID: u1, PlayerID: player}); err != nil {
		t.Fatalf("nominate: %v", err)
	}
	lot := activeLot(env.state, env.draftID)

	// r2 overtakes the opening bid: displayed price is r1's max plus the
	// increment, far below r2's ceiling.
	res, err := env.service.SetMaxBid(context.Background(), BidRequest{DraftID: env.draftID, UserID: u2, LotID: lot.ID, MaxBid: 30})
	if err != nil {
		t.Fatalf("overtake: %v", err)
	}
	if res.Lot.CurrentBid != 2 || res.Lot.CurrentBidderID == nil || *res.Lot.CurrentBidderID != r2 {
		t.Fatalf("after overtake: bid=%d leader=%v, want 2/%s", res.Lot.CurrentBid, res.Lot.CurrentBidderID, r2)
	}

	// r1 counters above r2's ceiling and pays second price.
	res, err = env.service.SetMaxBid(context.Background(), BidRequest{DraftID: env.draftID, UserID: u1, LotID: lot.ID, MaxBid: 50})
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if res.Lot.CurrentBid != 31 || res.Lot.CurrentBidderID == nil || *res.Lot.CurrentBidderID != r1 {
		t.Fatalf("after counter: bid=%d leader=%v, want 31/%s", res.Lot.CurrentBid, res.Lot.CurrentBidderID, r1)
	}
	if len(res.Outbid) != 1 || res.Outbid[0].PreviousLeader != r2 || res.Outbid[0].NewLeadingBid != 31 {
		t.Errorf("outbid notices = %+v, want one displacing %s at 31", res.Outbid, r2)
	}

	env.clock.Advance(2 * time.Minute)
	if err := env.service.SettleExpiredLot(context.Background(), env.draftID, lot.ID); err != nil {
		t.Fatalf("settle: %v", err)
	}

	settled := env.state.lots[lot.ID]
	if settled.Status != LotWon || settled.WinningRosterID == nil || *settled.WinningRosterID != r1 {
		t.Fatalf("settled = %s/%v, want won by %s", settled.Status, settled.WinningRosterID, r1)
	}
	if settled.WinningBid == nil || *settled.WinningBid != 31 {
		t.Errorf("winning bid = %v, want 31", settled.WinningBid)
	}

	// The only player is gone, so rotation detects completion instead of
	// handing the clock onward.
	if d := env.state.drafts[env.draftID]; d.Status != DraftCompleted {
		t.Errorf("draft status = %s, want completed", d.Status)
	}
	completed := env.sink.byName("draft:completed")
	if len(completed) != 1 {
		t.Fatalf("draft:completed events = %d, want 1", len(completed))
	}
	ev, ok := completed[0].(DraftCompletedEvent)
	if !ok {
		t.Fatalf("completion event has type %T", completed[0])
	}
	if ev.DraftID != env.draftID || ev.LeagueID != env.leagueID {
		t.Errorf("completion event = %+v, want draft %s league %s", ev, env.draftID, env.leagueID)
	}

	snap, err := (&memLots{env.state}).BudgetSnapshot(context.Background(), env.draftID, r1)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Spent != 31 || snap.WonCount != 1 || snap.LeadingCommitment != 0 {
		t.Errorf("winner snapshot = %+v, want spent 31, one win, no live commitment", snap)
	}
}
