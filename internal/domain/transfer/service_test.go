package transfer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/gameportal/portal-api/internal/domain/wallet"
	"github.com/gameportal/portal-api/internal/pkg/gamedb"
)

type fakeLedger struct {
	mu      sync.Mutex
	applied []wallet.ApplyParams
	errs    []error // popped per call, nil entries mean success
}

func (f *fakeLedger) Apply(_ context.Context, p wallet.ApplyParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var err error
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	if err != nil {
		return err
	}
	f.applied = append(f.applied, p)
	return nil
}

type fakeGame struct {
	available    bool
	offline      bool
	char         *gamedb.Character
	creditErr    error
	debitErr     error
	creditCalled int
	debitCalled  int
	lastCoins    int64
}

func (f *fakeGame) Available(context.Context) bool { return f.available }
func (f *fakeGame) RequiresOffline() bool          { return f.offline }

func (f *fakeGame) FindCharacter(context.Context, string, string) (*gamedb.Character, error) {
	return f.char, nil
}

func (f *fakeGame) CreditCoin(_ context.Context, _ int64, _ int, amount int64) error {
	f.creditCalled++
	f.lastCoins = amount
	return f.creditErr
}

func (f *fakeGame) DebitCoin(_ context.Context, _ int64, _ int, amount int64) error {
	f.debitCalled++
	f.lastCoins = amount
	return f.debitErr
}

type fakeAccounts struct {
	account string
	err     error
}

func (f *fakeAccounts) AccountFor(context.Context, uuid.UUID) (string, error) {
	return f.account, f.err
}

func ownerOf(account string) *fakeAccounts {
	return &fakeAccounts{account: account}
}

type fakeDedupe struct {
	mu     sync.Mutex
	locks  map[string]bool
	done   map[string]bool
	marked int
}

func newFakeDedupe() *fakeDedupe {
	return &fakeDedupe{locks: map[string]bool{}, done: map[string]bool{}}
}

func (f *fakeDedupe) AcquireLock(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.locks[key] {
		return false, nil
	}
	f.locks[key] = true
	return true, nil
}

func (f *fakeDedupe) ReleaseLock(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.locks, key)
	return nil
}

func (f *fakeDedupe) MarkCompleted(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done[key] = true
	f.marked++
	return nil
}

func (f *fakeDedupe) IsCompleted(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done[key], nil
}

type fakeIncidents struct {
	recorded []Incident
}

func (f *fakeIncidents) Record(_ context.Context, inc Incident) error {
	f.recorded = append(f.recorded, inc)
	return nil
}

func testConfig() Config {
	return Config{
		MinAmount:      100,
		MaxAmount:      100000,
		CoinID:         57,
		CoinMultiplier: 100,
		BonusEnabled:   true,
	}
}

func testChar() *gamedb.Character {
	return &gamedb.Character{ID: 268476001, Name: "Recks", Account: "recks", Online: false}
}

func testRequest() Request {
	return Request{
		UserID:    uuid.New(),
		Account:   "recks",
		Character: "Recks",
		Amount:    1500,
		Kind:      wallet.KindNormal,
	}
}

func TestToCharacterAppliesBothLegs(t *testing.T) {
	ledger := &fakeLedger{}
	game := &fakeGame{available: true, char: testChar()}
	dedupe := newFakeDedupe()
	svc := NewService(testConfig(), ledger, game, ownerOf("recks"), dedupe, &fakeIncidents{})

	res, err := svc.ToCharacter(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("ToCharacter: %v", err)
	}
	if res.Coins != 1500 {
		t.Errorf("coins = %d, want 1500", res.Coins)
	}
	if len(ledger.applied) != 1 {
		t.Fatalf("ledger legs = %d, want 1", len(ledger.applied))
	}
	if ledger.applied[0].Direction != wallet.DirectionOut {
		t.Errorf("local leg direction = %s, want OUT", ledger.applied[0].Direction)
	}
	if game.creditCalled != 1 || game.lastCoins != 1500 {
		t.Errorf("remote credit called %d times with %d coins", game.creditCalled, game.lastCoins)
	}
	if dedupe.marked != 1 {
		t.Errorf("completion markers = %d, want 1", dedupe.marked)
	}
}

func TestFromCharacterCreditsWalletFirst(t *testing.T) {
	ledger := &fakeLedger{}
	game := &fakeGame{available: true, char: testChar()}
	svc := NewService(testConfig(), ledger, game, ownerOf("recks"), newFakeDedupe(), &fakeIncidents{})

	_, err := svc.FromCharacter(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("FromCharacter: %v", err)
	}
	if len(ledger.applied) != 1 || ledger.applied[0].Direction != wallet.DirectionIn {
		t.Fatalf("expected one IN ledger leg, got %+v", ledger.applied)
	}
	if game.debitCalled != 1 {
		t.Errorf("remote debit called %d times, want 1", game.debitCalled)
	}
}

func TestAmountBounds(t *testing.T) {
	svc := NewService(testConfig(), &fakeLedger{}, &fakeGame{available: true, char: testChar()}, ownerOf("recks"), newFakeDedupe(), &fakeIncidents{})

	for _, amount := range []int64{0, 99, 100001} {
		req := testRequest()
		req.Amount = amount
		if _, err := svc.ToCharacter(context.Background(), req); !errors.Is(err, ErrAmountOutOfRange) {
			t.Errorf("amount %d: err = %v, want ErrAmountOutOfRange", amount, err)
		}
	}
}

func TestBonusDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.BonusEnabled = false
	svc := NewService(cfg, &fakeLedger{}, &fakeGame{available: true, char: testChar()}, ownerOf("recks"), newFakeDedupe(), &fakeIncidents{})

	req := testRequest()
	req.Kind = wallet.KindBonus
	if _, err := svc.ToCharacter(context.Background(), req); !errors.Is(err, ErrBonusDisabled) {
		t.Errorf("err = %v, want ErrBonusDisabled", err)
	}
}

func TestGameUnavailable(t *testing.T) {
	ledger := &fakeLedger{}
	svc := NewService(testConfig(), ledger, &fakeGame{available: false}, ownerOf("recks"), newFakeDedupe(), &fakeIncidents{})

	if _, err := svc.ToCharacter(context.Background(), testRequest()); !errors.Is(err, ErrGameUnavailable) {
		t.Errorf("err = %v, want ErrGameUnavailable", err)
	}
	if len(ledger.applied) != 0 {
		t.Errorf("ledger touched while game store unavailable")
	}
}

func TestCharacterNotFound(t *testing.T) {
	svc := NewService(testConfig(), &fakeLedger{}, &fakeGame{available: true, char: nil}, ownerOf("recks"), newFakeDedupe(), &fakeIncidents{})

	if _, err := svc.ToCharacter(context.Background(), testRequest()); !errors.Is(err, ErrCharacterNotFound) {
		t.Errorf("err = %v, want ErrCharacterNotFound", err)
	}
}

func TestForeignAccountRejected(t *testing.T) {
	ledger := &fakeLedger{}
	game := &fakeGame{available: true, char: testChar()}
	svc := NewService(testConfig(), ledger, game, ownerOf("someoneelse"), newFakeDedupe(), &fakeIncidents{})

	req := testRequest() // names account "recks", which this user never linked
	if _, err := svc.FromCharacter(context.Background(), req); !errors.Is(err, ErrCharacterNotOwned) {
		t.Fatalf("err = %v, want ErrCharacterNotOwned", err)
	}
	if game.debitCalled != 0 {
		t.Errorf("foreign character debited %d times", game.debitCalled)
	}
	if len(ledger.applied) != 0 {
		t.Errorf("wallet credited for a foreign character: %+v", ledger.applied)
	}
	if _, err := svc.ToCharacter(context.Background(), req); !errors.Is(err, ErrCharacterNotOwned) {
		t.Errorf("ToCharacter err = %v, want ErrCharacterNotOwned", err)
	}
}

func TestUnlinkedUserRejected(t *testing.T) {
	svc := NewService(testConfig(), &fakeLedger{}, &fakeGame{available: true, char: testChar()}, ownerOf(""), newFakeDedupe(), &fakeIncidents{})

	if _, err := svc.ToCharacter(context.Background(), testRequest()); !errors.Is(err, ErrCharacterNotOwned) {
		t.Errorf("err = %v, want ErrCharacterNotOwned", err)
	}
}

func TestLinkedAccountMatchIsCaseInsensitive(t *testing.T) {
	svc := NewService(testConfig(), &fakeLedger{}, &fakeGame{available: true, char: testChar()}, ownerOf("Recks"), newFakeDedupe(), &fakeIncidents{})

	if _, err := svc.ToCharacter(context.Background(), testRequest()); err != nil {
		t.Errorf("ToCharacter: %v", err)
	}
}

func TestCharacterMustBeOffline(t *testing.T) {
	char := testChar()
	char.Online = true
	svc := NewService(testConfig(), &fakeLedger{}, &fakeGame{available: true, offline: true, char: char}, ownerOf("recks"), newFakeDedupe(), &fakeIncidents{})

	if _, err := svc.ToCharacter(context.Background(), testRequest()); !errors.Is(err, ErrCharacterOnline) {
		t.Errorf("err = %v, want ErrCharacterOnline", err)
	}
}

func TestOnlineCharacterAllowedWhenOfflineNotRequired(t *testing.T) {
	char := testChar()
	char.Online = true
	svc := NewService(testConfig(), &fakeLedger{}, &fakeGame{available: true, offline: false, char: char}, ownerOf("recks"), newFakeDedupe(), &fakeIncidents{})

	if _, err := svc.ToCharacter(context.Background(), testRequest()); err != nil {
		t.Errorf("ToCharacter: %v", err)
	}
}

func TestLockHeldRejectsAsInProgress(t *testing.T) {
	dedupe := newFakeDedupe()
	svc := NewService(testConfig(), &fakeLedger{}, &fakeGame{available: true, char: testChar()}, ownerOf("recks"), dedupe, &fakeIncidents{})

	req := testRequest()
	dedupe.locks[dedupeKey(DirectionToCharacter, req)] = true

	if _, err := svc.ToCharacter(context.Background(), req); !errors.Is(err, ErrInProgress) {
		t.Errorf("err = %v, want ErrInProgress", err)
	}
}

func TestCompletedMarkerRejectsAsDuplicate(t *testing.T) {
	ledger := &fakeLedger{}
	dedupe := newFakeDedupe()
	svc := NewService(testConfig(), ledger, &fakeGame{available: true, char: testChar()}, ownerOf("recks"), dedupe, &fakeIncidents{})

	req := testRequest()
	if _, err := svc.ToCharacter(context.Background(), req); err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	if _, err := svc.ToCharacter(context.Background(), req); !errors.Is(err, ErrDuplicate) {
		t.Errorf("second transfer err = %v, want ErrDuplicate", err)
	}
	if len(ledger.applied) != 1 {
		t.Errorf("ledger legs = %d, want 1 after duplicate replay", len(ledger.applied))
	}
}

func TestDistinctAmountsAreDistinctTransfers(t *testing.T) {
	ledger := &fakeLedger{}
	svc := NewService(testConfig(), ledger, &fakeGame{available: true, char: testChar()}, ownerOf("recks"), newFakeDedupe(), &fakeIncidents{})

	req := testRequest()
	if _, err := svc.ToCharacter(context.Background(), req); err != nil {
		t.Fatalf("first transfer: %v", err)
	}
	req.Amount = 2000
	if _, err := svc.ToCharacter(context.Background(), req); err != nil {
		t.Fatalf("second transfer: %v", err)
	}
	if len(ledger.applied) != 2 {
		t.Errorf("ledger legs = %d, want 2", len(ledger.applied))
	}
}

func TestRemoteFailureCompensatesLocalLeg(t *testing.T) {
	ledger := &fakeLedger{}
	game := &fakeGame{available: true, char: testChar(), creditErr: errors.New("dial tcp: connection refused")}
	dedupe := newFakeDedupe()
	svc := NewService(testConfig(), ledger, game, ownerOf("recks"), dedupe, &fakeIncidents{})

	_, err := svc.ToCharacter(context.Background(), testRequest())
	if !errors.Is(err, ErrRemoteFailed) {
		t.Fatalf("err = %v, want ErrRemoteFailed", err)
	}
	if len(ledger.applied) != 2 {
		t.Fatalf("ledger legs = %d, want OUT plus reversal IN", len(ledger.applied))
	}
	if ledger.applied[0].Direction != wallet.DirectionOut || ledger.applied[1].Direction != wallet.DirectionIn {
		t.Errorf("leg directions = %s, %s; want OUT then IN", ledger.applied[0].Direction, ledger.applied[1].Direction)
	}
	if ledger.applied[0].Amount != ledger.applied[1].Amount {
		t.Errorf("reversal amount %d does not match original %d", ledger.applied[1].Amount, ledger.applied[0].Amount)
	}
	if dedupe.marked != 0 {
		t.Errorf("completion marker written for a failed transfer")
	}
}

func TestInsufficientItemsSurfacesAfterCompensation(t *testing.T) {
	ledger := &fakeLedger{}
	game := &fakeGame{available: true, char: testChar(), debitErr: gamedb.ErrInsufficientItems}
	svc := NewService(testConfig(), ledger, game, ownerOf("recks"), newFakeDedupe(), &fakeIncidents{})

	_, err := svc.FromCharacter(context.Background(), testRequest())
	if !errors.Is(err, gamedb.ErrInsufficientItems) {
		t.Fatalf("err = %v, want ErrInsufficientItems", err)
	}
	if len(ledger.applied) != 2 {
		t.Errorf("ledger legs = %d, want IN plus reversal OUT", len(ledger.applied))
	}
}

func TestCompensationFailureRecordsIncident(t *testing.T) {
	ledger := &fakeLedger{errs: []error{nil, errors.New("pq: deadlock detected")}}
	game := &fakeGame{available: true, char: testChar(), creditErr: errors.New("mysql is down")}
	incidents := &fakeIncidents{}
	svc := NewService(testConfig(), ledger, game, ownerOf("recks"), newFakeDedupe(), incidents)

	req := testRequest()
	_, err := svc.ToCharacter(context.Background(), req)
	if !errors.Is(err, ErrCompensationFailed) {
		t.Fatalf("err = %v, want ErrCompensationFailed", err)
	}
	if len(incidents.recorded) != 1 {
		t.Fatalf("incidents = %d, want 1", len(incidents.recorded))
	}
	inc := incidents.recorded[0]
	if inc.UserID != req.UserID || inc.Amount != req.Amount {
		t.Errorf("incident context = %+v, want user %s amount %d", inc, req.UserID, req.Amount)
	}
	if inc.RemoteError == "" || inc.ReversalError == "" {
		t.Errorf("incident missing error context: %+v", inc)
	}
}

func TestConcurrentSameKeySingleEffect(t *testing.T) {
	ledger := &fakeLedger{}
	dedupe := newFakeDedupe()
	svc := NewService(testConfig(), ledger, &fakeGame{available: true, char: testChar()}, ownerOf("recks"), dedupe, &fakeIncidents{})

	req := testRequest()
	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	outcomes := map[string]int{}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ToCharacter(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				outcomes["ok"]++
			case errors.Is(err, ErrInProgress), errors.Is(err, ErrDuplicate):
				outcomes["dedup"]++
			default:
				outcomes["other"]++
			}
		}()
	}
	wg.Wait()

	if outcomes["ok"] != 1 {
		t.Errorf("successful applications = %d, want exactly 1 (outcomes %v)", outcomes["ok"], outcomes)
	}
	if outcomes["other"] != 0 {
		t.Errorf("unexpected errors: %v", outcomes)
	}
	if len(ledger.applied) != 1 {
		t.Errorf("ledger legs = %d, want 1", len(ledger.applied))
	}
}
