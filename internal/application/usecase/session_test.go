package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/namankalla/nishi/internal/domain"
	"github.com/namankalla/nishi/internal/infrastructure/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) set(date string) {
	t, err := time.ParseInLocation(domain.DateLayout, date, time.UTC)
	if err != nil {
		panic(err)
	}
	c.t = t.Add(9 * time.Hour)
}

type fixture struct {
	uc     *GardenUseCase
	plants *memory.PlantStore
	ledger *memory.Ledger
	clock  *clock
	s      *Session
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		plants: memory.NewPlantStore(),
		ledger: memory.NewLedger(),
		clock:  &clock{},
	}
	f.clock.set("2024-01-01")
	opts = append([]Option{WithClock(f.clock.now), WithIdempotencyGuard(memory.NewGuard())}, opts...)
	f.uc = NewGardenUseCase(f.plants, f.ledger, domain.DefaultPolicy(), opts...)
	f.s = f.uc.Session("u1")
	return f
}

func (f *fixture) plant(t *testing.T) domain.Plant {
	t.Helper()
	p, err := f.s.CreatePlant(context.Background(), "lemon", "Lemmy")
	if err != nil {
		t.Fatalf("CreatePlant: %v", err)
	}
	return p
}

func (f *fixture) credit(t *testing.T, n int) {
	t.Helper()
	if _, err := f.ledger.Credit(context.Background(), "u1", n); err != nil {
		t.Fatalf("Credit: %v", err)
	}
}

func TestCreatePlantDefaults(t *testing.T) {
	f := newFixture(t)
	p, err := f.s.CreatePlant(context.Background(), "", "   ")
	if err != nil {
		t.Fatalf("CreatePlant: %v", err)
	}
	if p.Species != domain.SpeciesMonstera || p.Name != domain.DefaultPlantName {
		t.Fatalf("defaults = %s/%q", p.Species, p.Name)
	}
	if p.CreatedAt != "2024-01-01" || p.LastWateredOn != "2024-01-01" {
		t.Fatalf("dates = %s/%s", p.CreatedAt, p.LastWateredOn)
	}
	if p.WaterCountDay != 1 || p.WaterCount != 0 || p.IsDead || p.IsTransplanted {
		t.Fatalf("counters = %+v", p)
	}
	if cur := f.s.Current(); cur == nil || cur.ID != p.ID {
		t.Fatalf("created plant is not current")
	}
	if len(f.s.Plants()) != 1 {
		t.Fatalf("plants = %d, want 1", len(f.s.Plants()))
	}
	st, err := f.s.Status()
	if err != nil || !st.CanWater || st.MissedDays != 0 || st.IsDead {
		t.Fatalf("status = %+v, %v", st, err)
	}
}

func TestCreatePlantRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	if _, err := f.s.CreatePlant(context.Background(), "oak", "x"); !errors.Is(err, domain.ErrInvalidSpecies) {
		t.Fatalf("species err = %v", err)
	}
	long := "abcdefghijklmnopqrstuvwxyz012345"
	if _, err := f.s.CreatePlant(context.Background(), "cactus", long); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("name err = %v", err)
	}
}

func TestWaterTodayUpToCap(t *testing.T) {
	f := newFixture(t)
	p := f.plant(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		got, err := f.s.WaterToday(ctx, p.ID, nil)
		if err != nil {
			t.Fatalf("watering %d: %v", i, err)
		}
		if got.WaterCount != i || got.WaterCountDay != 1 {
			t.Fatalf("watering %d: count %d day %d", i, got.WaterCount, got.WaterCountDay)
		}
	}
	_, err := f.s.WaterToday(ctx, p.ID, nil)
	if !errors.Is(err, domain.ErrDailyCapReached) {
		t.Fatalf("6th watering = %v, want cap error", err)
	}
	if err.Error() != "Already watered 5 times today" {
		t.Fatalf("message = %q", err.Error())
	}

	stored, _ := f.plants.Get(ctx, p.ID)
	if stored.WaterCount != 5 {
		t.Fatalf("stored count = %d", stored.WaterCount)
	}
}

func TestWaterTodayNextDayResetsCount(t *testing.T) {
	f := newFixture(t)
	p := f.plant(t)
	ctx := context.Background()
	if _, err := f.s.WaterToday(ctx, p.ID, nil); err != nil {
		t.Fatal(err)
	}

	f.clock.set("2024-01-02")
	got, err := f.s.WaterToday(ctx, p.ID, nil)
	if err != nil {
		t.Fatalf("next day: %v", err)
	}
	if got.WaterCountDay != 2 || got.WaterCount != 1 || got.LastWateredOn != "2024-01-02" {
		t.Fatalf("next day plant = %+v", got)
	}
}

func TestWaterTodayDayIndexOverrideIsClamped(t *testing.T) {
	f := newFixture(t)
	p := f.plant(t)
	over := 99
	got, err := f.s.WaterToday(context.Background(), p.ID, &over)
	if err != nil {
		t.Fatal(err)
	}
	if got.WaterCountDay != 28 {
		t.Fatalf("day = %d, want 28", got.WaterCountDay)
	}
}

func TestWaterTodayRules(t *testing.T) {
	ctx := context.Background()

	t.Run("no plant loaded", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.s.WaterToday(ctx, "missing", nil); !errors.Is(err, domain.ErrNoPlant) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("other plant than current", func(t *testing.T) {
		f := newFixture(t)
		a := f.plant(t)
		f.plant(t)
		if _, err := f.s.WaterToday(ctx, a.ID, nil); !errors.Is(err, domain.ErrNoPlant) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("recovery required", func(t *testing.T) {
		f := newFixture(t)
		p := f.plant(t)
		f.clock.set("2024-01-04")
		_, err := f.s.WaterToday(ctx, p.ID, nil)
		if !errors.Is(err, domain.ErrRecoveryRequired) || err.Error() != "Recover missed days first" {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("grace day", func(t *testing.T) {
		f := newFixture(t)
		p := f.plant(t)
		f.clock.set("2024-01-02")
		if _, err := f.s.WaterToday(ctx, p.ID, nil); err != nil {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("dead", func(t *testing.T) {
		f := newFixture(t)
		p := f.plant(t)
		f.clock.set("2024-01-12")
		_, err := f.s.WaterToday(ctx, p.ID, nil)
		if !errors.Is(err, domain.ErrPlantDead) || err.Error() != "Plant is dead" {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("transplanted is a no-op", func(t *testing.T) {
		f := newFixture(t)
		p := f.plant(t)
		tp, err := f.s.TransplantPlant(ctx, p.ID)
		if err != nil {
			t.Fatal(err)
		}
		got, err := f.s.WaterToday(ctx, p.ID, nil)
		if err != nil {
			t.Fatalf("err = %v", err)
		}
		if got.Version != tp.Version || got.WaterCount != 0 {
			t.Fatalf("transplanted plant changed: %+v", got)
		}
	})
}

func TestRecoverNotEnoughPointsLeavesPlantUnchanged(t *testing.T) {
	f := newFixture(t)
	p := f.plant(t)
	f.credit(t, 2)
	f.clock.set("2024-01-04")

	_, err := f.s.RecoverMissedDays(context.Background(), p.ID, "")
	if !errors.Is(err, domain.ErrNotEnoughPoints) || err.Error() != "Not enough points" {
		t.Fatalf("err = %v", err)
	}
	stored, _ := f.plants.Get(context.Background(), p.ID)
	if stored.Version != p.Version || stored.LastWateredOn != "2024-01-01" || stored.RecoveredOn != "" {
		t.Fatalf("plant changed: %+v", stored)
	}
	if bal, _ := f.ledger.Balance(context.Background(), "u1"); bal != 2 {
		t.Fatalf("balance = %d, want 2", bal)
	}
}

func TestRecoverThenWaterUpToCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t)
	f.credit(t, 5)
	f.clock.set("2024-01-04")

	got, err := f.s.RecoverMissedDays(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got.LastWateredOn != "2024-01-04" || got.RecoveredOn != "2024-01-04" {
		t.Fatalf("recovered plant = %+v", got)
	}
	if got.WaterCountDay != 4 || got.WaterCount != 0 {
		t.Fatalf("cap fields = %d/%d", got.WaterCountDay, got.WaterCount)
	}
	if bal, _ := f.ledger.Balance(ctx, "u1"); bal != 2 {
		t.Fatalf("balance = %d, want 2", bal)
	}
	if st, _ := f.s.Status(); !st.CanWater || st.MissedDays != 0 {
		t.Fatalf("status after recover = %+v", st)
	}

	for i := 1; i <= 5; i++ {
		if _, err := f.s.WaterToday(ctx, p.ID, nil); err != nil {
			t.Fatalf("watering %d: %v", i, err)
		}
	}
	if _, err := f.s.WaterToday(ctx, p.ID, nil); !errors.Is(err, domain.ErrDailyCapReached) {
		t.Fatalf("6th watering = %v", err)
	}
	if cur := f.s.Current(); cur.RecoveredOn != "" {
		t.Fatalf("recoveredOn not cleared: %q", cur.RecoveredOn)
	}
}

func TestRecoverCarriesCountOnSameDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t)
	f.credit(t, 5)

	// Pin the day-1 watering to day 3 so the count is still live after recovery.
	day := 3
	if _, err := f.s.WaterToday(ctx, p.ID, &day); err != nil {
		t.Fatal(err)
	}
	f.clock.set("2024-01-03")
	got, err := f.s.RecoverMissedDays(ctx, p.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.WaterCountDay != 3 || got.WaterCount != 1 {
		t.Fatalf("cap fields = %d/%d, want 3/1", got.WaterCountDay, got.WaterCount)
	}
}

func TestRecoverNoops(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing missed", func(t *testing.T) {
		f := newFixture(t)
		p := f.plant(t)
		got, err := f.s.RecoverMissedDays(ctx, p.ID, "")
		if err != nil || got.Version != p.Version {
			t.Fatalf("got %+v, %v", got, err)
		}
	})

	t.Run("transplanted", func(t *testing.T) {
		f := newFixture(t)
		p := f.plant(t)
		if _, err := f.s.TransplantPlant(ctx, p.ID); err != nil {
			t.Fatal(err)
		}
		f.clock.set("2024-01-05")
		if _, err := f.s.RecoverMissedDays(ctx, p.ID, ""); err != nil {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("dead", func(t *testing.T) {
		f := newFixture(t)
		p := f.plant(t)
		f.credit(t, 100)
		f.clock.set("2024-01-11")
		if _, err := f.s.RecoverMissedDays(ctx, p.ID, ""); !errors.Is(err, domain.ErrPlantDead) {
			t.Fatalf("err = %v", err)
		}
		if bal, _ := f.ledger.Balance(ctx, "u1"); bal != 100 {
			t.Fatalf("balance = %d, want 100", bal)
		}
	})
}

func TestRecoverIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t)
	f.credit(t, 10)
	f.clock.set("2024-01-04")

	first, err := f.s.RecoverMissedDays(ctx, p.ID, "req-1")
	if err != nil {
		t.Fatal(err)
	}
	again, err := f.s.RecoverMissedDays(ctx, p.ID, "req-1")
	if err != nil {
		t.Fatal(err)
	}
	if again.Version != first.Version {
		t.Fatalf("retry wrote the plant again")
	}
	if bal, _ := f.ledger.Balance(ctx, "u1"); bal != 7 {
		t.Fatalf("balance = %d, want 7", bal)
	}
}

func TestRecoverKeyReleasedOnRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t)
	f.clock.set("2024-01-04")

	if _, err := f.s.RecoverMissedDays(ctx, p.ID, "req-1"); !errors.Is(err, domain.ErrNotEnoughPoints) {
		t.Fatalf("err = %v", err)
	}
	f.credit(t, 3)
	got, err := f.s.RecoverMissedDays(ctx, p.ID, "req-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.RecoveredOn != "2024-01-04" {
		t.Fatalf("retry after top-up did not recover: %+v", got)
	}
}

// failingSaves wraps a store and fails every Save.
type failingSaves struct {
	*memory.PlantStore
}

var errStoreDown = errors.New("store unavailable")

func (failingSaves) Save(context.Context, *domain.Plant) error { return errStoreDown }

func TestRecoverRefundsWhenWriteFails(t *testing.T) {
	store := memory.NewPlantStore()
	ledger := memory.NewLedger()
	c := &clock{}
	c.set("2024-01-01")

	ctx := context.Background()
	p := domain.NewPlant("u1", domain.SpeciesSnake, "Sly", "2024-01-01")
	if err := store.Create(ctx, &p); err != nil {
		t.Fatal(err)
	}
	if _, err := ledger.Credit(ctx, "u1", 5); err != nil {
		t.Fatal(err)
	}

	uc := NewGardenUseCase(failingSaves{store}, ledger, domain.DefaultPolicy(), WithClock(c.now))
	s := uc.Session("u1")
	if _, err := s.LoadPlant(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	c.set("2024-01-04")

	_, err := s.RecoverMissedDays(ctx, p.ID, "")
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("err = %v, want store error", err)
	}
	if bal, _ := ledger.Balance(ctx, "u1"); bal != 5 {
		t.Fatalf("balance = %d, want refund to 5", bal)
	}
	if cur := s.Current(); cur.RecoveredOn != "" {
		t.Fatalf("cache updated despite failed write")
	}
}

func TestMutationsRereadStoredPlant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t)

	other := f.uc.Session("u1")
	if _, err := other.LoadPlant(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := other.WaterToday(ctx, p.ID, nil); err != nil {
		t.Fatal(err)
	}
	// f.s holds an older copy; the write must build on the stored count.
	got, err := f.s.WaterToday(ctx, p.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.WaterCount != 2 {
		t.Fatalf("count = %d, want 2", got.WaterCount)
	}
}

func TestUnreadableLastWateredOnIsDead(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, WithLogger(zap.New(core)))
	ctx := context.Background()

	p := domain.NewPlant("u1", domain.SpeciesSnake, "Sly", "2024-01-01")
	p.LastWateredOn = "01/01/2024"
	if err := f.plants.Create(ctx, &p); err != nil {
		t.Fatal(err)
	}
	f.credit(t, 100)
	if _, err := f.s.LoadPlant(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	if n := logs.FilterMessage("plant has an unreadable date").FilterField(zap.String("plant_id", p.ID)).Len(); n == 0 {
		t.Fatalf("corrupt date not logged: %+v", logs.All())
	}

	st, _ := f.s.Status()
	if !st.IsDead || st.CanWater {
		t.Fatalf("status = %+v, want dead", st)
	}
	if _, err := f.s.WaterToday(ctx, p.ID, nil); !errors.Is(err, domain.ErrPlantDead) {
		t.Fatalf("water err = %v, want ErrPlantDead", err)
	}
	if _, err := f.s.RecoverMissedDays(ctx, p.ID, ""); !errors.Is(err, domain.ErrPlantDead) {
		t.Fatalf("recover err = %v, want ErrPlantDead", err)
	}
	if bal, _ := f.ledger.Balance(ctx, "u1"); bal != 100 {
		t.Fatalf("balance = %d, want untouched 100", bal)
	}

	got, err := f.s.TransplantPlant(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.LastWateredOn != "2024-01-01" || got.CheckDates() != nil {
		t.Fatalf("transplant did not repair dates: %+v", got)
	}
}

func TestCreditPoints(t *testing.T) {
	m := &fakeMetrics{}
	f := newFixture(t, WithMetrics(m))
	ctx := context.Background()

	for _, amount := range []int{0, -5} {
		if _, err := f.uc.Credit(ctx, "u1", amount, "journal"); !errors.Is(err, domain.ErrInvalidAmount) {
			t.Fatalf("Credit(%d) err = %v, want ErrInvalidAmount", amount, err)
		}
	}
	if bal, err := f.uc.Credit(ctx, "u1", 5, "journal"); err != nil || bal != 5 {
		t.Fatalf("Credit = %d, %v", bal, err)
	}
	if bal, err := f.uc.Credit(ctx, "u1", 10, "time capsule"); err != nil || bal != 15 {
		t.Fatalf("Credit = %d, %v", bal, err)
	}
	if bal, _ := f.uc.Balance(ctx, "u1"); bal != 15 {
		t.Fatalf("Balance = %d, want 15", bal)
	}

	want := []recorded{{"credit", "rejected"}, {"credit", "rejected"}, {"credit", "ok"}, {"credit", "ok"}}
	if len(m.seen) != len(want) {
		t.Fatalf("seen = %+v", m.seen)
	}
	for i := range want {
		if m.seen[i] != want[i] {
			t.Fatalf("seen[%d] = %+v, want %+v", i, m.seen[i], want[i])
		}
	}
}

func TestTransplantDeadPlant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t)
	f.clock.set("2024-01-20")
	if st, _ := f.s.Status(); !st.IsDead {
		t.Fatalf("expected dead plant")
	}

	got, err := f.s.TransplantPlant(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsDead || !got.IsTransplanted || got.CreatedAt != "2024-01-20" || got.TransplantedAt != "2024-01-20" {
		t.Fatalf("transplanted = %+v", got)
	}
	if got.WaterCountDay != 1 || got.WaterCount != 0 || got.RecoveredOn != "" {
		t.Fatalf("cap fields not reset: %+v", got)
	}
	st, _ := f.s.Status()
	if st.IsDead || st.CanWater || st.MissedDays != 0 {
		t.Fatalf("status = %+v", st)
	}
}

func TestRenamePlant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t)

	got, err := f.s.RenamePlant(ctx, p.ID, "  Fern  ")
	if err != nil || got.Name != "Fern" {
		t.Fatalf("rename = %q, %v", got.Name, err)
	}
	got, err = f.s.RenamePlant(ctx, p.ID, "")
	if err != nil || got.Name != domain.DefaultPlantName {
		t.Fatalf("rename empty = %q, %v", got.Name, err)
	}
	if got.WaterCount != p.WaterCount || got.LastWateredOn != p.LastWateredOn {
		t.Fatalf("rename touched other fields")
	}
	if f.s.Plants()[0].Name != domain.DefaultPlantName {
		t.Fatalf("list cache not updated")
	}
}

func TestDeletePlant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.plant(t)
	b := f.plant(t)

	if err := f.s.DeletePlant(ctx, b.ID); err != nil {
		t.Fatal(err)
	}
	if f.s.Current() != nil {
		t.Fatalf("current not cleared")
	}
	if list := f.s.Plants(); len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("plants = %+v", list)
	}
	if err := f.s.DeletePlant(ctx, b.ID); !errors.Is(err, domain.ErrPlantNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestOtherUsersPlantsAreHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.plant(t)

	intruder := f.uc.Session("u2")
	if _, err := intruder.LoadPlant(ctx, p.ID); !errors.Is(err, domain.ErrPlantNotFound) {
		t.Fatalf("load = %v", err)
	}
	if err := intruder.DeletePlant(ctx, p.ID); !errors.Is(err, domain.ErrPlantNotFound) {
		t.Fatalf("delete = %v", err)
	}
	list, err := intruder.LoadPlants(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("list = %+v, %v", list, err)
	}
}

type recorded struct{ op, result string }

type fakeMetrics struct{ seen []recorded }

func (m *fakeMetrics) Observe(op, result string, _ time.Duration) {
	m.seen = append(m.seen, recorded{op, result})
}

func TestOperationsAreTracked(t *testing.T) {
	m := &fakeMetrics{}
	f := newFixture(t, WithMetrics(m))
	ctx := context.Background()
	p := f.plant(t)
	_, _ = f.s.RecoverMissedDays(ctx, p.ID, "")
	f.clock.set("2024-01-12")
	_, _ = f.s.WaterToday(ctx, p.ID, nil)

	want := []recorded{{"create", "ok"}, {"recover", "noop"}, {"water", "rejected"}}
	if len(m.seen) != len(want) {
		t.Fatalf("seen = %+v", m.seen)
	}
	for i := range want {
		if m.seen[i] != want[i] {
			t.Fatalf("seen[%d] = %+v, want %+v", i, m.seen[i], want[i])
		}
	}
}
