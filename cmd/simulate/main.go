package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/audit"
	"github.com/hackgods/vaidya/internal/config"
	"github.com/hackgods/vaidya/internal/db"
)

// simulate races many patients for the same open slots and checks that each slot ends up
// with exactly one live appointment.
type SimConfig struct {
	Slots       int
	Contenders  int
	Parallelism int
}

type outcome struct {
	slotID  uuid.UUID
	code    string
	latency time.Duration
}

type report struct {
	mu        sync.Mutex
	byCode    map[string]int
	latencies []time.Duration
	winners   map[uuid.UUID]int
}

func (r *report) add(o outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byCode[o.code]++
	r.latencies = append(r.latencies, o.latency)
	if o.code == "ok" {
		r.winners[o.slotID]++
	}
}

func main() {
	var sc SimConfig
	flag.IntVar(&sc.Slots, "slots", 20, "open slots to contend for")
	flag.IntVar(&sc.Contenders, "contenders", 25, "patients racing for each slot")
	flag.IntVar(&sc.Parallelism, "parallelism", 64, "concurrent booking attempts")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: int32(sc.Parallelism)})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	slots, err := openSlots(ctx, pool, sc.Slots)
	if err != nil {
		log.Fatalf("load slots: %v", err)
	}
	patients, err := patientIDs(ctx, pool, sc.Contenders)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	if len(slots) == 0 || len(patients) == 0 {
		log.Fatal("no open slots or patients; run the seed first")
	}
	log.Printf("racing %d patients for each of %d slots", len(patients), len(slots))

	svc := appointment.NewService(appointment.NewPgRepository(pool), audit.NewPgRecorder(pool), cfg.Location)
	rep := &report{byCode: map[string]int{}, winners: map[uuid.UUID]int{}}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sc.Parallelism)

	start := time.Now()
	for _, slot := range slots {
		for _, userID := range patients {
			slot, userID := slot, userID
			g.Go(func() error {
				t0 := time.Now()
				_, err := svc.Book(gctx, appointment.BookRequest{
					UserID:   userID,
					DoctorID: slot.DoctorID,
					SlotID:   slot.ID,
					Date:     slot.Date,
					Time:     slot.Time,
					Source:   appointment.SourceWhatsApp,
					Reason:   "load simulation",
				})
				code := "ok"
				var f *appointment.Failure
				if errors.As(err, &f) {
					code = f.Code
				} else if err != nil {
					code = "error"
				}
				rep.add(outcome{slotID: slot.ID, code: code, latency: time.Since(t0)})
				return nil
			})
		}
	}
	_ = g.Wait()
	elapsed := time.Since(start)

	printReport(rep, len(slots), elapsed)
}

func openSlots(ctx context.Context, pool *pgxpool.Pool, limit int) ([]appointment.Slot, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, doctor_id, to_char(slot_date, 'YYYY-MM-DD'), to_char(slot_time, 'HH24:MI')
		FROM appointment_slots
		WHERE is_available AND slot_date > CURRENT_DATE
		ORDER BY slot_date, slot_time
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []appointment.Slot
	for rows.Next() {
		var s appointment.Slot
		if err := rows.Scan(&s.ID, &s.DoctorID, &s.Date, &s.Time); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func patientIDs(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM users ORDER BY random() LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func printReport(rep *report, slots int, elapsed time.Duration) {
	total := len(rep.latencies)
	fmt.Printf("\n=== booking race: %d attempts in %s ===\n", total, elapsed.Round(time.Millisecond))

	codes := make([]string, 0, len(rep.byCode))
	for c := range rep.byCode {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	for _, c := range codes {
		fmt.Printf("  %-18s %d\n", c, rep.byCode[c])
	}

	sort.Slice(rep.latencies, func(i, j int) bool { return rep.latencies[i] < rep.latencies[j] })
	if total > 0 {
		fmt.Printf("  latency p50=%s p95=%s p99=%s\n",
			percentile(rep.latencies, 0.50), percentile(rep.latencies, 0.95), percentile(rep.latencies, 0.99))
	}

	doubles := 0
	for _, n := range rep.winners {
		if n > 1 {
			doubles++
		}
	}
	fmt.Printf("  slots won: %d/%d, double-booked: %d\n", len(rep.winners), slots, doubles)
	if doubles > 0 {
		log.Fatalf("double booking detected on %d slots", doubles)
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx].Round(time.Microsecond)
}
