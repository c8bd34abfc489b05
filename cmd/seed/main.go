package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/config"
	"github.com/hackgods/vaidya/internal/db"
	"github.com/hackgods/vaidya/internal/logging"
)

type city struct {
	name     string
	lat, lng float64
}

var cities = []city{
	{"Hyderabad", 17.3850, 78.4867},
	{"Bangalore", 12.9716, 77.5946},
	{"Chennai", 13.0827, 80.2707},
	{"Mumbai", 19.0760, 72.8777},
	{"Delhi", 28.7041, 77.1025},
}

var specializations = []string{
	"General Physician",
	"Cardiologist",
	"Dermatologist",
	"Pediatrician",
	"Orthopedic",
	"Gynecologist",
	"ENT Specialist",
	"Neurologist",
	"Psychiatrist",
	"Ophthalmologist",
}

var recordTypes = []string{"lab_report", "prescription", "imaging", "discharge_summary"}

var languages = []string{"English", "Hindi", "Telugu", "Tamil"}

func main() {
	hospitals := flag.Int("hospitals", 12, "hospitals to create")
	doctorsPer := flag.Int("doctors", 6, "doctors per hospital")
	patients := flag.Int("patients", 500, "patients to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{})
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	hospitalIDs, err := seedHospitals(ctx, pool, *hospitals)
	if err != nil {
		logger.Fatal("seed hospitals", zap.Error(err))
	}
	if err := seedDoctors(ctx, pool, hospitalIDs, *doctorsPer); err != nil {
		logger.Fatal("seed doctors", zap.Error(err))
	}
	if err := seedPatients(ctx, pool, hospitalIDs, *patients); err != nil {
		logger.Fatal("seed patients", zap.Error(err))
	}

	gen := appointment.NewSlotGenerator(appointment.NewPgRepository(pool), cfg.SlotHorizonDays, cfg.Location, nil, logger)
	n, err := gen.Regenerate(ctx)
	if err != nil {
		logger.Fatal("generate slots", zap.Error(err))
	}

	logger.Info("seed complete",
		zap.Int("hospitals", len(hospitalIDs)),
		zap.Int("doctors", len(hospitalIDs)*(*doctorsPer)),
		zap.Int("patients", *patients),
		zap.Int("slots", n),
	)
}

func seedHospitals(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, count)
	batch := &pgx.Batch{}
	for i := 0; i < count; i++ {
		id := uuid.New()
		c := cities[i%len(cities)]

		var promotion any
		switch gofakeit.Number(0, 5) {
		case 0:
			promotion = "premium"
		case 1:
			promotion = "promoted"
		}

		batch.Queue(`
			INSERT INTO hospitals (id, name, address, city, latitude, longitude, tier, promotion_level)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, id,
			gofakeit.LastName()+" "+gofakeit.RandomString([]string{"Hospital", "Medical Centre", "Clinic", "Multispeciality Hospital"}),
			gofakeit.Street(),
			c.name,
			c.lat+gofakeit.Float64Range(-0.08, 0.08),
			c.lng+gofakeit.Float64Range(-0.08, 0.08),
			gofakeit.Number(1, 3),
			promotion,
		)
		ids = append(ids, id)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, hospitals []uuid.UUID, perHospital int) error {
	batch := &pgx.Batch{}
	for _, h := range hospitals {
		for i := 0; i < perHospital; i++ {
			start := gofakeit.RandomString([]string{"08:00", "09:00", "10:00"})
			end := gofakeit.RandomString([]string{"13:00", "17:00", "18:00"})
			batch.Queue(`
				INSERT INTO doctors (hospital_id, name, specialization, qualifications, experience_years,
					consultation_fee, rating, languages, working_days, working_hours_start, working_hours_end, slot_duration)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::text::time, $11::text::time, $12)
			`, h,
				"Dr. "+gofakeit.FirstName()+" "+gofakeit.LastName(),
				specializations[gofakeit.Number(0, len(specializations)-1)],
				gofakeit.RandomString([]string{"MBBS", "MBBS, MD", "MBBS, MS", "MBBS, DNB"}),
				gofakeit.Number(2, 30),
				gofakeit.Number(3, 15)*100,
				math.Round(gofakeit.Float64Range(3.5, 5)*10)/10,
				[]string{"English", languages[gofakeit.Number(1, len(languages)-1)]},
				[]int16{1, 2, 3, 4, 5, 6},
				start,
				end,
				gofakeit.RandomInt([]int{15, 20, 30}),
			)
		}
	}
	return pool.SendBatch(ctx, batch).Close()
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, hospitals []uuid.UUID, count int) error {
	const batchSize = 250

	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		batch := &pgx.Batch{}
		for i := offset; i < end; i++ {
			id := uuid.New()
			c := cities[gofakeit.Number(0, len(cities)-1)]
			batch.Queue(`
				INSERT INTO users (id, phone, name, age, preferred_language, city, latitude, longitude)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (phone) DO NOTHING
			`, id,
				fmt.Sprintf("+91%d", gofakeit.Number(6000000000, 9999999999)),
				gofakeit.Name(),
				gofakeit.Number(1, 90),
				languages[gofakeit.Number(0, len(languages)-1)],
				c.name, c.lat, c.lng,
			)

			for r := gofakeit.Number(0, 3); r > 0; r-- {
				batch.Queue(`
					INSERT INTO medical_records (user_id, hospital_id, record_type, title, file_url, created_at)
					SELECT $1, $2, $3, $4, $5, $6 WHERE EXISTS (SELECT 1 FROM users WHERE id = $1)
				`, id,
					hospitals[gofakeit.Number(0, len(hospitals)-1)],
					recordTypes[gofakeit.Number(0, len(recordTypes)-1)],
					gofakeit.RandomString([]string{"Complete Blood Count", "Chest X-Ray", "Lipid Profile", "Follow-up Prescription"}),
					"https://files.mediconnect.com/"+uuid.NewString()+".pdf",
					gofakeit.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()),
				)
			}
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
		log.Printf("patients seeded: %d/%d", end, count)
	}
	return nil
}
