package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/zeromonos/waste-pickup-booking/internal/booking"
	"github.com/zeromonos/waste-pickup-booking/internal/catalog"
	"github.com/zeromonos/waste-pickup-booking/internal/config"
	"github.com/zeromonos/waste-pickup-booking/internal/db"
)

// seed fills the database with demo data: the municipality catalog plus a
// batch of bookings in assorted lifecycle states.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	count := 200
	if v := os.Getenv("SEED_BOOKINGS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			count = n
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	store := booking.NewPgStore(pool)

	result, err := catalog.NewImporter(store, nil, cfg).Run(ctx)
	if err != nil {
		log.Fatalf("seed municipalities: %v", err)
	}
	log.Printf("municipalities seeded: source=%s created=%d skipped=%d", result.Source, result.Created, result.Skipped)

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedBookings(ctx, store, count); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}

	log.Println("seed complete")
}

func seedBookings(ctx context.Context, store *booking.PgStore, count int) error {
	log.Printf("seeding %d bookings", count)

	munis, err := store.ListMunicipalities(ctx)
	if err != nil {
		return err
	}

	slots := []booking.TimeSlot{
		booking.SlotMorning,
		booking.SlotMidday,
		booking.SlotEvening,
		booking.SlotNight,
		booking.SlotAnytime,
	}

	// Legal lifecycle prefixes; a random one is replayed onto each booking
	// so the demo data has believable histories.
	paths := [][]booking.Status{
		{},
		{booking.StatusAssigned},
		{booking.StatusAssigned, booking.StatusInProgress},
		{booking.StatusAssigned, booking.StatusInProgress, booking.StatusCompleted},
		{booking.StatusCancelled},
		{booking.StatusAssigned, booking.StatusCancelled},
	}

	for i := 0; i < count; i++ {
		m := munis[gofakeit.Number(0, len(munis)-1)]
		slot := slots[gofakeit.Number(0, len(slots)-1)]
		date := randomPickupDate()
		description := gofakeit.Sentence(6)

		b := booking.NewBooking(m, description, date, slot, time.Now())
		if err := store.CreateBooking(ctx, b); err != nil {
			return err
		}

		for _, status := range paths[gofakeit.Number(0, len(paths)-1)] {
			sc := b.AppendStateChange(status, time.Now())
			if err := store.AppendStateChange(ctx, b, sc); err != nil {
				return err
			}
		}

		if (i+1)%100 == 0 {
			log.Printf("bookings seeded: %d/%d", i+1, count)
		}
	}

	log.Println("bookings seeded")
	return nil
}

// randomPickupDate returns a date 1-60 days out, skipping Sundays the same
// way the engine would reject them.
func randomPickupDate() time.Time {
	d := time.Now().AddDate(0, 0, gofakeit.Number(1, 60))
	if d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
