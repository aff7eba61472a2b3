package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"tripmate/internal/config"
	"tripmate/internal/database"
	"tripmate/internal/logger"
	"tripmate/internal/messaging"
	"tripmate/internal/models"
	"tripmate/internal/repository"
	"tripmate/internal/service"
)

var (
	planCount = flag.Int("count", 20, "Number of travel plans to generate")
	userCount = flag.Int("users", 10, "Plans are spread over user ids 1..users")
	seed      = flag.Int64("seed", 0, "Random seed (0 = current time)")
	dryRun    = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

var destinations = []string{
	"Cox's Bazar", "Sylhet", "Sreemangal", "Bandarban", "Rangamati",
	"Sundarbans", "Saint Martin's Island", "Kuakata", "Sajek Valley", "Paharpur",
}

// PlanGenerator создает демонстрационные планы через сервисный слой, чтобы
// они прошли валидацию и попали в поисковый индекс через события
type PlanGenerator struct {
	plans *service.PlanService
	rnd   *rand.Rand
	today time.Time
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting travel plan generator...", "count", *planCount, "users", *userCount)

	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	gen := &PlanGenerator{
		rnd:   rand.New(rand.NewSource(s)),
		today: models.DateOnly(time.Now()),
	}

	if *dryRun {
		for i := 0; i < *planCount; i++ {
			userID, req := gen.randomPlan()
			slog.Info("Would create plan",
				"user_id", userID,
				"destination", req.Destination,
				"start_date", req.StartDate,
				"end_date", req.EndDate,
				"max_participants", req.MaxParticipants)
		}
		return
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	cfg.NATS.ClientID = "tripmate-generator"
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		slog.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()

	gen.plans = service.NewServices(service.Deps{
		Store:     repository.NewRepositories(db),
		Publisher: natsClient,
	}).Plans

	created := 0
	for i := 0; i < *planCount; i++ {
		userID, req := gen.randomPlan()
		plan, err := gen.plans.Create(ctx, userID, req)
		if err != nil {
			slog.Error("Failed to create plan", "user_id", userID, "destination", req.Destination, "error", err)
			continue
		}
		created++
		slog.Debug("Created plan", "plan_id", plan.ID, "user_id", userID, "destination", plan.Destination)
	}

	slog.Info("Plan generation completed", "created", created, "requested", *planCount)
}

func (g *PlanGenerator) randomPlan() (int64, *models.CreatePlanRequest) {
	userID := int64(g.rnd.Intn(max(*userCount, 1)) + 1)

	start := g.today.AddDate(0, 0, 7+g.rnd.Intn(60))
	days := models.MinDurationDays + g.rnd.Intn(5)
	end := start.AddDate(0, 0, days-1)

	return userID, &models.CreatePlanRequest{
		Destination:     destinations[g.rnd.Intn(len(destinations))],
		StartDate:       start.Format(models.DateLayout),
		EndDate:         end.Format(models.DateLayout),
		Purpose:         models.Purposes[g.rnd.Intn(len(models.Purposes))],
		BudgetRange:     models.BudgetRanges[g.rnd.Intn(len(models.BudgetRanges))],
		Description:     "Generated demo plan",
		MaxParticipants: models.MinPlanCapacity + g.rnd.Intn(models.MaxPlanCapacity-models.MinPlanCapacity+1),
	}
}
