// crewdesk-janitor runs the recurring maintenance jobs: expired API token
// cleanup and audit trail retention. It is deployed as a single replica next
// to the API servers.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/crewdesk/crewdesk/pkg/audit"
	"github.com/crewdesk/crewdesk/pkg/identity"
)

func main() {
	schedule := flag.String("schedule", "@hourly", "Cron schedule for maintenance runs")
	retentionDays := flag.Int("retention-days", audit.DefaultRetentionPolicy().RetentionDays, "Days to keep audit events")
	once := flag.Bool("once", false, "Run one maintenance pass and exit")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	postgresURL := os.Getenv("CREWDESK_POSTGRES_URL")
	if postgresURL == "" {
		log.Fatal("CREWDESK_POSTGRES_URL is required")
	}

	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.PingContext(ctx); err != nil {
		log.WithError(err).Fatal("database unreachable")
	}

	tokens := identity.NewTokenManager(db)
	trail, err := audit.NewDBLogger(db)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize audit logger")
	}

	retention := audit.RetentionPolicy{RetentionDays: *retentionDays}

	runPass := func() {
		passCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		removed, err := tokens.CleanupExpiredTokens(passCtx)
		if err != nil {
			log.WithError(err).Error("token cleanup failed")
		} else if removed > 0 {
			log.WithField("tokens_removed", removed).Info("expired tokens cleaned up")
		}

		cutoff := time.Now().AddDate(0, 0, -retention.RetentionDays)
		deleted, err := trail.DeleteBefore(passCtx, cutoff)
		if err != nil {
			log.WithError(err).Error("audit retention failed")
		} else if deleted > 0 {
			log.WithFields(logrus.Fields{
				"events_deleted": deleted,
				"cutoff":         cutoff.Format(time.RFC3339),
			}).Info("old audit events deleted")
		}
	}

	if *once {
		runPass()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc(*schedule, runPass); err != nil {
		log.WithError(err).Fatalf("invalid schedule %q", *schedule)
	}

	log.WithField("schedule", *schedule).Info("janitor started")
	c.Start()

	<-ctx.Done()
	log.Info("janitor stopping")

	// Let an in-flight pass finish before exiting.
	<-c.Stop().Done()
}
