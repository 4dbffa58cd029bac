package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"classtrack/internal/apperr"
	"classtrack/internal/attendance"
	"classtrack/internal/config"
	"classtrack/internal/faceclient"
	"classtrack/internal/metrics"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

// Worker consumes recognition jobs, identifies the probe against the
// classroom gallery, and feeds matches into the debounced ingest path.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	cutoff, err := attendance.ParseClock(cfg.LateCutoff)
	if err != nil {
		log.Fatalf("bad LATE_CUTOFF: %v", err)
	}

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, store.DefaultQueueKey)
	}

	att := attendance.NewService(attendance.NewPGRepository(db.Client), cutoff, cfg.DebounceWindow)
	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)

	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			log.Printf("WARNING: face service not available: %v", err)
			log.Println("worker will retry identification when jobs arrive")
		} else {
			log.Println("face service connected")
		}
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for recognition jobs...")
	for msg := range messages {
		if msg.Type != "recognition" {
			continue
		}
		job, err := queue.DecodeRecognitionJob(msg)
		if err != nil {
			log.Printf("bad job payload: %v", err)
			continue
		}

		gallery := strconv.FormatInt(job.ClassroomID, 10)
		result, err := face.Identify(ctx, job.ImageURL, gallery)
		if err != nil {
			metrics.RecognitionFailures.Inc()
			log.Printf("identify failed for classroom %d: %v", job.ClassroomID, apperr.Recognition(err))
			continue
		}
		if !result.Matched {
			metrics.RecognitionFailures.Inc()
			log.Printf("no candidate above threshold for classroom %d (threshold %.2f)", job.ClassroomID, result.Threshold)
			continue
		}

		res, err := att.RecordCheckIn(ctx, job.ClassroomID, result.StudentCode, job.ObservedAt)
		if err != nil {
			log.Printf("check-in for %s failed: %v", result.StudentCode, err)
			continue
		}
		switch res.Outcome {
		case attendance.OutcomeRecorded:
			metrics.CheckInsRecorded.Inc()
			log.Printf("recorded %s at %s (similarity %.2f)", result.StudentCode, res.Timestamp, result.Similarity)
		case attendance.OutcomeSkipped:
			metrics.CheckInsSkipped.Inc()
			log.Printf("skipped %s, last check-in %s", result.StudentCode, res.Timestamp)
		}
	}

	log.Println("worker stopped")
}
