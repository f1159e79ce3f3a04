// Package backfill reprocesses sessions that fell out of the pipeline part
// way: audio with no transcript, or a transcript with no analysis. It can run
// once or on a cron schedule.
package backfill

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/YoungApple/voice-recorder/internal/pipeline"
	"github.com/YoungApple/voice-recorder/internal/storage"
)

// Report summarizes one backfill pass
type Report struct {
	Transcribed int
	Analyzed    int
	Failed      int
}

// Runner finds incomplete sessions and re-runs the missing pipeline stages
type Runner struct {
	store *storage.Store
	coord *pipeline.Coordinator
	cron  *cron.Cron
}

// New creates a backfill runner over the given store and pipeline
func New(store *storage.Store, coord *pipeline.Coordinator) *Runner {
	return &Runner{
		store: store,
		coord: coord,
		cron:  cron.New(),
	}
}

// RunOnce performs a single backfill pass. Failures on individual sessions
// are logged and counted, not fatal, so one bad session cannot starve the
// rest of the queue.
func (r *Runner) RunOnce(ctx context.Context) (Report, error) {
	var report Report

	needTranscript, err := r.store.SessionsNeedingTranscript(ctx)
	if err != nil {
		return report, err
	}
	for _, session := range needTranscript {
		if _, err := r.coord.TranscribeAndAnalyze(ctx, session.ID); err != nil {
			log.Printf("[BACKFILL]: session %s transcription failed: %v\n", session.ID, err)
			report.Failed++
			continue
		}
		report.Transcribed++
		report.Analyzed++
	}

	needAnalysis, err := r.store.SessionsNeedingAnalysis(ctx)
	if err != nil {
		return report, err
	}
	for _, session := range needAnalysis {
		if _, err := r.coord.Reanalyze(ctx, session.ID); err != nil {
			log.Printf("[BACKFILL]: session %s analysis failed: %v\n", session.ID, err)
			report.Failed++
			continue
		}
		report.Analyzed++
	}

	log.Printf("[BACKFILL]: pass complete (%d transcribed, %d analyzed, %d failed)\n",
		report.Transcribed, report.Analyzed, report.Failed)
	return report, nil
}

// Start schedules recurring backfill passes with a cron expression and
// returns immediately
func (r *Runner) Start(schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			log.Printf("[BACKFILL]: scheduled pass failed: %v\n", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid backfill schedule %q: %w", schedule, err)
	}
	r.cron.Start()
	log.Printf("[BACKFILL]: scheduled with %q\n", schedule)
	return nil
}

// Stop halts the schedule and waits for a running pass to finish
func (r *Runner) Stop() {
	if r.cron != nil {
		ctx := r.cron.Stop()
		<-ctx.Done()
	}
}
