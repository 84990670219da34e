package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Promoter is the part of CommissionService the job drives.
type Promoter interface {
	PromoteDue(ctx context.Context) (int, error)
}

// PromotionJob periodically moves earned earnings past their hold period to
// payable.
type PromotionJob struct {
	promoter Promoter
	cron     *cron.Cron
	timeout  time.Duration
	log      *logrus.Entry
}

// NewPromotionJob schedules the job with a standard cron expression or a
// descriptor such as "@every 1h".
func NewPromotionJob(promoter Promoter, schedule string, log *logrus.Logger) (*PromotionJob, error) {
	job := &PromotionJob{
		promoter: promoter,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		timeout:  5 * time.Minute,
		log:      log.WithField("component", "promotion-job"),
	}
	if _, err := job.cron.AddFunc(schedule, job.Run); err != nil {
		return nil, err
	}
	return job, nil
}

// Run performs one promotion pass.
func (j *PromotionJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	n, err := j.promoter.PromoteDue(ctx)
	if err != nil {
		j.log.WithError(err).Error("promotion pass failed")
		return
	}
	j.log.WithFields(logrus.Fields{"promoted": n, "took": time.Since(start).String()}).Debug("promotion pass finished")
}

func (j *PromotionJob) Start() {
	// Run once on startup
	go j.Run()
	j.cron.Start()
}

// Stop waits for a running pass to finish.
func (j *PromotionJob) Stop() {
	<-j.cron.Stop().Done()
}
