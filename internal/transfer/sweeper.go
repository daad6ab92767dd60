package transfer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Purger drops transfer codes created before cutoff.
type Purger interface {
	PurgeTransferCodes(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper periodically removes expired transfer codes from stores that do
// not expire them on their own.
type Sweeper struct {
	purger   Purger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	log      *zap.Logger
	stopChan chan struct{}
	ticker   *time.Ticker
}

func NewSweeper(p Purger, ttl, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		purger:   p,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		log:      log,
		stopChan: make(chan struct{}),
	}
}

func (w *Sweeper) Start() {
	if w == nil {
		return
	}
	w.ticker = time.NewTicker(w.interval)
	go w.loop()
}

func (w *Sweeper) Stop() {
	if w == nil {
		return
	}
	close(w.stopChan)
	if w.ticker != nil {
		w.ticker.Stop()
	}
}

func (w *Sweeper) loop() {
	ctx := context.Background()
	for {
		select {
		case <-w.ticker.C:
			w.Sweep(ctx)
		case <-w.stopChan:
			return
		}
	}
}

// Sweep runs one purge pass and returns the number of codes removed.
func (w *Sweeper) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	n, err := w.purger.PurgeTransferCodes(ctx, w.now().Add(-w.ttl))
	if err != nil {
		w.log.Warn("purge transfer codes failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		w.log.Debug("purged transfer codes", zap.Int("count", n))
	}
	return n
}
