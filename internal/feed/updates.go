package feed

import (
	"context"
	"sync"

	"exposureflow/logger"
	"exposureflow/models"
)

type ChannelStats struct {
	UpdatesSent    int64
	UpdatesDropped int64
}

// Updates carries streamed quote snapshots from a provider into the poller.
// Sends never block; when the buffer is full the update is dropped and the
// poller falls back to the next REST refresh.
type Updates struct {
	Quotes chan models.QuoteUpdate

	stats      ChannelStats
	statsMutex sync.RWMutex
	log        *logger.Log
}

func NewUpdates(bufferSize int) *Updates {
	log := logger.GetLogger()
	u := &Updates{
		Quotes: make(chan models.QuoteUpdate, bufferSize),
		log:    log,
	}

	log.WithComponent("quote_feed").WithFields(logger.Fields{
		"buffer_size": bufferSize,
	}).Info("quote feed initialized")

	return u
}

func (u *Updates) Close() {
	close(u.Quotes)
	u.log.WithComponent("quote_feed").Info("quote feed closed")
}

func (u *Updates) IncrementSent() {
	u.statsMutex.Lock()
	u.stats.UpdatesSent++
	u.statsMutex.Unlock()
}

func (u *Updates) IncrementDropped() {
	u.statsMutex.Lock()
	u.stats.UpdatesDropped++
	u.statsMutex.Unlock()
}

func (u *Updates) Send(ctx context.Context, update models.QuoteUpdate) bool {
	select {
	case u.Quotes <- update:
		u.IncrementSent()
		logger.RecordChannelMessage("quote_feed", 1)
		return true
	case <-ctx.Done():
		return false
	default:
		u.IncrementDropped()
		return false
	}
}

func (u *Updates) GetStats() ChannelStats {
	u.statsMutex.RLock()
	defer u.statsMutex.RUnlock()
	return u.stats
}
