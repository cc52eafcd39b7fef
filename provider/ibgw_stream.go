package provider

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"exposureflow/internal/feed"
	"exposureflow/internal/metrics"
	"exposureflow/logger"
	"exposureflow/models"
)

const (
	streamReconnectDelay = 5 * time.Second
	streamKeepaliveEvery = 30 * time.Second
)

// streamFields are the snapshot fields every smd subscription asks for.
var streamFields = []string{fieldLast, fieldBid, fieldAsk, fieldMark, fieldDelta, fieldGamma}

// ibgwStream holds one websocket session worth of subscriptions. The gateway
// speaks its own framing: text messages prefixed with a topic ("smd+conid")
// and JSON payloads carrying the same numeric field ids as the REST snapshot.
type ibgwStream struct {
	gateway *Ibgw
	updates *feed.Updates
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
	log     *logger.Log
	conids  map[int64]models.Instrument
}

// StartStream opens the gateway websocket and subscribes to market data for
// the given instruments. The connection is re-established automatically until
// StopStream is called or the context is cancelled.
func (g *Ibgw) StartStream(ctx context.Context, updates *feed.Updates, instruments []models.Instrument) error {
	if !g.config.Provider.Ibgw.Stream.Enabled {
		return fmt.Errorf("gateway stream is disabled")
	}

	g.mu.Lock()
	if g.stream != nil {
		g.mu.Unlock()
		return fmt.Errorf("gateway stream already running")
	}

	s := &ibgwStream{
		gateway: g,
		updates: updates,
		wg:      &sync.WaitGroup{},
		log:     g.log,
		conids:  make(map[int64]models.Instrument, len(instruments)),
	}
	for _, inst := range instruments {
		if inst.ConID != 0 {
			s.conids[inst.ConID] = inst
		}
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	g.stream = s
	g.mu.Unlock()

	g.log.WithComponent("ibgw_stream").WithFields(logger.Fields{
		"url":           g.config.Provider.Ibgw.Stream.URL,
		"subscriptions": len(s.conids),
	}).Info("starting gateway stream")

	s.wg.Add(1)
	go s.run(g.config.Provider.Ibgw.Stream.URL)
	return nil
}

// StopStream closes the websocket session and waits for the stream goroutine
// to exit. Safe to call when no stream is running.
func (g *Ibgw) StopStream() {
	g.mu.Lock()
	s := g.stream
	g.stream = nil
	g.mu.Unlock()
	if s == nil {
		return
	}

	s.cancel()
	s.wg.Wait()
	g.log.WithComponent("ibgw_stream").Info("gateway stream stopped")
}

// run handles websocket lifecycle, reconnection and forwarding of updates.
func (s *ibgwStream) run(wsURL string) {
	defer s.wg.Done()
	log := s.log.WithComponent("ibgw_stream").WithFields(logger.Fields{"worker": "quote_stream"})

	for {
		if s.ctx.Err() != nil {
			return
		}

		conn, err := s.connect(wsURL)
		if err != nil {
			log.WithError(err).Warn("failed to connect gateway websocket, retrying")
			select {
			case <-time.After(streamReconnectDelay):
				continue
			case <-s.ctx.Done():
				return
			}
		}

		if err := s.subscribe(conn); err != nil {
			log.WithError(err).Warn("failed to subscribe")
			conn.Close()
			continue
		}

		keepalive := time.NewTicker(streamKeepaliveEvery)
		done := make(chan struct{})
		go func() {
			defer keepalive.Stop()
			for {
				select {
				case <-done:
					return
				case <-s.ctx.Done():
					conn.Close()
					return
				case <-keepalive.C:
					conn.WriteMessage(websocket.TextMessage, []byte("tic"))
				}
			}
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				close(done)
				conn.Close()
				if s.ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("websocket read error, reconnecting")
				goto RECONNECT
			}
			s.processMessage(msg)
		}

	RECONNECT:
		time.Sleep(time.Second)
	}
}

// connect dials the websocket, passing the gateway session as a cookie when
// one can be obtained.
func (s *ibgwStream) connect(wsURL string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: !s.gateway.config.Provider.Ibgw.VerifyTLS},
		HandshakeTimeout: 10 * time.Second,
	}

	header := http.Header{}
	if session, err := s.gateway.tickle(s.ctx); err == nil && session != "" {
		header.Set("Cookie", "api="+session)
	}

	conn, _, err := dialer.Dial(wsURL, header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// subscribe sends one smd request per contract.
func (s *ibgwStream) subscribe(conn *websocket.Conn) error {
	args, err := json.Marshal(map[string][]string{"fields": streamFields})
	if err != nil {
		return err
	}
	for conid := range s.conids {
		msg := fmt.Sprintf("smd+%d+%s", conid, args)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return err
		}
	}
	return nil
}

// processMessage forwards smd frames into the feed. Control frames (system
// heartbeats, status and subscription acks) are ignored.
func (s *ibgwStream) processMessage(msg []byte) {
	var frame ibSnapshot
	if err := json.Unmarshal(msg, &frame); err != nil {
		s.log.WithComponent("ibgw_stream").WithError(err).Debug("failed to decode stream message")
		return
	}

	topic, _ := frame.rawField("topic")
	if !strings.HasPrefix(topic, "smd+") {
		return
	}

	conid := frame.conID()
	if conid == 0 {
		if id, err := strconv.ParseInt(strings.TrimPrefix(topic, "smd+"), 10, 64); err == nil {
			conid = id
		}
	}

	inst, ok := s.conids[conid]
	if !ok {
		return
	}

	logger.RecordChannelMessage("quote_stream", len(msg))

	update := models.QuoteUpdate{
		Key:      inst.Key(),
		Snapshot: frame.toSnapshot(inst.IsOption()),
	}
	if !s.updates.Send(s.ctx, update) {
		metrics.EmitDropMetric(s.log, metrics.DropMetricQuoteUpdate, "ibgw", s.gateway.account(), inst.Symbol, "stream")
	}
}
