package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/config"
	obs "github.com/shiroinekotfs/DanesfieldApp/internal/core/observability"
)

// Loader is the piece of the bounds repository the consumer needs.
type Loader interface {
	Load(ctx context.Context) (applied bool, err error)
}

// Consumer listens for dataset change events and schedules a debounced
// bounds reload. A bulk ingest publishes one event per dataset; the
// debounce collapses the burst into a single round trip to the platform.
type Consumer struct {
	cfg    config.RefreshCfg
	log    *slog.Logger
	loader Loader
	seen   *datasetDedupe

	mu      sync.Mutex
	timer   *time.Timer
	pending int

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg config.RefreshCfg, log *slog.Logger, loader Loader) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{
		cfg:    cfg,
		log:    log,
		loader: loader,
		seen:   newDatasetDedupe(1024),
		runCtx: context.Background(),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		c.log.Info("dataset refresh consumer disabled")
		return nil
	}
	if c.loader == nil {
		return errors.New("refresh: loader dependency is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.runCtx = ctx
	c.cancel = cancel

	scfg := sarama.NewConfig()
	scfg.Version = sarama.V2_5_0_0
	scfg.Consumer.Group.Session.Timeout = 30 * time.Second
	scfg.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	scfg.Consumer.Group.Rebalance.Timeout = 30 * time.Second
	// Missed events are covered by the startup load, so begin at the
	// newest offset instead of replaying history.
	scfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	scfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.cfg.BrokerList(), c.cfg.GroupID, scfg)
	if err != nil {
		return fmt.Errorf("consumer group: %w", err)
	}

	h := &groupHandler{process: c.handleMessage}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				c.log.Error("kafka consumer group close", "err", err)
			}
		}()
		for {
			if err := group.Consume(ctx, []string{c.cfg.Topic}, h); err != nil {
				c.log.Error("kafka consume error", "err", err)
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range group.Errors() {
			c.log.Error("kafka group error", "err", err)
		}
	}()

	c.log.Info("dataset refresh consumer started",
		"topic", c.cfg.Topic, "group", c.cfg.GroupID, "brokers", c.cfg.Brokers)
	return nil
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.wg.Wait()
	c.log.Info("dataset refresh consumer stopped")
}

// handleMessage never fails the claim: a malformed event must not wedge
// the partition behind it, and the reload itself happens off the consume
// path once the debounce fires.
func (c *Consumer) handleMessage(_ context.Context, msg *sarama.ConsumerMessage) error {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.ObserveRefreshEvent("decode_error")
		c.log.Warn("refresh event decode failed",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.ObserveRefreshEvent("invalid")
		c.log.Warn("refresh event rejected", "dataset_id", ev.DatasetID, "err", err)
		return nil
	}
	if !c.seen.fresher(ev.DatasetID, uint64(ev.TS.UnixNano())) {
		obs.ObserveRefreshEvent("stale")
		c.log.Debug("refresh event replay ignored", "dataset_id", ev.DatasetID, "op", ev.Op)
		return nil
	}
	obs.ObserveRefreshEvent("accepted")
	c.log.Debug("refresh scheduled", "dataset_id", ev.DatasetID, "op", ev.Op)
	c.schedule()
	return nil
}

// schedule arms (or re-arms) the debounce timer.
func (c *Consumer) schedule() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending++
	if c.timer == nil {
		c.timer = time.AfterFunc(c.cfg.Debounce, c.fire)
		return
	}
	c.timer.Reset(c.cfg.Debounce)
}

func (c *Consumer) fire() {
	c.mu.Lock()
	n := c.pending
	c.pending = 0
	c.timer = nil
	c.mu.Unlock()

	ctx := c.runCtx
	if ctx.Err() != nil {
		return
	}
	applied, err := c.loader.Load(ctx)
	switch {
	case err != nil:
		// Dropped, not retried: the repository keeps its previous data
		// and the next event triggers another attempt.
		obs.ObserveRefreshEvent("load_error")
		c.log.Error("debounced bounds reload failed", "events", n, "err", err)
	case !applied:
		obs.ObserveRefreshEvent("superseded")
		c.log.Debug("debounced bounds reload superseded", "events", n)
	default:
		obs.ObserveRefreshEvent("applied")
		c.log.Info("bounds reloaded after dataset change", "events", n)
	}
}
