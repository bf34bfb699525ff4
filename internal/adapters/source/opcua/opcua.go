// Package opcua subscribes to OPC UA nodes exposed by PLC-attached scales and emits each
// data change as a raw reading.
package opcua

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/adapters/source"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	Nodes            []NodeConfig  `yaml:"nodes"`
}

// NodeConfig names one monitored weight node.
type NodeConfig struct {
	NodeID string `yaml:"node_id"`
	Scale  string `yaml:"scale"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "WeighLink Gateway"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 250 * time.Millisecond
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	for i := range c.Nodes {
		if c.Nodes[i].Scale == "" {
			c.Nodes[i].Scale = c.Nodes[i].NodeID
		}
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("%w: opcua endpoint is empty", source.ErrNotConfigured)
	}
	if len(c.Nodes) == 0 {
		return errors.New("opcua: at least one node must be configured")
	}
	for _, n := range c.Nodes {
		if _, err := ua.ParseNodeID(n.NodeID); err != nil {
			return fmt.Errorf("opcua: node id %q: %w", n.NodeID, err)
		}
	}
	return nil
}

type Collector struct {
	cfg Config
	pol ports.Policy
	obs ports.Observability
	now func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool

	handles map[uint32]NodeConfig
}

func NewCollector(cfg Config, pol ports.Policy, obs ports.Observability) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	handles := make(map[uint32]NodeConfig, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		handles[uint32(i+1)] = n
	}
	return &Collector{cfg: cfg, pol: pol, obs: obs, now: time.Now, handles: handles}, nil
}

func (c *Collector) Name() string { return "opcua:" + c.cfg.Endpoint }

// Start returns immediately; the session is opened (and reopened) in the background.
func (c *Collector) Start(out chan<- *domain.Reading) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return source.ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.started = true

	c.wg.Add(1)
	go c.run(ctx, out)
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()
	return nil
}

func (c *Collector) run(ctx context.Context, out chan<- *domain.Reading) {
	defer c.wg.Done()

	attempt := 0
	for ctx.Err() == nil {
		err := c.session(ctx, out)
		if ctx.Err() != nil {
			return
		}
		attempt++
		c.obs.LogError("opcua_session_failed", err,
			ports.Field{Key: "endpoint", Value: c.cfg.Endpoint},
			ports.Field{Key: "attempt", Value: attempt})
		if !source.Sleep(ctx, c.pol.Backoff(attempt)) {
			return
		}
	}
}

// session connects, subscribes every node and consumes notifications until ctx ends or the
// subscription reports an error.
func (c *Collector) session(ctx context.Context, out chan<- *domain.Reading) error {
	client, err := opcua.NewClient(c.cfg.Endpoint, c.clientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	defer c.closeClient(client)

	notifyCh := make(chan *opcua.PublishNotificationData, len(c.cfg.Nodes)*4)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{Interval: c.cfg.PublishInterval}, notifyCh)
	if err != nil {
		return fmt.Errorf("opcua subscribe: %w", err)
	}
	defer c.cancelSubscription(sub)

	for handle, node := range c.handles {
		nodeID, err := ua.ParseNodeID(node.NodeID)
		if err != nil {
			return fmt.Errorf("parse node id %q: %w", node.NodeID, err)
		}
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
		if c.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(c.cfg.SamplingInterval / time.Millisecond)
		}
		res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
		if err != nil {
			return fmt.Errorf("monitor node %q: %w", node.NodeID, err)
		}
		if len(res.Results) == 0 {
			return fmt.Errorf("monitor node %q failed: empty result", node.NodeID)
		}
		if res.Results[0].StatusCode != ua.StatusOK {
			return fmt.Errorf("monitor node %q failed: %s", node.NodeID, res.Results[0].StatusCode)
		}
	}
	c.obs.LogInfo("opcua_subscribed", ports.Field{Key: "endpoint", Value: c.cfg.Endpoint}, ports.Field{Key: "nodes", Value: len(c.handles)})

	for {
		select {
		case <-ctx.Done():
			return nil
		case notif := <-notifyCh:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				return fmt.Errorf("opcua notification: %w", notif.Error)
			}
			for _, r := range c.readings(notif.Value) {
				if !source.Emit(ctx, out, r) {
					return nil
				}
			}
		}
	}
}

func (c *Collector) readings(val interface{}) []*domain.Reading {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return nil
	}

	var out []*domain.Reading
	for _, item := range data.MonitoredItems {
		node, ok := c.handles[item.ClientHandle]
		if !ok || item.Value == nil {
			continue
		}
		raw, ok := variantText(item.Value.Value)
		if !ok {
			typ := "nil"
			if item.Value.Value != nil {
				typ = fmt.Sprintf("%T", item.Value.Value.Value())
			}
			c.obs.LogInfo("opcua_unsupported_value",
				ports.Field{Key: "node", Value: node.NodeID},
				ports.Field{Key: "type", Value: typ})
			continue
		}
		if raw == "" {
			continue
		}
		out = append(out, &domain.Reading{
			Raw: raw,
			Tag: domain.Metadata{
				"source":   "opcua",
				"endpoint": c.cfg.Endpoint,
				"node":     node.NodeID,
				"scale":    node.Scale,
			},
			ReceivedAt: c.now(),
		})
	}
	return out
}

func (c *Collector) closeClient(client *opcua.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.obs.LogError("opcua_close_failed", err, ports.Field{Key: "endpoint", Value: c.cfg.Endpoint})
	}
}

func (c *Collector) cancelSubscription(sub *opcua.Subscription) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sub.Cancel(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.obs.LogError("opcua_unsubscribe_failed", err, ports.Field{Key: "endpoint", Value: c.cfg.Endpoint})
	}
}

func (c *Collector) clientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(c.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(c.cfg.SecurityPolicy)),
		opcua.ApplicationName(c.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if c.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(c.cfg.Username, c.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

// variantText renders a node value the way a scale would print it, so the shared parser
// treats PLC and serial input alike.
func variantText(v *ua.Variant) (string, bool) {
	if v == nil {
		return "", false
	}
	switch val := v.Value().(type) {
	case string:
		return source.CleanPayload([]byte(val)), true
	case []byte:
		return source.CleanPayload(val), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case int8:
		return strconv.FormatInt(int64(val), 10), true
	case int16:
		return strconv.FormatInt(int64(val), 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint8:
		return strconv.FormatUint(uint64(val), 10), true
	case uint16:
		return strconv.FormatUint(uint64(val), 10), true
	case uint32:
		return strconv.FormatUint(uint64(val), 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	default:
		return "", false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.Collector = (*Collector)(nil)
