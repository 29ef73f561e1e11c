package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/nugget/gotravel-agent/internal/buildinfo"
	"github.com/nugget/gotravel-agent/internal/catalog"
	"github.com/nugget/gotravel-agent/internal/config"
)

// ErrNotConnected is returned by publishes attempted before Start has
// established a connection.
var ErrNotConnected = errors.New("mqtt publisher not connected")

const (
	defaultStatusInterval = time.Minute
	publishTimeout        = 5 * time.Second
)

// StatsSource provides runtime data for the status payload.
type StatsSource interface {
	ActiveSessions() int
	DefaultModel() string
}

// connection is the part of [autopaho.ConnectionManager] the publisher
// uses after connecting.
type connection interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// BookingEvent is the payload published for each new booking. Guest
// contact details are omitted.
type BookingEvent struct {
	Event             string    `json:"event"`
	Reference         string    `json:"booking_reference"`
	Kind              string    `json:"booking_type"`
	ItemID            string    `json:"item_id"`
	UserID            string    `json:"user_id"`
	TotalParticipants int       `json:"total_participants"`
	TotalAmount       float64   `json:"total_amount"`
	Currency          string    `json:"currency"`
	BookingStatus     string    `json:"booking_status"`
	PaymentStatus     string    `json:"payment_status"`
	CreatedAt         time.Time `json:"created_at"`
}

// Status is the retained service status payload.
type Status struct {
	Version        string    `json:"version"`
	Uptime         string    `json:"uptime"`
	DefaultModel   string    `json:"default_model"`
	ActiveSessions int       `json:"active_sessions"`
	UpdatedAt      time.Time `json:"updated_at"`
	DailySnapshot
}

// Publisher manages the broker connection and publishes booking events
// and periodic status updates.
type Publisher struct {
	cfg      config.MQTTConfig
	clientID string
	stats    StatsSource
	daily    *DailyStats
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time

	mu   sync.RWMutex
	conn connection
	cm   *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. stats may be nil.
func New(cfg config.MQTTConfig, clientID string, stats StatsSource, daily *DailyStats, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if daily == nil {
		daily = NewDailyStats(nil)
	}
	return &Publisher{
		cfg:      cfg,
		clientID: clientID,
		stats:    stats,
		daily:    daily,
		logger:   logger,
		interval: defaultStatusInterval,
		now:      time.Now,
	}
}

// Daily returns the counters included in the status payload.
func (p *Publisher) Daily() *DailyStats {
	return p.daily
}

// Start connects to the broker and publishes status until ctx is
// cancelled. Connection failures after the first attempt are retried
// by autopaho in the background.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishAvailability(ctx, cm, "online")
			p.publishStatus(ctx, cm)
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.clientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.mu.Lock()
	p.cm = cm
	p.conn = cm
	p.mu.Unlock()

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	p.runLoop(ctx)
	return nil
}

// Stop publishes "offline" and disconnects.
func (p *Publisher) Stop(ctx context.Context) error {
	p.mu.RLock()
	cm := p.cm
	p.mu.RUnlock()
	if cm == nil {
		return nil
	}
	p.publishAvailability(ctx, cm, "offline")
	return cm.Disconnect(ctx)
}

// AwaitConnection blocks until the broker connection is up or ctx
// expires. Used as a connwatch probe.
func (p *Publisher) AwaitConnection(ctx context.Context) error {
	p.mu.RLock()
	cm := p.cm
	p.mu.RUnlock()
	if cm == nil {
		return ErrNotConnected
	}
	return cm.AwaitConnection(ctx)
}

// BookingCreated publishes a booking event. It implements
// booking.Notifier; failures are logged and never block the booking.
func (p *Publisher) BookingCreated(ctx context.Context, b catalog.Booking) {
	p.daily.OnBooking()

	payload, err := json.Marshal(NewBookingEvent(b))
	if err != nil {
		p.logger.Error("mqtt marshal booking event", "reference", b.Reference, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.publish(ctx, &paho.Publish{
		Topic:   p.bookingTopic(),
		Payload: payload,
		QoS:     1,
	}); err != nil {
		p.logger.Warn("mqtt booking event publish failed",
			"reference", b.Reference, "error", err)
		return
	}
	p.logger.Debug("mqtt booking event published", "reference", b.Reference, "topic", p.bookingTopic())
}

// NewBookingEvent projects a booking onto its event payload.
func NewBookingEvent(b catalog.Booking) BookingEvent {
	return BookingEvent{
		Event:             "booking.created",
		Reference:         b.Reference,
		Kind:              b.Kind,
		ItemID:            b.ItemID,
		UserID:            b.UserID,
		TotalParticipants: b.TotalParticipants,
		TotalAmount:       b.TotalAmount,
		Currency:          b.Currency,
		BookingStatus:     b.BookingStatus,
		PaymentStatus:     b.PaymentStatus,
		CreatedAt:         b.CreatedAt,
	}
}

func (p *Publisher) publish(ctx context.Context, msg *paho.Publish) error {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	_, err := conn.Publish(ctx, msg)
	return err
}

// --- Topics ---

func (p *Publisher) baseTopic() string {
	prefix := strings.Trim(p.cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "gotravel"
	}
	return prefix
}

func (p *Publisher) availabilityTopic() string {
	return p.baseTopic() + "/availability"
}

func (p *Publisher) statusTopic() string {
	return p.baseTopic() + "/status"
}

func (p *Publisher) bookingTopic() string {
	return p.baseTopic() + "/bookings/created"
}

// --- Status ---

func (p *Publisher) publishAvailability(ctx context.Context, conn connection, status string) {
	if _, err := conn.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
		return
	}
	p.logger.Info("mqtt availability published", "status", status)
}

func (p *Publisher) currentStatus() Status {
	s := Status{
		Version:       buildinfo.Version,
		Uptime:        buildinfo.Uptime().String(),
		UpdatedAt:     p.now().UTC(),
		DailySnapshot: p.daily.Snapshot(),
	}
	if p.stats != nil {
		s.DefaultModel = p.stats.DefaultModel()
		s.ActiveSessions = p.stats.ActiveSessions()
	}
	return s
}

func (p *Publisher) publishStatus(ctx context.Context, conn connection) {
	payload, err := json.Marshal(p.currentStatus())
	if err != nil {
		p.logger.Error("mqtt marshal status", "error", err)
		return
	}
	if _, err := conn.Publish(ctx, &paho.Publish{
		Topic:   p.statusTopic(),
		Payload: payload,
		QoS:     0,
		Retain:  true,
	}); err != nil {
		p.logger.Debug("mqtt status publish failed", "error", err)
	}
}

func (p *Publisher) runLoop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.RLock()
			conn := p.conn
			p.mu.RUnlock()
			if conn != nil {
				p.publishStatus(ctx, conn)
			}
		}
	}
}
