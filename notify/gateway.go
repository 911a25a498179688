package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goliatone/go-casework"
)

// Email is one templated email.
type Email struct {
	DeliveryID string            `json:"delivery_id"`
	CaseID     int64             `json:"case_id"`
	To         string            `json:"to"`
	TemplateID string            `json:"template_id"`
	Variables  map[string]string `json:"variables"`
	Language   casework.Language `json:"language"`
}

// Letter is one posted pack of rendered documents.
type Letter struct {
	DeliveryID string           `json:"delivery_id"`
	CaseID     int64            `json:"case_id"`
	Name       string           `json:"name"`
	Address    casework.Address `json:"address"`
	Documents  []DocumentRef    `json:"documents"`
}

// RenderRequest asks for a document to be produced from a template.
type RenderRequest struct {
	CaseID         int64             `json:"case_id"`
	TemplateID     string            `json:"template_id"`
	Language       casework.Language `json:"language"`
	Variables      map[string]string `json:"variables"`
	Classification string            `json:"classification"`
}

// DocumentRef points to a rendered document.
type DocumentRef struct {
	ID         string            `json:"id"`
	Filename   string            `json:"filename"`
	TemplateID string            `json:"template_id"`
	Language   casework.Language `json:"language"`
}

// EmailSender delivers emails and returns the provider delivery id.
type EmailSender interface {
	SendEmail(ctx context.Context, email Email) (string, error)
}

// LetterSender posts letters and returns the provider letter id.
type LetterSender interface {
	SendLetter(ctx context.Context, letter Letter) (string, error)
}

// DocumentRenderer renders documents for letters.
type DocumentRenderer interface {
	Render(ctx context.Context, req RenderRequest) (DocumentRef, error)
}

// DeliveryStatus is the recorded result of one attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// Delivery is one recorded dispatch attempt.
type Delivery struct {
	ID         string         `json:"id"`
	CaseID     int64          `json:"case_id"`
	Trigger    Trigger        `json:"trigger"`
	TemplateID string         `json:"template_id"`
	Channel    Channel        `json:"channel"`
	Party      Party          `json:"party"`
	Recipient  string         `json:"recipient"`
	Status     DeliveryStatus `json:"status"`
	ExternalID string         `json:"external_id,omitempty"`
	Error      string         `json:"error,omitempty"`
	At         time.Time      `json:"at"`
}

// DeliveryLog records dispatch attempts.
type DeliveryLog interface {
	Record(ctx context.Context, d Delivery) error
	List(ctx context.Context, caseID int64) ([]Delivery, error)
}

// DispatchMetrics counts dispatch attempts by channel and status.
type DispatchMetrics struct {
	Attempts *prometheus.CounterVec
}

// NewDispatchMetrics registers the dispatch collectors with reg.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	factory := promauto.With(reg)
	return &DispatchMetrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casework_notifications_total",
			Help: "Notification dispatch attempts by channel and status.",
		}, []string{"channel", "status"}),
	}
}

func (m *DispatchMetrics) record(channel Channel, status DeliveryStatus) {
	if m == nil || m.Attempts == nil {
		return
	}
	m.Attempts.WithLabelValues(string(channel), string(status)).Inc()
}

// Gateway hands resolved variants to the delivery channels. It does not retry.
type Gateway struct {
	email    EmailSender
	letters  LetterSender
	renderer DocumentRenderer
	log      DeliveryLog
	metrics  *DispatchMetrics
	logger   casework.Logger
	now      func() time.Time
	newID    func() string
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithDeliveryLog records every attempt in log.
func WithDeliveryLog(log DeliveryLog) GatewayOption {
	return func(g *Gateway) { g.log = log }
}

// WithDispatchMetrics counts attempts.
func WithDispatchMetrics(m *DispatchMetrics) GatewayOption {
	return func(g *Gateway) { g.metrics = m }
}

// WithGatewayLogger sets the gateway logger.
func WithGatewayLogger(logger casework.Logger) GatewayOption {
	return func(g *Gateway) { g.logger = logger }
}

// WithGatewayClock overrides the attempt timestamp source.
func WithGatewayClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGateway builds a gateway. Letters require both a sender and a renderer.
func NewGateway(email EmailSender, letters LetterSender, renderer DocumentRenderer, opts ...GatewayOption) (*Gateway, error) {
	if email == nil {
		return nil, fmt.Errorf("email sender required")
	}
	if letters == nil {
		return nil, fmt.Errorf("letter sender required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("document renderer required")
	}
	g := &Gateway{
		email:    email,
		letters:  letters,
		renderer: renderer,
		log:      NewMemoryDeliveryLog(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	g.logger = casework.NormalizeLogger(g.logger)
	return g, nil
}

// Deliveries lists the recorded attempts for caseID.
func (g *Gateway) Deliveries(ctx context.Context, caseID int64) ([]Delivery, error) {
	return g.log.List(ctx, caseID)
}

// Dispatch sends v with vars and records the attempt. Failures are returned as
// CASE_NOTIFICATION_DELIVERY_FAILED errors.
func (g *Gateway) Dispatch(ctx context.Context, caseID int64, v Variant, vars map[string]string) (Delivery, error) {
	d := Delivery{
		ID:         g.newID(),
		CaseID:     caseID,
		Trigger:    v.Trigger,
		TemplateID: v.TemplateID,
		Channel:    v.Channel,
		Party:      v.Recipient.Party,
		At:         g.now(),
	}

	var externalID string
	var err error
	switch v.Channel {
	case ChannelEmail:
		d.Recipient = v.Recipient.Email
		externalID, err = g.email.SendEmail(ctx, Email{
			DeliveryID: d.ID,
			CaseID:     caseID,
			To:         v.Recipient.Email,
			TemplateID: v.TemplateID,
			Variables:  vars,
			Language:   v.Recipient.Language,
		})
	case ChannelLetter:
		d.Recipient = strings.ReplaceAll(FormatAddress(v.Recipient.Address), "\n", ", ")
		externalID, err = g.sendLetter(ctx, d.ID, caseID, v, vars)
	default:
		err = fmt.Errorf("unknown channel %q", v.Channel)
	}

	if err != nil {
		d.Status = DeliveryFailed
		d.Error = err.Error()
	} else {
		d.Status = DeliverySent
		d.ExternalID = externalID
	}
	g.metrics.record(v.Channel, d.Status)
	if lerr := g.log.Record(ctx, d); lerr != nil {
		g.logger.Warn("delivery log record failed for case %d: %v", caseID, lerr)
	}

	if err != nil {
		return d, casework.NewError(casework.ErrNotificationDeliveryFailed,
			fmt.Sprintf("%s %s to %s failed", v.Trigger, v.Channel, v.Recipient.Party), err,
			map[string]any{
				"case_id":     caseID,
				"trigger":     string(v.Trigger),
				"template_id": v.TemplateID,
				"channel":     string(v.Channel),
				"delivery_id": d.ID,
			})
	}
	g.logger.Debug("case %d: %s %s sent to %s (%s)", caseID, v.Trigger, v.Channel, v.Recipient.Party, externalID)
	return d, nil
}

func (g *Gateway) sendLetter(ctx context.Context, deliveryID string, caseID int64, v Variant, vars map[string]string) (string, error) {
	ref, err := g.renderer.Render(ctx, RenderRequest{
		CaseID:         caseID,
		TemplateID:     v.TemplateID,
		Language:       v.Recipient.Language,
		Variables:      vars,
		Classification: "PUBLIC",
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", v.TemplateID, err)
	}
	return g.letters.SendLetter(ctx, Letter{
		DeliveryID: deliveryID,
		CaseID:     caseID,
		Name:       v.Recipient.Name,
		Address:    v.Recipient.Address,
		Documents:  []DocumentRef{ref},
	})
}
