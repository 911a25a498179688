package notify

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-casework"
)

type recordingSender struct {
	mu      sync.Mutex
	emails  []Email
	letters []Letter
	fail    error
}

func (s *recordingSender) SendEmail(_ context.Context, email Email) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.emails = append(s.emails, email)
	return "email-" + email.DeliveryID, nil
}

func (s *recordingSender) SendLetter(_ context.Context, letter Letter) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.letters = append(s.letters, letter)
	return "letter-" + letter.DeliveryID, nil
}

var fixedNow = time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

func newTestGateway(t *testing.T, sender *recordingSender, opts ...GatewayOption) *Gateway {
	t.Helper()
	opts = append([]GatewayOption{WithGatewayClock(func() time.Time { return fixedNow })}, opts...)
	g, err := NewGateway(sender, sender, TemplateRenderer{}, opts...)
	require.NoError(t, err)
	return g
}

func TestNewGatewayRequiresCollaborators(t *testing.T) {
	sender := &recordingSender{}
	_, err := NewGateway(nil, sender, TemplateRenderer{})
	assert.Error(t, err)
	_, err = NewGateway(sender, nil, TemplateRenderer{})
	assert.Error(t, err)
	_, err = NewGateway(sender, sender, nil)
	assert.Error(t, err)
}

func TestDispatchEmailRecordsDelivery(t *testing.T) {
	sender := &recordingSender{}
	reg := prometheus.NewRegistry()
	metrics := NewDispatchMetrics(reg)
	g := newTestGateway(t, sender, WithDispatchMetrics(metrics))
	c := soleCase()
	v := selectOne(t, ApplicationSubmitted, c, Applicant1)

	d, err := g.Dispatch(context.Background(), c.ID, v, map[string]string{VarFirstName: "Sam"})
	require.NoError(t, err)
	assert.Equal(t, DeliverySent, d.Status)
	assert.Equal(t, "email-"+d.ID, d.ExternalID)
	require.Len(t, sender.emails, 1)
	assert.Equal(t, "sam@example.com", sender.emails[0].To)
	assert.Equal(t, "Sam", sender.emails[0].Variables[VarFirstName])

	logged, err := g.Deliveries(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, d, logged[0])
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Attempts.WithLabelValues("email", "sent")))
}

func TestDispatchLetterRendersDocument(t *testing.T) {
	sender := &recordingSender{}
	g := newTestGateway(t, sender)
	c := soleCase()
	c.Data.Applicant1.Offline = true
	v := selectOne(t, ApplicationSubmitted, c, Applicant1)

	d, err := g.Dispatch(context.Background(), c.ID, v, nil)
	require.NoError(t, err)
	require.Len(t, sender.letters, 1)
	letter := sender.letters[0]
	assert.Equal(t, "Sam Jones", letter.Name)
	require.Len(t, letter.Documents, 1)
	assert.Equal(t, v.TemplateID, letter.Documents[0].TemplateID)
	assert.Equal(t, "1 High Street, Cardiff, CF10 1AA", d.Recipient)
}

func TestDispatchFailureIsCodedAndLogged(t *testing.T) {
	sender := &recordingSender{fail: errors.New("provider down")}
	g := newTestGateway(t, sender)
	c := soleCase()
	v := selectOne(t, ApplicationSubmitted, c, Applicant1)

	d, err := g.Dispatch(context.Background(), c.ID, v, nil)
	require.Error(t, err)
	assert.True(t, casework.HasCode(err, casework.ErrCodeNotificationDeliveryFailed))
	assert.Equal(t, DeliveryFailed, d.Status)
	assert.Equal(t, "provider down", d.Error)

	logged, err := g.Deliveries(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, DeliveryFailed, logged[0].Status)
}

func TestSQLDeliveryLogRoundTrip(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "deliveries.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	log, err := NewSQLDeliveryLog(ctx, db)
	require.NoError(t, err)

	first := Delivery{
		ID: "d-1", CaseID: 7, Trigger: ApplicationIssued, TemplateID: "tpl-1",
		Channel: ChannelEmail, Party: Applicant1, Recipient: "sam@example.com",
		Status: DeliverySent, ExternalID: "x-1", At: fixedNow,
	}
	second := first
	second.ID = "d-2"
	second.Channel = ChannelLetter
	second.Status = DeliveryFailed
	second.Error = "no printer"
	second.At = fixedNow.Add(time.Minute)

	require.NoError(t, log.Record(ctx, second))
	require.NoError(t, log.Record(ctx, first))
	require.NoError(t, log.Record(ctx, Delivery{ID: "other", CaseID: 8, At: fixedNow}))

	got, err := log.List(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []Delivery{first, second}, got)

	assert.Error(t, log.Record(ctx, first), "duplicate id")
}
