package campaign_test

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/channel"
	"github.com/zntrlhub/engage/internal/delivery"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/repository"
	"github.com/zntrlhub/engage/internal/tenant"
)

// memStore backs every read interface the campaign package needs.
type memStore struct {
	mu            sync.Mutex
	campaigns     map[uuid.UUID]domain.Campaign
	messages      map[uuid.UUID]domain.Message
	segmentations map[uuid.UUID]domain.Segmentation
	members       map[uuid.UUID][]uuid.UUID
	enrolled      map[uuid.UUID]bool
	visitors      map[uuid.UUID]domain.Visitor
	creds         map[uuid.UUID]domain.ChannelCredentials
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:     map[uuid.UUID]domain.Campaign{},
		messages:      map[uuid.UUID]domain.Message{},
		segmentations: map[uuid.UUID]domain.Segmentation{},
		members:       map[uuid.UUID][]uuid.UUID{},
		enrolled:      map[uuid.UUID]bool{},
		visitors:      map[uuid.UUID]domain.Visitor{},
		creds:         map[uuid.UUID]domain.ChannelCredentials{},
	}
}

func (m *memStore) addCampaign(c domain.Campaign) domain.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.State == "" {
		c.State = domain.CampaignActive
	}
	m.campaigns[c.ID] = c
	return c
}

func (m *memStore) addMessage(msg domain.Message) domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	m.messages[msg.ID] = msg
	return msg
}

func (m *memStore) addMember(segID, visitorID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[segID] = append(m.members[segID], visitorID)
}

func (m *memStore) owns(tc tenant.Context, campaignID uuid.UUID) bool {
	c, ok := m.campaigns[campaignID]
	return ok && tc.Owns(c.AccountID)
}

func (m *memStore) ListByCampaign(_ context.Context, tc tenant.Context, campaignID uuid.UUID) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.owns(tc, campaignID) {
		return nil, nil
	}
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.CampaignID == campaignID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) GetMessage(_ context.Context, tc tenant.Context, id uuid.UUID) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || !m.owns(tc, msg.CampaignID) {
		return domain.Message{}, repository.ErrNotFound
	}
	return msg, nil
}

func (m *memStore) GetCampaign(_ context.Context, tc tenant.Context, id uuid.UUID) (domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || !tc.Owns(c.AccountID) {
		return domain.Campaign{}, repository.ErrNotFound
	}
	return c, nil
}

func (m *memStore) ListActiveBySegmentation(_ context.Context, tc tenant.Context, segID uuid.UUID) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.SegmentationID == segID && tc.Owns(c.AccountID) && c.IsActive() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) GetSegmentation(_ context.Context, tc tenant.Context, id uuid.UUID) (domain.Segmentation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.segmentations[id]
	if !ok || !tc.Owns(s.AccountID) {
		return domain.Segmentation{}, repository.ErrNotFound
	}
	return s, nil
}

func (m *memStore) HasMember(_ context.Context, segID, visitorID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.members[segID] {
		if v == visitorID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListVisitorIDs(_ context.Context, segID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.members[segID]...), nil
}

func (m *memStore) ListUnenrolled(_ context.Context, segID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for _, v := range m.members[segID] {
		if !m.enrolled[enrollKey(segID, v)] {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memStore) MarkEnrolled(_ context.Context, segID uuid.UUID, visitors []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range visitors {
		m.enrolled[enrollKey(segID, v)] = true
	}
	return nil
}

func enrollKey(segID, visitorID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(segID, visitorID[:])
}

func (m *memStore) GetVisitor(_ context.Context, _ tenant.Context, id uuid.UUID) (domain.Visitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visitors[id]
	if !ok {
		return domain.Visitor{}, repository.ErrNotFound
	}
	return v, nil
}

func (m *memStore) GetCredentials(_ context.Context, tc tenant.Context) (domain.ChannelCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[tc.AccountID]
	if !ok {
		return domain.ChannelCredentials{}, repository.ErrNotFound
	}
	return c, nil
}

// fakeGateway records sends and returns one delivery per recipient.
type fakeGateway struct {
	mu   sync.Mutex
	sent []channel.SendRequest
	err  error
}

func (g *fakeGateway) Send(_ context.Context, _ domain.ChannelCredentials, req channel.SendRequest) ([]channel.Delivery, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.sent = append(g.sent, req)
	var out []channel.Delivery
	for _, r := range req.Recipients {
		out = append(out, channel.Delivery{WhatsAppNumber: r.WhatsAppNumber, ExternalID: "wamid." + uuid.NewString()})
	}
	return out, nil
}

func (g *fakeGateway) Templates(context.Context, domain.ChannelCredentials, int) ([]domain.Template, error) {
	return nil, nil
}

func (g *fakeGateway) Probe(context.Context, domain.ChannelCredentials) bool { return true }

func (g *fakeGateway) requests() []channel.SendRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]channel.SendRequest(nil), g.sent...)
}

// memCorrelations implements delivery.CorrelationStore.
type memCorrelations struct {
	mu   sync.Mutex
	rows map[string]domain.DeliveryCorrelation
}

func newMemCorrelations() *memCorrelations {
	return &memCorrelations{rows: map[string]domain.DeliveryCorrelation{}}
}

func (m *memCorrelations) InsertCorrelation(_ context.Context, c domain.DeliveryCorrelation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := c.AccountID.String() + "/" + c.ExternalID
	if _, ok := m.rows[key]; ok {
		return delivery.ErrDuplicateCorrelation
	}
	m.rows[key] = c
	return nil
}

func (m *memCorrelations) FindCorrelation(_ context.Context, accountID uuid.UUID, externalID string) (domain.DeliveryCorrelation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[accountID.String()+"/"+externalID]
	if !ok {
		return domain.DeliveryCorrelation{}, repository.ErrNotFound
	}
	return c, nil
}

func (m *memCorrelations) all() []domain.DeliveryCorrelation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DeliveryCorrelation, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, c)
	}
	return out
}
