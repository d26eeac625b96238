package campaign_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zntrlhub/engage/internal/campaign"
	"github.com/zntrlhub/engage/internal/channel"
	"github.com/zntrlhub/engage/internal/domain"
)

func TestParamRenderer_Recipient(t *testing.T) {
	r := campaign.NewParamRenderer()
	v := domain.Visitor{ID: uuid.New(), Name: "Grace Hopper", WhatsAppNumber: "15550002222"}
	c := domain.Campaign{ID: uuid.New(), Name: "spring"}
	m := domain.Message{Params: map[string]string{
		"greeting": "Hi {{ visitor.name | first_name }}",
		"campaign": "{{ campaign.name }}",
		"name":     "ignored",
	}}

	rec, err := r.Recipient(v, c, m)
	require.NoError(t, err)
	assert.Equal(t, "15550002222", rec.WhatsAppNumber)
	assert.Equal(t, []channel.CustomParam{
		{Name: "name", Value: "Grace Hopper"},
		{Name: "phone", Value: "15550002222"},
		{Name: "campaign", Value: "spring"},
		{Name: "greeting", Value: "Hi Grace"},
	}, rec.CustomParams)
}

func TestParamRenderer_Default(t *testing.T) {
	r := campaign.NewParamRenderer()
	m := domain.Message{Params: map[string]string{"hello": "{{ visitor.name | default: 'there' }}"}}

	rec, err := r.Recipient(domain.Visitor{WhatsAppNumber: "1"}, domain.Campaign{}, m)
	require.NoError(t, err)
	assert.Equal(t, "there", rec.CustomParams[2].Value)
}

func TestParamRenderer_Check(t *testing.T) {
	r := campaign.NewParamRenderer()
	assert.NoError(t, r.Check(map[string]string{"a": "{{ visitor.name }}"}))
	assert.Error(t, r.Check(map[string]string{"a": "{% if %}"}))
}
