package wati

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zntrlhub/engage/internal/channel"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/pkg/httpretry"
)

func testClient(srv *httptest.Server) *Client {
	return NewClient(WithHTTPClient(srv.Client(), 2, httpretry.WithBackoff(time.Millisecond, 2*time.Millisecond)))
}

func creds(srv *httptest.Server) domain.ChannelCredentials {
	return domain.ChannelCredentials{AccountID: uuid.New(), Endpoint: srv.URL + "/", APIKey: "Bearer secret", Connected: true}
}

func TestSend(t *testing.T) {
	var sendCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/sendTemplateMessages", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&sendCalls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body sendTemplateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "welcome_v2", body.TemplateName)
		assert.Equal(t, "Spring launch", body.BroadcastName)
		if assert.Len(t, body.Receivers, 2) {
			assert.Equal(t, "name", body.Receivers[0].CustomParams[0].Name)
		}
		w.Write([]byte(`{"result":true}`))
	})
	mux.HandleFunc("/api/v1/getMessages/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("pageSize"))
		number := r.URL.Path[len("/api/v1/getMessages/"):]
		if number == "4900000000" {
			w.Write([]byte(`{"messages":{"items":[]}}`))
			return
		}
		fmt.Fprintf(w, `{"messages":{"items":[{"id":"wamid.%s"}]}}`, number)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	deliveries, err := testClient(srv).Send(context.Background(), creds(srv), channel.SendRequest{
		TemplateName:  "welcome_v2",
		BroadcastName: "Spring launch",
		Recipients: []channel.Recipient{
			{WhatsAppNumber: "4915100000", CustomParams: []channel.CustomParam{{Name: "name", Value: "Ada"}}},
			{WhatsAppNumber: "4900000000", CustomParams: []channel.CustomParam{{Name: "name", Value: "Bob"}}},
		},
	})
	require.NoError(t, err)

	require.Len(t, deliveries, 1, "recipient without a message id is skipped")
	assert.Equal(t, "4915100000", deliveries[0].WhatsAppNumber)
	assert.Equal(t, "wamid.4915100000", deliveries[0].ExternalID)
	assert.Equal(t, int32(1), sendCalls)
}

func TestSend_ErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	_, err := testClient(srv).Send(context.Background(), creds(srv), channel.SendRequest{
		TemplateName: "t",
		Recipients:   []channel.Recipient{{WhatsAppNumber: "1"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, channel.ErrGatewayError))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, int32(1), calls, "sends must not be retried by the client")
}

func TestTemplates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/getMessageTemplates", r.URL.Path)
		assert.Equal(t, "500", r.URL.Query().Get("pageSize"))
		switch r.URL.Query().Get("pageNumber") {
		case "1":
			w.Write([]byte(`{"messageTemplates":[{"elementName":"welcome_v2","status":"APPROVED"},{"name":"reminder"}]}`))
		default:
			w.Write([]byte(`{"messageTemplates":[]}`))
		}
	}))
	defer srv.Close()

	c := testClient(srv)
	cr := creds(srv)

	page1, err := c.Templates(context.Background(), cr, 1)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "welcome_v2", page1[0].Name)
	assert.Equal(t, "reminder", page1[1].Name)
	assert.Equal(t, cr.AccountID, page1[0].AccountID)
	assert.JSONEq(t, `{"elementName":"welcome_v2","status":"APPROVED"}`, string(page1[0].Raw))

	page2, err := c.Templates(context.Background(), cr, 2)
	require.NoError(t, err)
	assert.Empty(t, page2)
}

func TestTemplates_SkipsNamelessEntries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messageTemplates":[{"status":"APPROVED"},42,{"elementName":"order_update"}]}`))
	}))
	defer srv.Close()

	got, err := testClient(srv).Templates(context.Background(), creds(srv), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "order_update", got[0].Name)
}

func TestAPIErrorBodyKeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("a", 511) + "é"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	_, err := testClient(srv).Templates(context.Background(), creds(srv), 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, utf8.ValidString(apiErr.Body))
	assert.Equal(t, strings.Repeat("a", 511)+"...", apiErr.Body)
}

func TestTemplates_RetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"messageTemplates":[]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv).Templates(context.Background(), creds(srv), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls)
}

func TestProbe(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/getContacts", r.URL.Path)
		w.Write([]byte(`{}`))
	}))
	defer ok.Close()
	assert.True(t, testClient(ok).Probe(context.Background(), creds(ok)))

	denied := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer denied.Close()
	assert.False(t, testClient(denied).Probe(context.Background(), creds(denied)))

	assert.False(t, NewClient().Probe(context.Background(), domain.ChannelCredentials{}))
}
