package verification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotempsh/temps-cli/pkg/api/client"
	"github.com/gotempsh/temps-cli/pkg/poll"
)

func strptr(s string) *string { return &s }

func TestDerive(t *testing.T) {
	withToken := client.Domain{Status: client.DomainPendingDNS, DNSChallengeToken: strptr("tok")}
	cases := []struct {
		name   string
		domain client.Domain
		order  *client.AcmeOrder
		want   Stage
	}{
		{"no order", client.Domain{Status: client.DomainPending}, nil, StageNoOrder},
		{"active without order", client.Domain{Status: client.DomainActive}, nil, StageActive},
		{"active with order", client.Domain{Status: client.DomainActive}, &client.AcmeOrder{Status: client.OrderValid}, StageActive},
		{"domain failed", client.Domain{Status: client.DomainFailed}, &client.AcmeOrder{Status: client.OrderPending}, StageFailed},
		{"domain expired", client.Domain{Status: client.DomainExpired}, &client.AcmeOrder{Status: client.OrderPending}, StageFailed},
		{"order invalid", client.Domain{Status: client.DomainPendingDNS}, &client.AcmeOrder{Status: client.OrderInvalid}, StageFailed},
		{"order processing", client.Domain{Status: client.DomainPendingDNS}, &client.AcmeOrder{Status: client.OrderProcessing}, StageVerifying},
		{"order ready", withToken, &client.AcmeOrder{Status: client.OrderReady}, StageVerifying},
		{"pending validation", client.Domain{Status: client.DomainPendingValidation}, &client.AcmeOrder{Status: client.OrderPending}, StageVerifying},
		{"dns token", withToken, &client.AcmeOrder{Status: client.OrderPending}, StageChallengeReady},
		{"authorizations", client.Domain{Status: client.DomainPendingHTTP}, &client.AcmeOrder{Status: client.OrderPending, Authorizations: json.RawMessage(`["https://acme/authz/1"]`)}, StageChallengeReady},
		{"empty authorizations", client.Domain{Status: client.DomainPending}, &client.AcmeOrder{Status: client.OrderPending, Authorizations: json.RawMessage(`[]`)}, StageOrderCreated},
		{"order created", client.Domain{Status: client.DomainPending}, &client.AcmeOrder{Status: client.OrderPending}, StageOrderCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Derive(tc.domain, tc.order))
		})
	}
}

func TestActions(t *testing.T) {
	want := map[Stage][]Action{
		StageNoOrder:        {ActionCreateOrder},
		StageOrderCreated:   {ActionRefresh, ActionCancel},
		StageChallengeReady: {ActionVerify, ActionCancel},
		StageVerifying:      {ActionRefresh, ActionCancel},
		StageFailed:         {ActionVerify, ActionCancel},
		StageActive:         {ActionRenew},
	}
	for stage, actions := range want {
		if diff := cmp.Diff(actions, Actions(stage)); diff != "" {
			t.Errorf("Actions(%s) mismatch (-want +got):\n%s", stage, diff)
		}
	}
	assert.Nil(t, Actions(Stage("bogus")))
}

// fakeAPI simulates the server side of the protocol.
type fakeAPI struct {
	mu        sync.Mutex
	domain    client.Domain
	order     *client.AcmeOrder
	calls     []string
	finalize  func(*fakeAPI)
	getErr    error
	renewType string
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) Get(_ context.Context, domain string) (client.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get " + domain)
	if f.getErr != nil {
		return client.Domain{}, f.getErr
	}
	return f.domain, nil
}

func (f *fakeAPI) Order(_ context.Context, id int) (client.AcmeOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("order")
	if f.order == nil {
		return client.AcmeOrder{}, client.APIError{Status: http.StatusNotFound, Message: "no order"}
	}
	return *f.order, nil
}

func (f *fakeAPI) CreateOrder(_ context.Context, id int) (client.DomainChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create-order")
	f.order = &client.AcmeOrder{ID: 1, DomainID: id, Status: client.OrderPending}
	f.domain.Status = client.DomainPendingDNS
	f.domain.DNSChallengeValue = strptr("txt-value")
	return client.DomainChallenge{Domain: f.domain.Domain}, nil
}

func (f *fakeAPI) Challenge(_ context.Context, domain string) (client.DomainChallenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("challenge")
	if f.domain.DNSChallengeValue == nil {
		return client.DomainChallenge{}, client.APIError{Status: http.StatusNotFound}
	}
	return client.DomainChallenge{
		Domain:     domain,
		TXTRecords: []client.TXTRecord{{Name: "_acme-challenge." + domain, Value: *f.domain.DNSChallengeValue}},
		Status:     "pending",
	}, nil
}

func (f *fakeAPI) FinalizeOrder(_ context.Context, id int) (client.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("finalize")
	if f.finalize != nil {
		f.finalize(f)
	}
	return f.domain, nil
}

func (f *fakeAPI) CancelOrder(_ context.Context, id int) (client.Domain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("cancel")
	f.order = nil
	f.domain.Status = client.DomainPending
	f.domain.DNSChallengeValue = nil
	return f.domain, nil
}

func (f *fakeAPI) Renew(_ context.Context, domain string) (client.Provisioning, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("renew")
	if f.renewType == client.ProvisionError {
		return client.Provisioning{Type: client.ProvisionError, Message: "rate limited"}, nil
	}
	return client.Provisioning{Type: client.ProvisionComplete, Domain: &f.domain}, nil
}

func TestFlowWalksThroughStages(t *testing.T) {
	api := &fakeAPI{domain: client.Domain{ID: 7, Domain: "shop.example", Status: client.DomainPending}}
	api.finalize = func(f *fakeAPI) {
		f.order.Status = client.OrderValid
		f.domain.Status = client.DomainActive
	}
	flow := New(api, " Shop.Example ")
	ctx := context.Background()

	snap, err := flow.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, StageNoOrder, snap.Stage)
	assert.Nil(t, snap.Order)

	snap, err = flow.CreateOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, StageChallengeReady, snap.Stage)
	require.NotNil(t, snap.Challenge)
	assert.Equal(t, "txt-value", snap.Challenge.TXTRecords[0].Value)

	snap, err = flow.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, StageActive, snap.Stage)
	assert.Equal(t, []Action{ActionRenew}, snap.Actions())
	assert.Nil(t, snap.Challenge)

	assert.Equal(t, []string{
		"get shop.example", "order",
		"create-order", "get shop.example", "order", "challenge",
		"finalize", "get shop.example", "order",
	}, api.calls)
}

func TestFlowCancelReturnsToNoOrder(t *testing.T) {
	api := &fakeAPI{
		domain: client.Domain{ID: 3, Domain: "a.example", Status: client.DomainPendingDNS, DNSChallengeValue: strptr("v")},
		order:  &client.AcmeOrder{ID: 1, Status: client.OrderPending},
	}
	flow := New(api, "a.example")
	snap, err := flow.Cancel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StageNoOrder, snap.Stage)
	assert.Equal(t, "get a.example", api.calls[0])
}

func TestFlowRenewReportsProvisioningError(t *testing.T) {
	api := &fakeAPI{domain: client.Domain{ID: 3, Domain: "a.example", Status: client.DomainActive}, renewType: client.ProvisionError}
	_, err := New(api, "a.example").Renew(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestFlowPropagatesFetchErrors(t *testing.T) {
	boom := errors.New("connection refused")
	api := &fakeAPI{getErr: boom}
	_, err := New(api, "a.example").Verify(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"get a.example"}, api.calls)
}

func TestWatchStopsWhenActive(t *testing.T) {
	api := &fakeAPI{
		domain: client.Domain{ID: 5, Domain: "b.example", Status: client.DomainPendingValidation},
		order:  &client.AcmeOrder{ID: 1, Status: client.OrderProcessing},
	}
	polls := 0
	store := poll.NewMemoryStore()
	snap, res, err := New(api, "b.example").Watch(context.Background(), WatchOptions{
		Interval: time.Millisecond,
		Store:    store,
		OnUpdate: func(s Snapshot) {
			polls++
			if polls == 2 {
				api.mu.Lock()
				api.domain.Status = client.DomainActive
				api.mu.Unlock()
			}
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Terminal)
	assert.False(t, res.Failed)
	assert.Equal(t, 3, res.State.Attempts)
	assert.Equal(t, StageActive, snap.Stage)

	cached, ok, err := poll.Load[Snapshot](context.Background(), store, "domain:b.example")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StageActive, cached.Stage)
}

func TestWatchReportsFailedStage(t *testing.T) {
	api := &fakeAPI{
		domain: client.Domain{ID: 6, Domain: "c.example", Status: client.DomainPendingDNS},
		order:  &client.AcmeOrder{ID: 2, Status: client.OrderInvalid},
	}
	snap, res, err := New(api, "c.example").Watch(context.Background(), WatchOptions{Interval: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, StageFailed, snap.Stage)
	assert.True(t, res.Terminal)
	assert.True(t, res.Failed)
	assert.Equal(t, 1, res.State.Attempts)
}
