package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xarofive/bank-app-sub001/internal/transfers/handler"
	"github.com/Xarofive/bank-app-sub001/internal/transfers/service"
	"github.com/Xarofive/bank-app-sub001/internal/transfers/store/memory"
	brokermemory "github.com/Xarofive/bank-app-sub001/pkg/platform/broker/memory"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/events"
	"github.com/Xarofive/bank-app-sub001/pkg/platform/publisher"
	"github.com/Xarofive/bank-app-sub001/pkg/testutil"
)

type transferResponse struct {
	ID          string `json:"id"`
	FromAccount string `json:"fromAccount"`
	ToAccount   string `json:"toAccount"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
}

func newRouter(t *testing.T) chi.Router {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub := publisher.New(brokermemory.New(), events.NewRegistry(), publisher.Config{Source: "transfers"}, logger,
		publisher.WithMetrics(publisher.NewMetrics(prometheus.NewRegistry())))
	svc := service.New(memory.New(), pub, logger)

	r := chi.NewRouter()
	handler.New(svc, logger).Register(r)
	return r
}

func postTransfer(t *testing.T, r chi.Router, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/transfers", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return testutil.DoRequest(r, req)
}

func TestHandleComplete(t *testing.T) {
	r := newRouter(t)

	testutil.When(t, "a valid transfer is posted", func(t *testing.T) {
		rr := postTransfer(t, r, map[string]any{
			"fromAccount": "acc-1",
			"toAccount":   "acc-2",
			"amount":      1500,
			"currency":    "EUR",
		})
		testutil.AssertStatus(t, rr, http.StatusCreated)

		resp := testutil.UnmarshalResponse[transferResponse](t, rr)
		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "acc-1", resp.FromAccount)
		assert.Equal(t, int64(1500), resp.Amount)
	})

	testutil.Then(t, "the transfer shows in the account history", func(t *testing.T) {
		rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/v1/transfers?account=acc-1"))
		testutil.AssertStatus(t, rr, http.StatusOK)

		history := testutil.UnmarshalResponse[[]transferResponse](t, rr)
		require.Len(t, *history, 1)
		assert.Equal(t, "acc-2", (*history)[0].ToAccount)
	})
}

func TestHandleCompleteRejectsInvalidBody(t *testing.T) {
	r := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/transfers", bytes.NewBufferString("{not json"))
	rr := testutil.DoRequest(r, req)
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestHandleCompleteRejectsInvalidTransfer(t *testing.T) {
	r := newRouter(t)

	rr := postTransfer(t, r, map[string]any{
		"fromAccount": "acc-1",
		"toAccount":   "acc-1",
		"amount":      100,
		"currency":    "EUR",
	})
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}

func TestHandleHistoryRequiresAccount(t *testing.T) {
	r := newRouter(t)

	rr := testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/v1/transfers"))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
}
