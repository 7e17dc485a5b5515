package sei

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/reseich/reseich-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(client EthClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(newTestVerifier(client), logger.New(logger.Config{Level: slog.LevelError}))

	r := gin.New()
	r.GET("/api/sei/balance/:wallet", h.GetBalance)
	r.GET("/api/sei/gas-estimate", h.EstimateGas)
	return r
}

func TestGetBalanceHandler(t *testing.T) {
	r := newTestRouter(&fakeEthClient{balance: seiToWei(t, "3.5")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sei/balance/"+treasury.Hex(), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "3.5", body["balance_sei"])
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", body["wallet_address"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sei/balance/not-a-wallet", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBalanceHandler_RPCError(t *testing.T) {
	r := newTestRouter(&fakeEthClient{balanceErr: errors.New("rpc down")})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sei/balance/"+treasury.Hex(), nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestEstimateGasHandler(t *testing.T) {
	r := newTestRouter(&fakeEthClient{gasPrice: big.NewInt(1_000_000_000), gasLimit: 21000})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/sei/gas-estimate?from="+treasury.Hex()+"&to=0x00000000000000000000000000000000000000bb&amount=1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sei/gas-estimate?from="+treasury.Hex(), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/api/sei/gas-estimate?from="+treasury.Hex()+"&to=0x00000000000000000000000000000000000000bb&amount=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
