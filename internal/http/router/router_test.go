package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-market/internal/config"
	"github.com/ignatzorin/escrow-market/internal/domain/valueobject"
	"github.com/ignatzorin/escrow-market/internal/logger"
	"github.com/ignatzorin/escrow-market/internal/service"
	"github.com/ignatzorin/escrow-market/internal/storage"
	"github.com/ignatzorin/escrow-market/internal/usecase/usecasetest"
	"github.com/ignatzorin/escrow-market/internal/ws"
)

const price valueobject.Amount = 1_000_000

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	f      *usecasetest.Fixture
	tokens *service.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := usecasetest.New(t, price, nil)
	files, err := storage.NewFileStore(t.TempDir(), 1)
	require.NoError(t, err)

	cfg := &config.Config{
		Env:             "test",
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitLimit:  1000,
		RateLimitPeriod: time.Minute,
	}
	tokens := service.NewTokenManager("router-test-secret", time.Hour, f.Clock)
	reputation := service.NewReputationService(f.Ledger, f.Clock, logger.Nop())
	h := NewHandlers(f.Deps, reputation, service.NewCacheService(f.Clock), files, ws.NewHub(logger.Nop()), cfg.AllowedOrigins, logger.Nop())

	return &testServer{t: t, engine: SetupRouter(cfg, h, tokens, logger.Nop()), f: f, tokens: tokens}
}

func (s *testServer) token(userID uuid.UUID, role valueobject.Role) string {
	tok, _, err := s.tokens.GenerateAccess(userID, role)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

type orderView struct {
	Order struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	} `json:"order"`
	Escrow struct {
		Amount     uint64 `json:"amount"`
		FeeRateBps uint16 `json:"fee_rate_bps"`
		SellerNet  uint64 `json:"seller_net"`
	} `json:"escrow"`
	Payout *struct {
		PlatformFee uint64 `json:"platform_fee"`
		Net         uint64 `json:"net"`
	} `json:"payout"`
}

func (s *testServer) createOrder(buyerToken string) uuid.UUID {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/orders", buyerToken, map[string]any{
		"listing_id":   s.f.Listing.ID.String(),
		"requirements": "лендинг на двух языках",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[orderView](s.t, env).Order.ID
}

func TestRouter_OrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	buyer := s.token(s.f.Buyer, valueobject.RoleBuyer)
	seller := s.token(s.f.Seller, valueobject.RoleSeller)

	rec, env := s.do(http.MethodPost, "/api/orders", buyer, map[string]any{
		"listing_id": s.f.Listing.ID.String(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[orderView](t, env)
	assert.Equal(t, "created", created.Order.Status)
	assert.Equal(t, uint64(price), created.Escrow.Amount)
	assert.Equal(t, uint16(250), created.Escrow.FeeRateBps)
	base := "/api/orders/" + created.Order.ID.String()

	rec, _ = s.do(http.MethodPost, base+"/accept", buyer, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodPost, base+"/accept", seller, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = s.do(http.MethodPost, base+"/deliver", seller, map[string]any{"notes": "макет готов"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(http.MethodPost, base+"/auto-release", buyer, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	rec, env = s.do(http.MethodPost, base+"/complete", buyer, map[string]any{"rating": 5, "review": "отлично"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decode[orderView](t, env)
	assert.Equal(t, "completed", completed.Order.Status)
	require.NotNil(t, completed.Payout)
	assert.Equal(t, uint64(25_000), completed.Payout.PlatformFee)
	assert.Equal(t, uint64(975_000), completed.Payout.Net)

	rec, env = s.do(http.MethodPost, base+"/complete", buyer, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)

	rec, _ = s.do(http.MethodPost, base+"/reviews", seller, map[string]any{"rating": 4, "comment": "чёткое ТЗ"})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = s.do(http.MethodGet, "/api/wallet/balance", seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(975_000), decode[struct {
		Balance uint64 `json:"balance"`
	}](t, env).Balance)

	rec, env = s.do(http.MethodGet, base, seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	details := decode[struct {
		Reviews []struct {
			Rating int `json:"rating"`
		} `json:"reviews"`
	}](t, env)
	assert.Len(t, details.Reviews, 2)

	rec, env = s.do(http.MethodGet, "/api/orders/my?limit=5", buyer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]orderView](t, env), 1)
}

func TestRouter_InsufficientFunds(t *testing.T) {
	s := newTestServer(t)
	stranger := s.token(uuid.New(), valueobject.RoleBuyer)

	rec, env := s.do(http.MethodPost, "/api/orders", stranger, map[string]any{
		"listing_id": s.f.Listing.ID.String(),
	})
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "INSUFFICIENT_FUNDS", env.Error.Code)
}

func TestRouter_AuthAndValidation(t *testing.T) {
	s := newTestServer(t)
	buyer := s.token(s.f.Buyer, valueobject.RoleBuyer)

	rec, _ := s.do(http.MethodGet, "/api/orders/my", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/orders/my", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/orders/not-a-uuid", buyer, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/orders", buyer, map[string]any{"listing_id": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/wallet/deposit", buyer, map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_OrderAccess(t *testing.T) {
	s := newTestServer(t)
	buyer := s.token(s.f.Buyer, valueobject.RoleBuyer)
	orderID := s.createOrder(buyer)

	rec, env := s.do(http.MethodGet, "/api/orders/"+orderID.String(), s.token(uuid.New(), valueobject.RoleBuyer), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	rec, _ = s.do(http.MethodGet, "/api/orders/"+orderID.String(), s.token(uuid.New(), valueobject.RoleArbiter), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_DisputeFlow(t *testing.T) {
	s := newTestServer(t)
	buyer := s.token(s.f.Buyer, valueobject.RoleBuyer)
	seller := s.token(s.f.Seller, valueobject.RoleSeller)
	arbiter := s.token(uuid.New(), valueobject.RoleArbiter)
	orderID := s.createOrder(buyer)
	base := "/api/orders/" + orderID.String()

	rec, _ := s.do(http.MethodPost, base+"/accept", seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodPost, base+"/deliver", seller, map[string]any{"notes": "готово"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPost, base+"/dispute", buyer, map[string]any{"reason": "не по ТЗ"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = s.do(http.MethodPost, base+"/dispute/resolve", buyer, map[string]any{"refund_percentage": 100, "resolution": "сам себе"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodPost, base+"/dispute/assign", arbiter, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, _ = s.do(http.MethodPost, base+"/dispute/resolve", arbiter, map[string]any{"refund_percentage": 101, "resolution": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := s.do(http.MethodPost, base+"/dispute/resolve", arbiter, map[string]any{"refund_percentage": 0, "resolution": "работа принята"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := decode[struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
		Dispute struct {
			SellerPayout uint64 `json:"seller_payout"`
		} `json:"dispute"`
	}](t, env)
	assert.Equal(t, "resolved", outcome.Order.Status)
	assert.Equal(t, uint64(price), outcome.Dispute.SellerPayout)

	rec, env = s.do(http.MethodGet, base+"/dispute", seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "resolved", decode[struct {
		Status string `json:"status"`
	}](t, env).Status)
}

func TestRouter_ListingsAndProfile(t *testing.T) {
	s := newTestServer(t)
	seller := s.token(s.f.Seller, valueobject.RoleSeller)

	rec, env := s.do(http.MethodPost, "/api/listings", seller, map[string]any{
		"title":          "Логотип",
		"description":    "три варианта",
		"price":          50_000,
		"delivery_hours": 72,
		"max_revisions":  1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	listingID := decode[struct {
		ID uuid.UUID `json:"id"`
	}](t, env).ID

	// первое чтение кладёт объявление в кэш, деактивация его сбрасывает
	rec, env = s.do(http.MethodGet, "/api/listings/"+listingID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[struct {
		Active bool `json:"active"`
	}](t, env).Active)

	rec, _ = s.do(http.MethodPost, "/api/listings/"+listingID.String()+"/deactivate", s.token(s.f.Buyer, valueobject.RoleBuyer), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = s.do(http.MethodPost, "/api/listings/"+listingID.String()+"/deactivate", seller, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/listings/"+listingID.String(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[struct {
		Active bool `json:"active"`
	}](t, env).Active)

	rec, env = s.do(http.MethodGet, "/api/users/"+s.f.Seller.String()+"/listings", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]json.RawMessage](t, env), 2)

	rec, env = s.do(http.MethodGet, "/api/users/"+s.f.Seller.String()+"/profile", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[struct {
		CompletedOrders uint64 `json:"completed_orders"`
	}](t, env).CompletedOrders)
}

func TestRouter_FileUploadAndDownload(t *testing.T) {
	s := newTestServer(t)
	seller := s.token(s.f.Seller, valueobject.RoleSeller)

	png := append([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}, bytes.Repeat([]byte{0x42}, 512)...)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", "result.png")
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/files", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+seller)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	file := decode[struct {
		Ref  string `json:"ref"`
		MIME string `json:"mime"`
	}](t, env)
	assert.Equal(t, "image/png", file.MIME)
	require.True(t, storage.IsRef(file.Ref))

	req = httptest.NewRequest(http.MethodGet, "/api/"+file.Ref, nil)
	req.Header.Set("Authorization", "Bearer "+seller)
	rec = httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, png, rec.Body.Bytes())
}

func TestRouter_CORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_UnknownRoute(t *testing.T) {
	s := newTestServer(t)
	rec, env := s.do(http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
