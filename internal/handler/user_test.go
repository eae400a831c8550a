package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"zibana/internal/domain"
	"zibana/internal/handler"
	"zibana/internal/tests"
)

func newUserRouter(repo *tests.MockUserRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := handler.NewUserHandler(repo)
	r.POST("/v1/users/register", h.Register)
	r.GET("/v1/users/:id", h.GetUser)
	return r
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUserRegister(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body handler.RegisterRequest
		want int
	}{
		{name: "new rider", body: handler.RegisterRequest{Name: "Ada", Phone: "+2348000000001", CountryCode: "NG", WalletBalance: 2000}, want: http.StatusCreated},
		{name: "duplicate phone", body: handler.RegisterRequest{Name: "Ada", Phone: "+2348000000000"}, want: http.StatusConflict},
		{name: "missing phone", body: handler.RegisterRequest{Name: "Ada"}, want: http.StatusBadRequest},
		{name: "negative balance", body: handler.RegisterRequest{Name: "Ada", Phone: "+2348000000002", WalletBalance: -1}, want: http.StatusBadRequest},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := tests.NewMockUserRepository()
			repo.AddUser(&domain.User{ID: "u0", Name: "Existing", Phone: "+2348000000000", CountryCode: "NG", Currency: "NGN"})

			w := postJSON(newUserRouter(repo), "/v1/users/register", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestUserRegister_DefaultsMarket(t *testing.T) {
	t.Parallel()

	repo := tests.NewMockUserRepository()
	r := newUserRouter(repo)

	w := postJSON(r, "/v1/users/register", handler.RegisterRequest{Name: "Kim", Phone: "+10000000000", CountryCode: "XX"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var got handler.UserResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CountryCode != "NG" || got.Currency != "NGN" {
		t.Errorf("market = %s/%s, want NG/NGN fallback", got.CountryCode, got.Currency)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/users/"+got.ID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("GET status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/users/missing", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET missing status = %d, want 404", rec.Code)
	}
}
