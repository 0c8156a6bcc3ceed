package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seat-booking-companion/config"
	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/booking"
	"seat-booking-companion/internal/cache"
	"seat-booking-companion/internal/db"
	"seat-booking-companion/internal/gateway"
	"seat-booking-companion/internal/invitation"
	"seat-booking-companion/internal/partner"
	"seat-booking-companion/internal/session"
	"seat-booking-companion/internal/store"
	"seat-booking-companion/internal/venue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend is a minimal booking backend.
type fakeBackend struct {
	mu        sync.Mutex
	calls     map[string]int
	bookings  []map[string]any
	created   []backend.CreateBookingRequest
	seatsMade int
}

func (f *fakeBackend) hit(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
}

func (f *fakeBackend) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func reply(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "message": "ok", "data": data})
}

func replyError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": status, "message": msg})
}

var testUser = map[string]any{"id": 7, "username": "zhangsan", "fullName": "张三"}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.hit("login")
		var creds backend.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			replyError(w, http.StatusUnauthorized, "用户名或密码错误")
			return
		}
		reply(w, map[string]any{"token": "tok-7", "user": testUser})
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		f.hit("logout")
		reply(w, nil)
	})
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		reply(w, testUser)
	})
	mux.HandleFunc("GET /api/v1/users/me/credits", func(w http.ResponseWriter, r *http.Request) {
		f.hit("credits")
		reply(w, map[string]any{"credits": 9})
	})
	mux.HandleFunc("GET /api/v1/users/me/transactions", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{"transactions": []map[string]any{{"id": 1, "amount": -1, "type": "BOOKING"}}, "total": 1})
	})
	mux.HandleFunc("GET /api/v1/users/search", func(w http.ResponseWriter, r *http.Request) {
		f.hit("search")
		reply(w, []map[string]any{{"id": 8, "username": "lisi", "fullName": "李四"}})
	})
	mux.HandleFunc("GET /api/v1/seats/areas", func(w http.ResponseWriter, r *http.Request) {
		f.hit("areas")
		reply(w, []map[string]any{{"id": 1, "name": "A"}})
	})
	mux.HandleFunc("GET /api/v1/seats/timeslots", func(w http.ResponseWriter, r *http.Request) {
		f.hit("timeslots")
		reply(w, []map[string]any{{"id": 0, "name": "上午", "startTime": "09:00", "endTime": "12:00"}})
	})
	mux.HandleFunc("GET /api/v1/seats/map", func(w http.ResponseWriter, r *http.Request) {
		f.hit("map")
		reply(w, map[string]any{"areas": []map[string]any{{
			"id": 1, "name": "A",
			"seats": []map[string]any{
				{"seatId": 41, "seatNumber": "A-01", "columnNum": 1, "rowNum": 1, "isAvailable": true},
				{"seatId": 42, "seatNumber": "A-02", "columnNum": 2, "rowNum": 1, "isAvailable": true},
			},
		}}})
	})
	mux.HandleFunc("GET /api/v1/seats/availability", func(w http.ResponseWriter, r *http.Request) {
		f.hit("availability")
		reply(w, []map[string]any{
			{"seatId": 41, "isAvailable": true},
			{"seatId": 42, "isAvailable": false, "bookingId": 500,
				"bookingUserInfo": map[string]any{"userId": 7, "userName": "zhangsan", "fullName": "张三"}},
		})
	})
	mux.HandleFunc("POST /api/v1/seats/availability", func(w http.ResponseWriter, r *http.Request) {
		f.hit("batch")
		reply(w, []map[string]any{
			{"bookingDate": "2025-12-01", "timeSlotId": 0, "areaId": 1, "seats": []map[string]any{{"seatId": 41, "isAvailable": true}}},
			{"bookingDate": "2025-12-01", "timeSlotId": 1, "areaId": 1, "seats": []map[string]any{
				{"seatId": 41, "isAvailable": false, "bookingUserInfo": map[string]any{"userId": 8, "userName": "lisi"}},
			}},
		})
	})
	mux.HandleFunc("GET /api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		f.hit("bookings")
		f.mu.Lock()
		list := append([]map[string]any(nil), f.bookings...)
		f.mu.Unlock()
		reply(w, map[string]any{"bookings": list, "total": len(list)})
	})
	mux.HandleFunc("POST /api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		var req backend.CreateBookingRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		f.created = append(f.created, req)
		f.bookings = append(f.bookings, map[string]any{
			"id": 100, "userId": 7, "seatId": req.SeatID, "seatNumber": "A-01", "groupId": 10,
			"bookingDate": req.TimeSlots[0].BookingDate, "startTime": "09:00",
		})
		f.mu.Unlock()
		reply(w, map[string]any{"bookingId": 100, "groupId": 10})
	})
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.hit("cancel " + r.PathValue("id"))
		reply(w, nil)
	})
	mux.HandleFunc("GET /api/v1/partner-invitations/upcoming", func(w http.ResponseWriter, r *http.Request) {
		f.hit("invitations")
		reply(w, []map[string]any{{"id": 3, "status": "PENDING", "inviter": map[string]any{"userId": 8, "fullName": "李四"}}})
	})
	mux.HandleFunc("POST /api/v1/partner-invitations/{id}/accept", func(w http.ResponseWriter, r *http.Request) {
		f.hit("accept " + r.PathValue("id"))
		reply(w, nil)
	})
	mux.HandleFunc("POST /api/v1/admin/areas", func(w http.ResponseWriter, r *http.Request) {
		var req backend.CreateAreaRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.hit("create area")
		reply(w, map[string]any{"id": 2, "name": req.Name})
	})
	mux.HandleFunc("POST /api/v1/admin/seats/batch", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Seats []backend.CreateSeatRequest `json:"seats"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.seatsMade += len(body.Seats)
		f.mu.Unlock()
		reply(w, nil)
	})
	return mux
}

type testEnv struct {
	router  *gin.Engine
	backend *fakeBackend
	store   store.Store
	deps    Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fb := &fakeBackend{calls: make(map[string]int)}
	server := httptest.NewServer(fb.handler())
	t.Cleanup(server.Close)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	gdb, err := db.Init(&config.DatabaseConfig{DSN: fmt.Sprintf("file:api_%s?mode=memory&cache=shared", name), MaxOpenConns: 1})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	st := store.NewGormStore(gdb)
	c := cache.New(st, cache.TTLMedium, 0)
	gw := gateway.New(gateway.Options{BaseURL: server.URL, Timeout: 2 * time.Second}, st)
	api := backend.New(gw)

	sess := session.New(api, st, config.AuthConfig{}, c)
	gw.SetReauthenticator(sess)
	v := venue.NewStore(api, sess, c)
	b := booking.NewStore(api, c, time.UTC)
	p := partner.NewStore(api, v)
	t.Cleanup(p.Stop)
	inv := invitation.NewPoller(api, b, sess, nil, c, time.Hour)
	t.Cleanup(inv.Stop)

	deps := Deps{
		Store:       st,
		Session:     sess,
		Venue:       v,
		Bookings:    b,
		Partners:    p,
		Invitations: inv,
		Admin:       api,
		Webpush:     &webpush.Options{VAPIDPublicKey: "pub"},
	}
	router := NewRouter(config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60}, deps)
	return &testEnv{router: router, backend: fb, store: st, deps: deps}
}

func (e *testEnv) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	w := e.do(http.MethodPost, "/api/session/login", map[string]string{"username": "zhangsan", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func TestSessionRoutes(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPost, "/api/session/login", map[string]string{"username": "zhangsan", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"用户名或密码错误"}`, w.Body.String())

	w = e.do(http.MethodPost, "/api/session/login", map[string]string{"username": "zhangsan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	e.login(t)
	var st session.State
	decode(t, e.do(http.MethodGet, "/api/session", nil), &st)
	assert.True(t, st.Authenticated)
	require.NotNil(t, st.User)
	assert.Equal(t, int64(7), st.User.ID)

	token, err := e.store.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-7", token)

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/api/session", nil).Code)
	token, err = e.store.Token(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
	assert.Equal(t, 1, e.backend.count("logout"))
}

func TestVenueRoutes(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	w := e.do(http.MethodGet, "/api/areas", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.Equal(t, "HIT", e.do(http.MethodGet, "/api/areas", nil).Header().Get("X-Cache"))
	assert.Equal(t, 1, e.backend.count("areas"))

	var slots struct {
		TimeSlots []venue.TimeSlot `json:"timeSlots"`
	}
	decode(t, e.do(http.MethodGet, "/api/timeslots", nil), &slots)
	require.Len(t, slots.TimeSlots, 1)
	assert.Equal(t, "09:00 - 12:00", slots.TimeSlots[0].Label)

	var seats struct {
		Seats []venue.Seat `json:"seats"`
	}
	decode(t, e.do(http.MethodGet, "/api/seats", nil), &seats)
	require.Len(t, seats.Seats, 2)

	decode(t, e.do(http.MethodGet, "/api/seats?table=A&position=right", nil), &seats)
	require.Len(t, seats.Seats, 1)
	assert.Equal(t, int64(42), seats.Seats[0].ID)
	decode(t, e.do(http.MethodGet, "/api/seats?table=A", nil), &seats)
	require.Len(t, seats.Seats, 2)
	assert.Equal(t, int64(41), seats.Seats[0].ID, "left side first")
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/seats?table=A&position=up", nil).Code)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/seats/availability?slot=0", nil).Code)
	assert.Equal(t, 0, e.backend.count("availability"))

	var st venue.State
	w = e.do(http.MethodGet, "/api/seats/availability?date=2025-12-01&slot=0&area=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &st)
	byID := map[int64]venue.Seat{}
	for _, s := range st.Seats {
		byID[s.ID] = s
	}
	assert.Equal(t, venue.StatusOccupied, byID[42].Status)
	assert.Equal(t, "张三", byID[42].OccupiedBy)
	assert.True(t, byID[42].BookedByMe)
	assert.Equal(t, venue.StatusAvailable, byID[41].Status)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/seats/42/select", nil).Code)
	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/seats/41/select", nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/api/seats/selection", nil).Code)

	w = e.do(http.MethodPost, "/api/seats/availability/batch", map[string]any{"queries": []map[string]any{
		{"bookingDate": "2025-12-01", "timeSlotId": 0},
		{"bookingDate": "2025-12-01", "timeSlotId": 1},
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &st)
	for _, s := range st.Seats {
		if s.ID == 41 {
			assert.Equal(t, venue.StatusOccupied, s.Status)
			assert.Equal(t, "lisi", s.OccupiedBy)
		}
	}
}

func TestBookingRoutes(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/seats", nil).Code)
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/seats/41/select", nil).Code)

	w := e.do(http.MethodPost, "/api/bookings", map[string]any{
		"timeSlots": []map[string]any{{"bookingDate": "2025-12-01", "timeSlotId": 0}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, e.backend.created, 1)
	assert.Equal(t, int64(41), e.backend.created[0].SeatID, "the selected seat is booked")
	assert.Equal(t, int64(1), e.backend.created[0].AreaID)
	assert.Equal(t, 1, e.backend.count("credits"))

	w = e.do(http.MethodPost, "/api/bookings", map[string]any{
		"seatId":    41,
		"timeSlots": []map[string]any{{"bookingDate": "d", "timeSlotId": 0}, {"bookingDate": "d", "timeSlotId": 1}, {"bookingDate": "d", "timeSlotId": 2}, {"bookingDate": "d", "timeSlotId": 3}, {"bookingDate": "d", "timeSlotId": 4}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var st booking.State
	decode(t, e.do(http.MethodGet, "/api/bookings", nil), &st)
	assert.Len(t, st.Bookings, 1)

	var groups struct {
		Groups []booking.Group `json:"groups"`
	}
	decode(t, e.do(http.MethodGet, "/api/bookings/groups", nil), &groups)
	require.Len(t, groups.Groups, 1)
	assert.Equal(t, int64(10), groups.Groups[0].ID)

	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/api/bookings/100", nil).Code)
	assert.Equal(t, 1, e.backend.count("cancel 100"))
	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodDelete, "/api/bookings/abc", nil).Code)

	var credits struct {
		Credits int `json:"credits"`
	}
	decode(t, e.do(http.MethodGet, "/api/credits", nil), &credits)
	assert.Equal(t, 9, credits.Credits)

	var tx struct {
		Transactions []backend.Transaction `json:"transactions"`
	}
	decode(t, e.do(http.MethodGet, "/api/transactions", nil), &tx)
	assert.Len(t, tx.Transactions, 1)
}

func TestInvitationAndPartnerRoutes(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	var st invitation.State
	decode(t, e.do(http.MethodGet, "/api/invitations?refresh=1", nil), &st)
	require.Len(t, st.Invitations, 1)

	assert.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/invitations/3/accept", nil).Code)
	assert.Equal(t, 1, e.backend.count("accept 3"))
	assert.GreaterOrEqual(t, e.backend.count("bookings"), 1)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPut, "/api/visibility", map[string]any{}).Code)
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodPut, "/api/visibility", map[string]any{"visible": false}).Code)
	assert.False(t, e.deps.Invitations.Visibility().Visible())

	var users struct {
		Users []backend.User `json:"users"`
	}
	decode(t, e.do(http.MethodGet, "/api/partners/search?q=l", nil), &users)
	assert.Empty(t, users.Users)
	assert.Equal(t, 0, e.backend.count("search"))
	decode(t, e.do(http.MethodGet, "/api/partners/search?q=li", nil), &users)
	assert.Len(t, users.Users, 1)

	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/seats", nil).Code)
	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/seats/availability?date=2025-12-01&slot=0", nil).Code)
	var booked struct {
		Partners []partner.Booked `json:"partners"`
	}
	decode(t, e.do(http.MethodGet, "/api/partners/booked?q=%E5%BC%A0&table=A", nil), &booked)
	require.Len(t, booked.Partners, 1)
	assert.Equal(t, "A-02", booked.Partners[0].Seat)
	decode(t, e.do(http.MethodGet, "/api/partners/booked?table=B", nil), &booked)
	assert.Empty(t, booked.Partners)

	var table struct {
		Seats    []venue.Seat     `json:"seats"`
		Partners []partner.Booked `json:"partners"`
	}
	decode(t, e.do(http.MethodGet, "/api/partners/tables/A", nil), &table)
	require.Len(t, table.Seats, 2)
	assert.Equal(t, int64(41), table.Seats[0].ID)
	require.Len(t, table.Partners, 1)
	assert.Equal(t, int64(42), table.Partners[0].SeatID)
}

func TestPartnerTypeAhead(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPut, "/api/partners/search", map[string]any{}).Code)

	assert.Equal(t, http.StatusAccepted, e.do(http.MethodPut, "/api/partners/search", map[string]any{"query": "l"}).Code)
	assert.Equal(t, http.StatusAccepted, e.do(http.MethodPut, "/api/partners/search", map[string]any{"query": "li"}).Code)

	require.Eventually(t, func() bool {
		var st partner.SearchState
		if err := json.Unmarshal(e.do(http.MethodGet, "/api/partners/search", nil).Body.Bytes(), &st); err != nil {
			return false
		}
		return st.Query == "li" && len(st.Results) == 1
	}, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, e.backend.count("search"), "only the last keystroke is searched")
}

func TestSubscriptionRoutes(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(http.MethodPut, "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request"}`, w.Body.String())

	sub := map[string]string{"endpoint": "https://push.example.com/abc", "p256dh": "key", "auth": "secret"}
	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodPut, "/api/subscriptions", sub).Code)

	e.login(t)
	assert.Equal(t, http.StatusCreated, e.do(http.MethodPut, "/api/subscriptions", sub).Code)

	w = e.do(http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/abc", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"endpoint":"https://push.example.com/abc","user_id":7}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodGet, "/api/subscriptions", nil).Code)
	assert.Equal(t, http.StatusNoContent, e.do(http.MethodDelete, "/api/subscriptions", map[string]string{"endpoint": sub["endpoint"]}).Code)
	assert.Equal(t, http.StatusNotFound, e.do(http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/abc", nil).Code)

	w = e.do(http.MethodGet, "/api/vapid_public_key", nil)
	assert.JSONEq(t, `{"public_key":"pub"}`, w.Body.String())
}

func TestAdminRoutes(t *testing.T) {
	e := newTestEnv(t)
	e.login(t)

	require.Equal(t, http.StatusOK, e.do(http.MethodGet, "/api/areas", nil).Code)
	require.Equal(t, "HIT", e.do(http.MethodGet, "/api/areas", nil).Header().Get("X-Cache"))

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/admin/areas", map[string]any{}).Code)
	w := e.do(http.MethodPost, "/api/admin/areas", map[string]any{"name": "B", "capacity": 4})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "MISS", e.do(http.MethodGet, "/api/areas", nil).Header().Get("X-Cache"), "admin changes drop the cached areas")

	layout := "tables:\n  - id: C\n    label: C桌\n    left: {count: 2, start_x: 0, start_y: 0, spacing: 20}\n    right: {count: 1, start_x: 50, start_y: 0, spacing: 20}\n"
	w = e.do(http.MethodPost, "/api/admin/layout", layout)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 3, e.backend.seatsMade)
	assert.Equal(t, 2, e.backend.count("create area"))

	assert.Equal(t, http.StatusBadRequest, e.do(http.MethodPost, "/api/admin/layout", "tables: []").Code)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"backend 409", &gateway.Error{Kind: gateway.KindClient, Status: 409, Message: "冲突"}, http.StatusConflict},
		{"network", &gateway.Error{Kind: gateway.KindNetwork, Message: "网络连接失败"}, http.StatusBadGateway},
		{"timeout", &gateway.Error{Kind: gateway.KindTimeout, Message: "请求超时"}, http.StatusGatewayTimeout},
		{"application", &gateway.Error{Kind: gateway.KindApplication, Status: 200, Message: "余额不足"}, http.StatusUnprocessableEntity},
		{"validation", booking.ErrTooManySlots, http.StatusBadRequest},
		{"other", fmt.Errorf("wrapped: %w", context.Canceled), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			fail(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), "error")
		})
	}
}
