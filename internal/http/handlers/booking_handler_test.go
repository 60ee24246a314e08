// README: Handler tests over the full gin router with an in-memory booking store.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	transport "rental/internal/http"
	"rental/internal/infra"
	"rental/internal/maps"
	"rental/internal/modules/booking"
	"rental/internal/modules/policy"
	"rental/internal/modules/pricing"
	"rental/internal/modules/vehicle"
	"rental/internal/types"
)

var testNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

// tokenVerifier maps bearer tokens to callers; "admin-*" tokens carry the admin role.
type tokenVerifier struct{}

func (tokenVerifier) VerifyIDToken(_ context.Context, token string) (*infra.FirebaseToken, error) {
	if token == "bad" {
		return nil, errors.New("invalid token")
	}
	claims := map[string]interface{}{}
	if strings.HasPrefix(token, "admin-") {
		claims["role"] = "admin"
	}
	return &infra.FirebaseToken{UID: token, Claims: claims}, nil
}

// geocoder knows a single Denver address.
type geocoder struct{}

func (geocoder) Geocode(_ context.Context, address string) (types.Point, error) {
	switch address {
	case "Denver Union Station":
		return types.Point{Lat: 39.7527, Lng: -105.0001}, nil
	case "upstream down":
		return types.Point{}, errors.New("quota exceeded")
	default:
		return types.Point{}, maps.ErrNoResult
	}
}

type refunds struct {
	calls []booking.RefundRequest
}

func (r *refunds) Refund(_ context.Context, req booking.RefundRequest) error {
	r.calls = append(r.calls, req)
	return nil
}

func buildTestRouter(t *testing.T) (*gin.Engine, *refunds) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	catalog := vehicle.NewMemoryCatalog(vehicle.Entry{
		Vehicle: vehicle.Vehicle{ID: "van-x", Name: "Van X", Capacity: 4, Location: "Denver", Position: types.Point{Lat: 39.7392, Lng: -104.9903}},
		Plan: pricing.Plan{
			RateCard: pricing.RateCard{
				PricePerDay:           10000,
				CleaningFee:           8000,
				SecurityDepositAmount: 50000,
				CancellationTiers: []policy.Tier{
					{DaysBeforePickup: 7, FeePercentage: 50},
					{DaysBeforePickup: 30, FeePercentage: 25},
				},
			},
			Options: pricing.Options{Addons: []pricing.Addon{{ID: "gps", PricePerDay: 500}}},
		},
	})
	pay := &refunds{}
	pricingSvc := pricing.NewService(catalog)
	svc := booking.NewService(booking.NewMemoryStore(), vehicle.NewService(catalog), pricingSvc,
		booking.WithClock(func() time.Time { return testNow }),
		booking.WithPayments(pay),
	)
	return transport.NewRouter(transport.RouterDeps{
		Bookings: svc,
		Pricing:  pricingSvc,
		Verifier: tokenVerifier{},
		Geocoder: geocoder{},
	}), pay
}

func doRequest(r *gin.Engine, method, path string, body any, token string, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func bookingBody(start, end string) map[string]any {
	return map[string]any{
		"vehicleId":      "van-x",
		"startDate":      start,
		"endDate":        end,
		"guestCount":     2,
		"pickupLocation": "Denver HQ",
		"returnLocation": "Denver HQ",
		"driver": map[string]any{
			"name":              "Alex Doe",
			"email":             "alex@example.com",
			"phone":             "+1 555 0100",
			"licenseNumber":     "D1234567",
			"licenseIssueDate":  "2012-04-01",
			"licenseExpiryDate": "2030-04-01",
			"dateOfBirth":       "1990-06-15",
		},
		"emergencyContact": map[string]any{"name": "Sam Doe", "phone": "+1 555 0101"},
	}
}

func createBooking(t *testing.T, r *gin.Engine, token, start, end string) string {
	t.Helper()
	w := doRequest(r, http.MethodPost, "/bookings", bookingBody(start, end), token)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode(t, w)["bookingId"].(string)
}

func TestHealth(t *testing.T) {
	r, _ := buildTestRouter(t)
	if w := doRequest(r, http.MethodGet, "/health", nil, ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCreate_Unauthenticated(t *testing.T) {
	r, _ := buildTestRouter(t)
	if w := doRequest(r, http.MethodPost, "/bookings", bookingBody("2026-03-10", "2026-03-13"), ""); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: expected 401, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/bookings", bookingBody("2026-03-10", "2026-03-13"), "bad"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected 401, got %d", w.Code)
	}
}

func TestCreate_EndToEnd(t *testing.T) {
	r, _ := buildTestRouter(t)

	w := doRequest(r, http.MethodPost, "/bookings", bookingBody("2026-03-10", "2026-03-13"), "u1")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	b := body["booking"].(map[string]any)
	if body["success"] != true || b["totalAmount"] != 404.0 || b["startDate"] != "2026-03-10" || b["userId"] != "u1" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	w = doRequest(r, http.MethodPost, "/bookings", bookingBody("2026-03-12", "2026-03-15"), "u2")
	if w.Code != http.StatusConflict {
		t.Fatalf("overlap: expected 409, got %d", w.Code)
	}
	body = decode(t, w)
	if body["success"] != false || body["kind"] != "availability_conflict" {
		t.Fatalf("unexpected conflict body %s", w.Body.String())
	}
	suggestions := body["suggestedDates"].([]any)
	if len(suggestions) == 0 || suggestions[0].(map[string]any)["availableFrom"] != "2026-03-13" {
		t.Fatalf("unexpected suggestions %v", suggestions)
	}
	conflicts := body["conflicts"].([]any)
	if c := conflicts[0].(map[string]any); c["start"] != "2026-03-10" || c["bookingId"] != nil {
		t.Fatalf("conflicts must show dates only, got %v", c)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	r, _ := buildTestRouter(t)
	req := bookingBody("2026-02-01", "2026-03-13")
	req["guestCount"] = 9
	w := doRequest(r, http.MethodPost, "/bookings", req, "u1")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	errs := decode(t, w)["errors"].([]any)
	if len(errs) != 2 {
		t.Fatalf("expected 2 field errors, got %v", errs)
	}

	if w := doRequest(r, http.MethodPost, "/bookings", "not an object", "u1"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json: expected 400, got %d", w.Code)
	}
}

func TestCreate_IdempotencyHeader(t *testing.T) {
	r, _ := buildTestRouter(t)
	body := bookingBody("2026-03-10", "2026-03-13")

	first := doRequest(r, http.MethodPost, "/bookings", body, "u1", "Idempotency-Key", "k-1")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	again := doRequest(r, http.MethodPost, "/bookings", body, "u1", "Idempotency-Key", "k-1")
	if again.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", again.Code)
	}
	if decode(t, first)["bookingId"] != decode(t, again)["bookingId"] || decode(t, again)["replayed"] != true {
		t.Fatal("replay must return the original booking")
	}
}

func TestCreate_PaidConflictIsRefunded(t *testing.T) {
	r, pay := buildTestRouter(t)
	createBooking(t, r, "u1", "2026-03-10", "2026-03-13")

	body := bookingBody("2026-03-11", "2026-03-12")
	body["paymentStatus"], body["paymentId"] = "paid", "pay_77"
	w := doRequest(r, http.MethodPost, "/bookings", body, "u2")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp["kind"] != "creation_failed_after_payment" || resp["paymentRefunded"] != true || resp["cause"] != "availability_conflict" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if len(pay.calls) != 1 || pay.calls[0].PaymentID != "pay_77" {
		t.Fatalf("expected one refund of pay_77, got %+v", pay.calls)
	}
}

func TestCancel_OwnerAndOthers(t *testing.T) {
	r, _ := buildTestRouter(t)
	id := createBooking(t, r, "u1", "2026-03-20", "2026-03-23")

	if w := doRequest(r, http.MethodPost, "/bookings/"+id+"/cancel", map[string]any{"reason": "mine now"}, "u2"); w.Code != http.StatusForbidden {
		t.Fatalf("other user: expected 403, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/bookings/"+id, nil, "u2"); w.Code != http.StatusNotFound {
		t.Fatalf("other user get: expected 404, got %d", w.Code)
	}

	// 19 days out -> 25% tier of 404.00
	w := doRequest(r, http.MethodPost, "/bookings/"+id+"/cancel", map[string]any{"reason": "plans changed"}, "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["success"] != true || body["cancellationFee"] != 101.0 || body["refundAmount"] != 303.0 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	w = doRequest(r, http.MethodPost, "/bookings/"+id+"/cancel", nil, "u1")
	if w.Code != http.StatusConflict || decode(t, w)["kind"] != "cancellation_not_allowed" {
		t.Fatalf("second cancel: got %d %s", w.Code, w.Body.String())
	}
}

func TestUpdateStatus_AdminOnly(t *testing.T) {
	r, _ := buildTestRouter(t)
	id := createBooking(t, r, "u1", "2026-03-10", "2026-03-13")

	if w := doRequest(r, http.MethodPost, "/bookings/"+id+"/status", map[string]any{"status": "confirmed"}, "u1"); w.Code != http.StatusForbidden {
		t.Fatalf("renter: expected 403, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/bookings/"+id+"/status", map[string]any{"status": "teleported"}, "admin-ops"); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: expected 400, got %d", w.Code)
	}
	w := doRequest(r, http.MethodPost, "/bookings/"+id+"/status", map[string]any{"status": "confirmed", "paymentId": "pay_1"}, "admin-ops")
	if w.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if b := decode(t, w)["booking"].(map[string]any); b["status"] != "confirmed" || b["paymentStatus"] != "paid" {
		t.Fatalf("unexpected booking %v", b)
	}
	w = doRequest(r, http.MethodPost, "/bookings/"+id+"/status", map[string]any{"status": "pending"}, "admin-ops")
	if w.Code != http.StatusConflict || decode(t, w)["kind"] != "invalid_state_transition" {
		t.Fatalf("confirmed -> pending: got %d %s", w.Code, w.Body.String())
	}

	w = doRequest(r, http.MethodGet, "/bookings/"+id+"/events", nil, "u1")
	if w.Code != http.StatusOK {
		t.Fatalf("events: expected 200, got %d", w.Code)
	}
	if events := decode(t, w)["events"].([]any); len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
}

func TestListMineAndAdminList(t *testing.T) {
	r, _ := buildTestRouter(t)
	createBooking(t, r, "u1", "2026-03-10", "2026-03-13")
	createBooking(t, r, "u2", "2026-03-20", "2026-03-22")

	w := doRequest(r, http.MethodGet, "/bookings", nil, "u1")
	if got := decode(t, w)["bookings"].([]any); len(got) != 1 {
		t.Fatalf("u1 should see 1 booking, got %d", len(got))
	}
	if w := doRequest(r, http.MethodGet, "/admin/bookings", nil, "u1"); w.Code != http.StatusForbidden {
		t.Fatalf("renter admin list: expected 403, got %d", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/admin/bookings?from=2026-03-15", nil, "admin-ops")
	if got := decode(t, w)["bookings"].([]any); len(got) != 1 {
		t.Fatalf("filtered admin list should have 1 booking, got %d", len(got))
	}
	if w := doRequest(r, http.MethodGet, "/admin/bookings?from=15-03-2026", nil, "admin-ops"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad from: expected 400, got %d", w.Code)
	}
}

func TestAvailabilityCheck(t *testing.T) {
	r, _ := buildTestRouter(t)
	createBooking(t, r, "u1", "2026-03-10", "2026-03-13")

	w := doRequest(r, http.MethodPost, "/availability/check", map[string]any{
		"vehicleId": "van-x", "startDate": "2026-03-13", "endDate": "2026-03-16",
	}, "")
	if w.Code != http.StatusOK || decode(t, w)["available"] != true {
		t.Fatalf("turnover day should be available: %d %s", w.Code, w.Body.String())
	}

	w = doRequest(r, http.MethodPost, "/availability/check", map[string]any{
		"vehicleId": "van-x", "startDate": "2026-03-12", "endDate": "2026-03-15",
	}, "")
	body := decode(t, w)
	if body["available"] != false || len(body["conflicts"].([]any)) != 1 || len(body["suggestedDates"].([]any)) == 0 {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	w = doRequest(r, http.MethodPost, "/availability/check", map[string]any{"startDate": "soon"}, "")
	if w.Code != http.StatusBadRequest || len(decode(t, w)["errors"].([]any)) != 3 {
		t.Fatalf("expected 3 field errors, got %d %s", w.Code, w.Body.String())
	}

	w = doRequest(r, http.MethodPost, "/availability/check", map[string]any{
		"vehicleId": "ghost", "startDate": "2026-03-12", "endDate": "2026-03-15",
	}, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown vehicle: expected 404, got %d", w.Code)
	}
}

func TestAvailabilitySearch(t *testing.T) {
	r, _ := buildTestRouter(t)
	createBooking(t, r, "u1", "2026-03-10", "2026-03-13")

	w := doRequest(r, http.MethodGet, "/availability/search?startDate=2026-03-11&endDate=2026-03-12&location=Denver", nil, "")
	if got := decode(t, w)["availableVehicles"].([]any); len(got) != 0 {
		t.Fatalf("van-x is booked, got %v", got)
	}
	w = doRequest(r, http.MethodGet, "/availability/search?startDate=2026-03-13&endDate=2026-03-15&location=denver", nil, "")
	if got := decode(t, w)["availableVehicles"].([]any); len(got) != 1 {
		t.Fatalf("expected van-x, got %v", got)
	}
	if w := doRequest(r, http.MethodGet, "/availability/search?startDate=2026-03-13&endDate=2026-03-15&lat=999&lng=0", nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad coordinates: expected 400, got %d", w.Code)
	}
}

func TestAvailabilitySearch_Near(t *testing.T) {
	r, _ := buildTestRouter(t)
	w := doRequest(r, http.MethodGet, "/availability/search?startDate=2026-03-13&endDate=2026-03-15&near=Denver+Union+Station", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["availableVehicles"].([]any); len(got) != 1 {
		t.Fatalf("expected van-x within the default radius, got %v", got)
	}
	w = doRequest(r, http.MethodGet, "/availability/search?startDate=2026-03-13&endDate=2026-03-15&near=Denver+Union+Station&radiusKm=0.5", nil, "")
	if got := decode(t, w)["availableVehicles"].([]any); len(got) != 0 {
		t.Fatalf("van-x is about 2km away, got %v", got)
	}
	if w := doRequest(r, http.MethodGet, "/availability/search?startDate=2026-03-13&endDate=2026-03-15&near=Atlantis", nil, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown address: expected 400, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodGet, "/availability/search?startDate=2026-03-13&endDate=2026-03-15&near=upstream+down", nil, ""); w.Code != http.StatusBadGateway {
		t.Fatalf("geocoder failure: expected 502, got %d", w.Code)
	}
}

func TestPricingQuote(t *testing.T) {
	r, _ := buildTestRouter(t)
	w := doRequest(r, http.MethodPost, "/pricing/quote", map[string]any{
		"vehicleId": "van-x", "startDate": "2026-03-10", "endDate": "2026-03-13", "addonIds": []string{"gps", "gps"},
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	q := decode(t, w)["quote"].(map[string]any)
	// (300 + 15) * 1.08 + 80
	if q["addonTotal"] != 15.0 || q["totalPrice"] != 420.2 {
		t.Fatalf("unexpected quote %v", q)
	}

	if w := doRequest(r, http.MethodPost, "/pricing/quote", map[string]any{
		"vehicleId": "van-x", "startDate": "2026-03-10", "endDate": "2026-03-13", "addonIds": []string{"jetpack"},
	}, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown addon: expected 400, got %d", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/pricing/quote", map[string]any{
		"vehicleId": "ghost", "startDate": "2026-03-10", "endDate": "2026-03-13",
	}, ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown vehicle: expected 404, got %d", w.Code)
	}
}

func TestDocuments(t *testing.T) {
	r, _ := buildTestRouter(t)
	id := createBooking(t, r, "u1", "2026-03-10", "2026-03-13")

	w := doRequest(r, http.MethodGet, "/bookings/"+id+"/receipt.pdf", nil, "u1")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("receipt: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if w := doRequest(r, http.MethodGet, "/bookings/"+id+"/receipt.pdf", nil, "u2"); w.Code != http.StatusNotFound {
		t.Fatalf("foreign receipt: expected 404, got %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/admin/bookings/export.xlsx", nil, "admin-ops")
	if w.Code != http.StatusOK || w.Body.Len() == 0 || !strings.Contains(w.Header().Get("Content-Disposition"), ".xlsx") {
		t.Fatalf("export: %d %v", w.Code, w.Header())
	}
	if w := doRequest(r, http.MethodGet, "/admin/bookings/export.xlsx", nil, "u1"); w.Code != http.StatusForbidden {
		t.Fatalf("renter export: expected 403, got %d", w.Code)
	}
}

func TestInvalidBookingID(t *testing.T) {
	r, _ := buildTestRouter(t)
	if w := doRequest(r, http.MethodGet, "/bookings/not$valid", nil, "u1"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
