// README: Benchmark cases for the booking API; includes HTTP, DB, Redis, double-booking and throughput checks.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client

	// rental windows used by this run, far enough out to avoid earlier runs
	window     [2]string
	raceWindow [2]string
	bookingID  string
	idemKey    string
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name  string
	Focus string
	Run   func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	offset := 200 + rand.Intn(1500)
	start := time.Now().UTC().AddDate(0, 0, offset)
	return &Runner{
		cfg:        cfg,
		httpc:      &http.Client{Timeout: 10 * time.Second},
		window:     [2]string{day(start), day(start.AddDate(0, 0, 3))},
		raceWindow: [2]string{day(start.AddDate(0, 0, 10)), day(start.AddDate(0, 0, 14))},
		idemKey:    "bench-" + uuid.NewString(),
	}
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	base := r.cfg.BaseURL
	return []TestCase{
		{
			Name:  "Env: Postgres connect",
			Focus: "database reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Env: Redis connect",
			Focus: "vehicle cache reachable",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: apply (optional)",
			Focus: "apply migration SQL",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				sql, err := os.ReadFile(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, s := range splitSQL(string(sql)) {
					if _, err := r.db.Exec(ctx, s); err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Migration: tables exist",
			Focus: "tables from migrations/0001_init.sql exist",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				tables, err := extractTables(r.cfg.MigrationPath)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				for _, t := range tables {
					var exists bool
					err := r.db.QueryRow(ctx,
						"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
						t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		httpCase("API: health", http.MethodGet, base+"/health", nil, "", []int{200}),

		// Availability and pricing are public
		httpCase("Availability: check (valid)", http.MethodPost, base+"/availability/check", map[string]any{
			"vehicleId": r.cfg.VehicleID,
			"startDate": r.window[0],
			"endDate":   r.window[1],
		}, "", []int{200}),
		httpCase("Availability: check (missing fields -> 400)", http.MethodPost, base+"/availability/check", map[string]any{}, "", []int{400}),
		httpCase("Availability: check (unknown vehicle -> 404)", http.MethodPost, base+"/availability/check", map[string]any{
			"vehicleId": "no-such-vehicle",
			"startDate": r.window[0],
			"endDate":   r.window[1],
		}, "", []int{404}),
		httpCase("Availability: search", http.MethodGet,
			base+"/availability/search?startDate="+r.window[0]+"&endDate="+r.window[1], nil, "", []int{200}),
		httpCase("Pricing: quote (valid)", http.MethodPost, base+"/pricing/quote", map[string]any{
			"vehicleId": r.cfg.VehicleID,
			"startDate": r.window[0],
			"endDate":   r.window[1],
		}, "", []int{200}),
		httpCase("Pricing: quote (unknown addon -> 400)", http.MethodPost, base+"/pricing/quote", map[string]any{
			"vehicleId": r.cfg.VehicleID,
			"startDate": r.window[0],
			"endDate":   r.window[1],
			"addonIds":  []string{"no-such-addon"},
		}, "", []int{400}),
		httpCase("Pricing: quote (end before start -> 400)", http.MethodPost, base+"/pricing/quote", map[string]any{
			"vehicleId": r.cfg.VehicleID,
			"startDate": r.window[1],
			"endDate":   r.window[0],
		}, "", []int{400}),

		// Booking lifecycle
		httpCase("Booking: create without token -> 401", http.MethodPost, base+"/bookings",
			bookingBody(r.cfg.VehicleID, r.window[0], r.window[1]), "", []int{401}),
		{
			Name:  "Booking: create (valid)",
			Focus: "201 with a pending booking",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.cfg.Token == "" {
					return Result{Status: "SKIP", Note: "RENTAL_BENCH_TOKEN not set"}
				}
				status, body, latency, err := r.do(ctx, http.MethodPost, base+"/bookings",
					bookingBody(r.cfg.VehicleID, r.window[0], r.window[1]), r.cfg.Token, "Idempotency-Key", r.idemKey)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != http.StatusCreated {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				var out struct {
					BookingID string `json:"bookingId"`
				}
				_ = json.Unmarshal(body, &out)
				r.bookingID = out.BookingID
				return Result{Status: "PASS", Latency: latency, Note: "booking=" + out.BookingID}
			},
		},
		{
			Name:  "Booking: replay idempotency key",
			Focus: "200 with the same booking",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.bookingID == "" {
					return Result{Status: "SKIP", Note: "no booking created"}
				}
				status, body, latency, err := r.do(ctx, http.MethodPost, base+"/bookings",
					bookingBody(r.cfg.VehicleID, r.window[0], r.window[1]), r.cfg.Token, "Idempotency-Key", r.idemKey)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				var out struct {
					BookingID string `json:"bookingId"`
				}
				_ = json.Unmarshal(body, &out)
				if status != http.StatusOK || out.BookingID != r.bookingID {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d booking=%s", status, out.BookingID)}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name:  "Booking: overlapping create -> 409",
			Focus: "conflict with suggested dates",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.bookingID == "" {
					return Result{Status: "SKIP", Note: "no booking created"}
				}
				status, body, latency, err := r.do(ctx, http.MethodPost, base+"/bookings",
					bookingBody(r.cfg.VehicleID, r.window[0], r.window[1]), r.cfg.Token)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != http.StatusConflict || !bytes.Contains(body, []byte("suggestedDates")) {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name:  "Booking: status update needs admin",
			Focus: "403 for renters",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.bookingID == "" {
					return Result{Status: "SKIP", Note: "no booking created"}
				}
				status, _, latency, err := r.do(ctx, http.MethodPost, base+"/bookings/"+r.bookingID+"/status",
					map[string]any{"status": "confirmed"}, r.cfg.Token)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if status != http.StatusForbidden {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		{
			Name:  "Booking: cancel",
			Focus: "fee + refund equals total",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.bookingID == "" {
					return Result{Status: "SKIP", Note: "no booking created"}
				}
				status, body, latency, err := r.do(ctx, http.MethodPost, base+"/bookings/"+r.bookingID+"/cancel",
					map[string]any{"reason": "bench"}, r.cfg.Token)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				var out struct {
					Fee     float64 `json:"cancellationFee"`
					Refund  float64 `json:"refundAmount"`
					Booking struct {
						TotalAmount float64 `json:"totalAmount"`
					} `json:"booking"`
				}
				_ = json.Unmarshal(body, &out)
				if status != http.StatusOK || fmt.Sprintf("%.2f", out.Fee+out.Refund) != fmt.Sprintf("%.2f", out.Booking.TotalAmount) {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d fee=%.2f refund=%.2f", status, out.Fee, out.Refund)}
				}
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("fee=%.2f refund=%.2f", out.Fee, out.Refund)}
			},
		},
		{
			Name:  "Booking: events recorded",
			Focus: "create + cancel in the audit trail",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.bookingID == "" {
					return Result{Status: "SKIP", Note: "no booking created"}
				}
				status, body, latency, err := r.do(ctx, http.MethodGet, base+"/bookings/"+r.bookingID+"/events", nil, r.cfg.Token)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				var out struct {
					Events []json.RawMessage `json:"events"`
				}
				_ = json.Unmarshal(body, &out)
				if status != http.StatusOK || len(out.Events) != 2 {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d events=%d", status, len(out.Events))}
				}
				return Result{Status: "PASS", Latency: latency}
			},
		},
		httpCase("Admin: list requires admin", http.MethodGet, base+"/admin/bookings", nil, r.cfg.Token, []int{401, 403}),
		{
			Name:  "Admin: export workbook",
			Focus: "xlsx download",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.cfg.AdminToken == "" {
					return Result{Status: "SKIP", Note: "RENTAL_BENCH_ADMIN_TOKEN not set"}
				}
				status, body, latency, err := r.do(ctx, http.MethodGet, base+"/admin/bookings/export.xlsx?vehicleId="+r.cfg.VehicleID, nil, r.cfg.AdminToken)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				// xlsx files are zip archives
				if status != http.StatusOK || !bytes.HasPrefix(body, []byte("PK")) {
					return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
				}
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("bytes=%d", len(body))}
			},
		},

		// Concurrency
		{
			Name:  "Concurrency: overlapping creates",
			Focus: "exactly one of N racing requests wins",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.concurrentCreate(ctx, base+"/bookings")
			},
		},
		{
			Name:  "Consistency: no overlapping active bookings",
			Focus: "database holds no double booking",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				var n int
				err := r.db.QueryRow(ctx, `
SELECT count(*)
FROM bookings a
JOIN bookings b ON a.vehicle_id = b.vehicle_id AND a.id < b.id
WHERE a.status <> 'cancelled' AND b.status <> 'cancelled'
  AND a.start_date < b.end_date AND b.start_date < a.end_date`).Scan(&n)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if n > 0 {
					return Result{Status: "FAIL", Note: fmt.Sprintf("overlapping pairs=%d", n)}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name:  "Consistency: cancelled rows split the total",
			Focus: "fee + refund = total for every cancelled booking",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "SKIP", Note: "db not configured"}
				}
				var n int
				err := r.db.QueryRow(ctx, `
SELECT count(*) FROM bookings
WHERE status = 'cancelled'
  AND coalesce(cancellation_fee, 0) + coalesce(refund_amount, 0) <> total_amount`).Scan(&n)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				if n > 0 {
					return Result{Status: "FAIL", Note: fmt.Sprintf("bad rows=%d", n)}
				}
				return Result{Status: "PASS"}
			},
		},
		manualCase("Error: DB down -> 500", "stop Postgres and observe responses"),
		manualCase("Error: payment refund after failed paid create", "point RENTAL_PAYMENTS_URL at a stub processor"),

		// Performance
		{
			Name:  "Perf: quote throughput",
			Focus: "pure pricing path",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.perfLoad(ctx, base+"/pricing/quote", map[string]any{
					"vehicleId": r.cfg.VehicleID,
					"startDate": r.window[0],
					"endDate":   r.window[1],
				})
			},
		},
		{
			Name:  "Perf: availability check throughput",
			Focus: "read path against the store",
			Run: func(ctx context.Context, r *Runner) Result {
				return r.perfLoad(ctx, base+"/availability/check", map[string]any{
					"vehicleId": r.cfg.VehicleID,
					"startDate": r.window[0],
					"endDate":   r.window[1],
				})
			},
		},
	}
}

func bookingBody(vehicleID, start, end string) map[string]any {
	return map[string]any{
		"vehicleId":      vehicleID,
		"startDate":      start,
		"endDate":        end,
		"guestCount":     2,
		"pickupLocation": "Bench depot",
		"returnLocation": "Bench depot",
		"driver": map[string]any{
			"name":              "Bench Driver",
			"email":             "bench@example.com",
			"phone":             "+1 555 0100",
			"licenseNumber":     "BENCH-0001",
			"licenseIssueDate":  "2010-01-01",
			"licenseExpiryDate": day(time.Now().UTC().AddDate(10, 0, 0)),
			"dateOfBirth":       "1985-05-05",
		},
		"emergencyContact": map[string]any{"name": "Bench Contact", "phone": "+1 555 0101"},
	}
}

// do sends one JSON request; extra is a flat list of header name/value pairs.
func (r *Runner) do(ctx context.Context, method, url string, body any, token string, extra ...string) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(extra); i += 2 {
		req.Header.Set(extra[i], extra[i+1])
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	return resp.StatusCode, out, time.Since(start), err
}

func httpCase(name, method, url string, body any, token string, okStatuses []int) TestCase {
	return TestCase{
		Name:  name,
		Focus: "HTTP API",
		Run: func(ctx context.Context, r *Runner) Result {
			status, _, latency, err := r.do(ctx, method, url, body, token)
			if err != nil {
				return Result{Status: "FAIL", Note: err.Error()}
			}
			if contains(okStatuses, status) {
				return Result{Status: "PASS", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
			}
			return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", status)}
		},
	}
}

func manualCase(name, note string) TestCase {
	return TestCase{
		Name:  name,
		Focus: "Manual",
		Run: func(ctx context.Context, r *Runner) Result {
			return Result{Status: "SKIP", Note: note}
		},
	}
}

func (r *Runner) concurrentCreate(ctx context.Context, url string) Result {
	if r.cfg.Token == "" {
		return Result{Status: "SKIP", Note: "RENTAL_BENCH_TOKEN not set"}
	}
	body := bookingBody(r.cfg.VehicleID, r.raceWindow[0], r.raceWindow[1])

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		created  []string
		conflict int
		other    []int
	)
	start := make(chan struct{})
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			status, raw, _, err := r.do(ctx, http.MethodPost, url, body, r.cfg.Token, "Idempotency-Key", "bench-"+uuid.NewString())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				other = append(other, 0)
			case status == http.StatusCreated:
				var out struct {
					BookingID string `json:"bookingId"`
				}
				_ = json.Unmarshal(raw, &out)
				created = append(created, out.BookingID)
			case status == http.StatusConflict:
				conflict++
			default:
				other = append(other, status)
			}
		}()
	}
	close(start)
	wg.Wait()

	// release the window for the next run
	for _, id := range created {
		_, _, _, _ = r.do(ctx, http.MethodPost, url+"/"+id+"/cancel", map[string]any{"reason": "bench cleanup"}, r.cfg.Token)
	}

	note := fmt.Sprintf("created=%d conflicts=%d other=%v", len(created), conflict, other)
	if len(created) != 1 || len(other) > 0 {
		return Result{Status: "FAIL", Note: note}
	}
	return Result{Status: "PASS", Note: note}
}

func (r *Runner) perfLoad(ctx context.Context, url string, payload any) Result {
	b, _ := json.Marshal(payload)
	end := time.Now().Add(r.cfg.Duration)
	var count int64
	var errCount int64
	var mu sync.Mutex
	wg := sync.WaitGroup{}

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(b)))
				req.Header.Set("Content-Type", "application/json")
				resp, err := r.httpc.Do(req)
				if err != nil {
					mu.Lock()
					errCount++
					mu.Unlock()
					continue
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				mu.Lock()
				if resp.StatusCode >= 500 {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	cleaned := strings.Join(filtered, "\n")
	parts := strings.Split(cleaned, ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
