package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/trainwatch-backend/internal/data/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/data/repos/sessions"
	repotest "github.com/yungbote/trainwatch-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/identity"
	"github.com/yungbote/trainwatch-backend/internal/insights"
	"github.com/yungbote/trainwatch-backend/internal/reconcile"
	"github.com/yungbote/trainwatch-backend/internal/services"
)

func newResourceRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := repotest.DB(t)
	log := repotest.Logger(t)
	traineeRepo := sessions.NewTraineeRepo(db, log)
	programRepo := sessions.NewProgramRepo(db, log)
	trainerRepo := sessions.NewTrainerRepo(db, log)

	logs := map[views.Kind]sessions.SessionLogRepo{}
	aggs := map[views.Kind]domainagg.SessionLogAggregate{}
	for _, k := range views.Kinds {
		logs[k] = sessions.NewSessionLogRepo(db, log, k)
		deps := aggregates.SessionLogAggregateDeps{
			Base:     aggregates.BaseDeps{DB: db, Log: log, Runner: aggregates.NewGormTxRunner(db), CASGuard: aggregates.NewCASGuard(db)},
			Entries:  logs[k],
			Trainees: traineeRepo,
			Programs: programRepo,
			Trainers: trainerRepo,
		}
		switch k {
		case views.KindTrainee:
			aggs[k] = aggregates.NewTraineeViewAggregate(deps)
		case views.KindProgram:
			aggs[k] = aggregates.NewProgramViewAggregate(deps)
		case views.KindTrainer:
			aggs[k] = aggregates.NewTrainerViewAggregate(deps)
		}
	}
	gen := identity.NewSeededGenerator(log, identity.NewMemoryReserver(), 3, 5)
	programs := services.NewProgramService(db, log, programRepo, trainerRepo, logs[views.KindProgram], logs[views.KindTrainer], aggs[views.KindProgram], aggs[views.KindTrainer])
	trainees := services.NewTraineeService(db, log, traineeRepo, logs[views.KindTrainee], aggs[views.KindTrainee], gen)

	r := gin.New()
	ph := NewProgramHandler(log, programs)
	th := NewTraineeHandler(log, trainees)
	r.POST("/api/programs", ph.CreateProgram)
	r.GET("/api/programs/:id", ph.GetProgram)
	r.POST("/api/programs/:id/sessions", ph.AddSession)
	r.GET("/api/trainers/:id", ph.GetTrainer)
	r.GET("/api/trainers/:id/programs", ph.ListTrainerPrograms)
	r.GET("/api/trainers/:id/sessions", ph.ListTrainerSessions)
	r.GET("/api/trainees/:id", th.GetTrainee)
	r.POST("/api/trainees/:id/sessions", th.AssignSession)
	r.PUT("/api/trainees/:id/cluster", th.AssignCluster)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestProgramRoutes(t *testing.T) {
	r := newResourceRouter(t)

	steps := []struct {
		name         string
		method, path string
		body         string
		status       int
		contains     string
	}{
		{"create", http.MethodPost, "/api/programs", `{"programId":"p-1","name":"Onboarding","trainerId":"tr-1"}`, http.StatusCreated, `"Onboarding"`},
		{"duplicate", http.MethodPost, "/api/programs", `{"programId":"p-1","name":"Again","trainerId":"tr-1"}`, http.StatusConflict, `"conflict"`},
		{"missing fields", http.MethodPost, "/api/programs", `{"programId":"p-2"}`, http.StatusBadRequest, `"invalid_request"`},
		{"add session", http.MethodPost, "/api/programs/p-1/sessions", `{"sessionId":"s-1","title":"Week 1"}`, http.StatusCreated, `"Week 1"`},
		{"add session again", http.MethodPost, "/api/programs/p-1/sessions", `{"sessionId":"s-1","title":"Week 1"}`, http.StatusCreated, `"s-1"`},
		{"session on unknown program", http.MethodPost, "/api/programs/p-9/sessions", `{"sessionId":"s-1"}`, http.StatusNotFound, `"not_found"`},
		{"get program", http.MethodGet, "/api/programs/p-1", "", http.StatusOK, `"s-1"`},
		{"unknown program", http.MethodGet, "/api/programs/p-9", "", http.StatusNotFound, `"not_found"`},
		{"trainer", http.MethodGet, "/api/trainers/tr-1", "", http.StatusOK, `"p-1"`},
		{"trainer programs", http.MethodGet, "/api/trainers/tr-1/programs", "", http.StatusOK, `"Onboarding"`},
		{"trainer sessions", http.MethodGet, "/api/trainers/tr-1/sessions", "", http.StatusOK, `"program_name":"Onboarding"`},
		{"unknown trainer sessions", http.MethodGet, "/api/trainers/nobody/sessions", "", http.StatusOK, `"sessions":[]`},
	}
	for _, s := range steps {
		rec := do(r, s.method, s.path, s.body)
		if rec.Code != s.status {
			t.Fatalf("%s: status = %d, want %d: %s", s.name, rec.Code, s.status, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), s.contains) {
			t.Fatalf("%s: body %s does not contain %s", s.name, rec.Body.String(), s.contains)
		}
	}
}

func TestTraineeRoutes(t *testing.T) {
	r := newResourceRouter(t)

	if rec := do(r, http.MethodGet, "/api/trainees/t-1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown trainee status = %d", rec.Code)
	}
	rec := do(r, http.MethodPost, "/api/trainees/t-1/sessions", `{"programId":"p-1","sessionId":"s-1","title":"Week 1"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("assign status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(r, http.MethodPut, "/api/trainees/t-1/cluster", `{"cluster":"high-replay"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("cluster status = %d: %s", rec.Code, rec.Body.String())
	}
	rec = do(r, http.MethodPut, "/api/trainees/t-1/cluster", `{"cluster":"sleepy"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad cluster status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(r, http.MethodGet, "/api/trainees/t-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	for _, want := range []string{`"high-replay"`, `"s-1"`, `"Week 1"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("trainee body %s missing %s", body, want)
		}
	}
}

type fakeInsights struct{ err error }

func (f fakeInsights) ConceptInsights(context.Context, string) ([]insights.ConceptInsight, error) {
	return []insights.ConceptInsight{{ConceptID: "c-1", ConceptName: "Loops", ReplayCount: 2, TotalEvents: 4, StruggleScore: 20}}, f.err
}

func (f fakeInsights) ClusterInsights(context.Context, string) ([]insights.ClusterInsight, error) {
	return []insights.ClusterInsight{{Cluster: views.Clusters[0], StrugglingConcepts: []string{}}}, f.err
}

func TestInsightsRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewInsightsHandler(fakeInsights{})
	r.GET("/api/programs/:id/insights/concepts", h.Concepts)
	r.GET("/api/programs/:id/insights/clusters", h.Clusters)

	rec := do(r, http.MethodGet, "/api/programs/p-1/insights/concepts", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"Loops"`) {
		t.Fatalf("concepts = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(r, http.MethodGet, "/api/programs/p-1/insights/clusters", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"programId":"p-1"`) {
		t.Fatalf("clusters = %d %s", rec.Code, rec.Body.String())
	}

	r = gin.New()
	h = NewInsightsHandler(fakeInsights{err: domainagg.NewError(domainagg.CodeRetryable, "insights", "db busy", nil)})
	r.GET("/api/programs/:id/insights/concepts", h.Concepts)
	if rec := do(r, http.MethodGet, "/api/programs/p-1/insights/concepts", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("retryable status = %d", rec.Code)
	}
}

type fakeDrift struct {
	report reconcile.DriftReport
	err    error
}

func (f fakeDrift) Check(context.Context, string, string) (reconcile.DriftReport, error) {
	return f.report, f.err
}

func (f fakeDrift) Repair(context.Context, string, string) (reconcile.DriftReport, int, error) {
	return f.report, len(f.report.MissingFromProgram) + len(f.report.MissingFromTrainer), f.err
}

func TestDriftRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewDriftHandler(fakeDrift{report: reconcile.DriftReport{TraineeID: "t-1", SessionID: "s-1", MissingFromProgram: []string{"e-1"}}})
	r.GET("/api/drift", h.Check)
	r.POST("/api/drift/repair", h.Repair)

	rec := do(r, http.MethodGet, "/api/drift?traineeId=t-1&sessionId=s-1", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"clean":false`) {
		t.Fatalf("check = %d %s", rec.Code, rec.Body.String())
	}
	rec = do(r, http.MethodPost, "/api/drift/repair", `{"traineeId":"t-1","sessionId":"s-1"}`)
	if rec.Code != http.StatusAccepted || !strings.Contains(rec.Body.String(), `"scheduled":1`) {
		t.Fatalf("repair = %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(r, http.MethodPost, "/api/drift/repair", `{"traineeId":"t-1"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("repair without session = %d", rec.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", NewHealthHandler(nil).HealthCheck)
	r.GET("/down", NewHealthHandler(map[string]Pinger{
		"db":    func(context.Context) error { return nil },
		"redis": func(context.Context) error { return context.DeadlineExceeded },
	}).HealthCheck)

	if rec := do(r, http.MethodGet, "/ok", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("ok = %d %q", rec.Code, rec.Body.String())
	}
	rec := do(r, http.MethodGet, "/down", "")
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), `"db":"ok"`) {
		t.Fatalf("down = %d %s", rec.Code, rec.Body.String())
	}
}
