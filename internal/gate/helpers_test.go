package gate

import (
	"sync"
	"testing"
	"time"

	"github.com/harrison/ralph/internal/budget"
	"github.com/harrison/ralph/internal/metrics"
	"github.com/harrison/ralph/internal/models"
	"github.com/harrison/ralph/internal/provider"
	"github.com/harrison/ralph/internal/provider/providertest"
	"github.com/harrison/ralph/internal/run"
)

type memAudit struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func (m *memAudit) Record(rec models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memAudit) Records() []models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AuditRecord(nil), m.records...)
}

type testRun struct {
	rc    *run.Context
	fake  *providertest.Fake
	audit *memAudit
}

func newTestRun(t *testing.T, maxPerHour int) *testRun {
	t.Helper()
	fake := providertest.New()
	audit := &memAudit{}
	rc := &run.Context{
		RunID:     "ralph-test",
		IssueID:   "1",
		StartTime: time.Now(),
		Limiter:   budget.NewRateLimiter(maxPerHour),
		Breaker:   budget.NewCircuitBreaker(5, time.Minute),
		Providers: provider.NewStaticRegistry("fake", fake),
		Metrics:   metrics.NewSink("ralph-test", "1", t.TempDir(), time.Now()),
		Audit:     audit,
	}
	return &testRun{rc: rc, fake: fake, audit: audit}
}

func spec(name string, weight float64, required bool, tier int) models.GateSpec {
	return models.GateSpec{Name: name, Weight: weight, Required: required, Tier: tier, Timeout: time.Second}
}

func scored(score float64, findings ...models.Finding) providertest.Step {
	return providertest.Step{Output: providertest.Result(score, findings...)}
}
