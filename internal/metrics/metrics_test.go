package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shyifrah/kas/internal/message"
	"github.com/shyifrah/kas/internal/queue"
	pebblestore "github.com/shyifrah/kas/internal/storage/pebble"
)

var (
	_ queue.Observer          = (*Metrics)(nil)
	_ pebblestore.MetricsHook = (*Metrics)(nil)
)

func TestQueueObserverCounts(t *testing.T) {
	m := New()
	reg := queue.NewRegistry(queue.Options{Observer: m})
	if _, err := reg.Define(queue.Definition{Name: "Q", Threshold: 1}); err != nil {
		t.Fatalf("define: %v", err)
	}
	_ = reg.Put("Q", message.NewText("x"))

	if got := testutil.ToFloat64(m.messagesPut.WithLabelValues("Q")); got != 1 {
		t.Fatalf("messages_put %v", got)
	}
	if got := testutil.ToFloat64(m.suspended.WithLabelValues("Q")); got != 1 {
		t.Fatalf("suspended gauge %v", got)
	}
	if got := testutil.ToFloat64(m.queuesDefined); got != 1 {
		t.Fatalf("queues_defined %v", got)
	}
	if err := reg.Delete("Q", true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := testutil.ToFloat64(m.droppedOnDel); got != 1 {
		t.Fatalf("dropped %v", got)
	}
}

func TestHandlerExposesSeries(t *testing.T) {
	m := New()
	m.SessionOpened()
	m.RequestHandled("put", "OK", time.Millisecond)
	m.ObserveBatchCommit(time.Millisecond, 1, 128)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{"kas_sessions_active 1", `kas_requests_total{op="put",status="OK"} 1`, "kas_store_written_bytes_total 128"} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in exposition", want)
		}
	}
}
