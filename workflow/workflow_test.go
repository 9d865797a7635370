package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/rms_backend/location"
	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/notify"
	"github.com/mmdatafocus/rms_backend/store/memstore"
	"github.com/mmdatafocus/rms_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMailer struct {
	mu   sync.Mutex
	err  error
	sent []notify.Mail
}

func (m *stubMailer) Send(ctx context.Context, mail notify.Mail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, mail)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func queue(t *testing.T, ms *memstore.Store, to string) {
	t.Helper()
	require.NoError(t, notify.OutboxMailer{St: ms}.Send(context.Background(), notify.Mail{PeId: 7, To: to, Subject: "s", Body: "b"}))
}

func outboxRow(t *testing.T, ms *memstore.Store) models.EmailOutbox {
	t.Helper()
	rows := ms.ListEmailOutbox()
	require.Len(t, rows, 1)
	return *rows[0]
}

func TestDispatchOnceDelivers(t *testing.T) {
	ms := memstore.New()
	queue(t, ms, "a@example.org")
	mailer := &stubMailer{}
	d := NewOutboxDispatcher(ms, mailer, quietLogger())

	assert.Equal(t, 1, d.DispatchOnce(context.Background()))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "a@example.org", mailer.sent[0].To)

	row := outboxRow(t, ms)
	assert.Equal(t, models.OutboxStatusSent, row.Status)
	assert.Equal(t, 1, row.Attempts)
	assert.NotNil(t, row.SentAt)

	assert.Equal(t, 0, d.DispatchOnce(context.Background()))
}

func TestDispatchFailureBacksOffThenDies(t *testing.T) {
	ms := memstore.New()
	queue(t, ms, "b@example.org")
	mailer := &stubMailer{err: errors.New("relay down")}
	d := NewOutboxDispatcher(ms, mailer, quietLogger())
	d.MaxAttempts = 2
	d.InitialBackoff = 0

	assert.Equal(t, 0, d.DispatchOnce(context.Background()))
	row := outboxRow(t, ms)
	assert.Equal(t, models.OutboxStatusFailed, row.Status)
	assert.Equal(t, "relay down", utils.DereferencePtr(row.LastError))
	require.NotNil(t, row.NextAttemptAt)
	assert.Nil(t, row.LockedBy)

	d.DispatchOnce(context.Background())
	row = outboxRow(t, ms)
	assert.Equal(t, models.OutboxStatusDead, row.Status)
	assert.Equal(t, 2, row.Attempts)
	assert.Nil(t, row.NextAttemptAt)

	mailer.err = nil
	assert.Equal(t, 0, d.DispatchOnce(context.Background()))

	n, err := d.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, d.DispatchOnce(context.Background()))
	assert.Equal(t, models.OutboxStatusSent, outboxRow(t, ms).Status)
}

func TestFailedMailWaitsForBackoff(t *testing.T) {
	ms := memstore.New()
	queue(t, ms, "c@example.org")
	mailer := &stubMailer{err: errors.New("relay down")}
	d := NewOutboxDispatcher(ms, mailer, quietLogger())

	d.DispatchOnce(context.Background())
	mailer.err = nil
	assert.Equal(t, 0, d.DispatchOnce(context.Background()))
	assert.Empty(t, mailer.sent)
}

func TestStaleClaimIsReclaimed(t *testing.T) {
	ms := memstore.New()
	queue(t, ms, "d@example.org")
	now := time.Now().UTC()
	claimed, err := ms.ClaimEmails(context.Background(), now, now.Add(-time.Minute), 10, 5, "crashed")
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	mailer := &stubMailer{}
	d := NewOutboxDispatcher(ms, mailer, quietLogger())
	d.LockTimeout = 0
	assert.Equal(t, 1, d.DispatchOnce(context.Background()))
	assert.Equal(t, 2, outboxRow(t, ms).Attempts)
}

func TestBackoff(t *testing.T) {
	d := NewOutboxDispatcher(nil, nil, nil)
	d.InitialBackoff = 30 * time.Second
	d.MaxBackoff = 5 * time.Minute
	assert.Equal(t, 30*time.Second, d.Backoff(1))
	assert.Equal(t, time.Minute, d.Backoff(2))
	assert.Equal(t, 4*time.Minute, d.Backoff(4))
	assert.Equal(t, 5*time.Minute, d.Backoff(5))
	assert.Equal(t, 5*time.Minute, d.Backoff(30))
}

// memDeduper mirrors RedisDeduper without a server.
type memDeduper struct {
	mu    sync.Mutex
	state map[string]string
}

func (d *memDeduper) Begin(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch d.state[key] {
	case jobSucceeded:
		return true, nil
	case jobStarted:
		return false, ErrJobInProgress
	}
	d.state[key] = jobStarted
	return false, nil
}

func (d *memDeduper) Succeeded(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state[key] = jobSucceeded
	return nil
}

func (d *memDeduper) Failed(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.state, key)
	return nil
}

type countingScanner struct {
	mu    sync.Mutex
	calls int
}

func (s *countingScanner) ScanAll(ctx context.Context) (int, int, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return 3, 0, nil
}

func TestDuplicateDeliveryRunsOnce(t *testing.T) {
	scanner := &countingScanner{}
	r := &JobRunner{Stock: scanner, Deduper: &memDeduper{state: map[string]string{}}, Logger: quietLogger()}

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.RunOnce(context.Background(), "msg-1", Job{Kind: JobScanStockAlerts})
		}()
	}
	wg.Wait()
	require.NoError(t, r.RunOnce(context.Background(), "msg-1", Job{Kind: JobScanStockAlerts}))
	assert.Equal(t, 1, scanner.calls)

	require.NoError(t, r.RunOnce(context.Background(), "msg-2", Job{Kind: JobScanStockAlerts}))
	assert.Equal(t, 2, scanner.calls)
}

func push(t *testing.T, h gin.HandlerFunc, id string, data []byte) int {
	t.Helper()
	var env PubSubPushEnvelope
	env.Message.ID = id
	env.Message.Data = data
	body, err := json.Marshal(env)
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/pubsub/jobs", h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/pubsub/jobs", bytes.NewReader(body))
	router.ServeHTTP(w, req)
	return w.Code
}

func TestPushHandlerExportsAdminAreas(t *testing.T) {
	ms := memstore.New()
	require.NoError(t, ms.CreateLocation(context.Background(), &models.Location{
		ID: 1, Name: "Panama", Level: utils.NewString("L0"),
		Wkt: utils.NewString("POLYGON((-83 7, -77 7, -77 10, -83 10, -83 7))"),
	}))
	tree := location.New(ms, quietLogger())
	admin := location.NewAdminAreas(tree, quietLogger())
	dir := t.TempDir()
	admin.Sink = location.FileSink{Dir: dir}
	r := &JobRunner{Tree: tree, Admin: admin, Logger: quietLogger()}

	data, _ := json.Marshal(Job{Kind: JobExportAdminAreas, Level: "L0"})
	assert.Equal(t, http.StatusNoContent, push(t, r.PushHandler(), "m1", data))
	_, err := os.Stat(filepath.Join(dir, "L0_all.geojson"))
	assert.NoError(t, err)
}

func TestPushHandlerDropsMalformedAndRetriesFailures(t *testing.T) {
	r := &JobRunner{Logger: quietLogger()}
	h := r.PushHandler()

	assert.Equal(t, http.StatusNoContent, push(t, h, "m1", []byte("not json")))
	bad, _ := json.Marshal(Job{Kind: "reboot"})
	assert.Equal(t, http.StatusNoContent, push(t, h, "m2", bad))

	scan, _ := json.Marshal(Job{Kind: JobScanStockAlerts})
	assert.Equal(t, http.StatusInternalServerError, push(t, h, "m3", scan))
}
