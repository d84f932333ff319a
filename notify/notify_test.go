package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loyaltyledger/engine/jobproc"
	"github.com/loyaltyledger/engine/model"
)

// fakeTx records whether the dispatch transaction was committed.
type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

// fakeDB implements jobproc.DB, handing out one fakeTx per DispatchNext so
// tests can assert the pick-and-mark pair committed together.
type fakeDB struct {
	txs []*fakeTx
}

func (d *fakeDB) BeginTx(_ context.Context) (jobproc.Tx, error) {
	tx := &fakeTx{}
	d.txs = append(d.txs, tx)
	return tx, nil
}

func (d *fakeDB) lastTx() *fakeTx {
	if len(d.txs) == 0 {
		return nil
	}
	return d.txs[len(d.txs)-1]
}

// fakeOutbox implements Store over a slice, recording the mark calls the
// dispatcher makes and the transaction each arrived under.
type fakeOutbox struct {
	rows []model.JobNotification

	pickTx      any
	delivered   []string
	deliveredTx any
	failedID    string
	failedTx    any
	failedAt    time.Time
	failedError string
}

func (f *fakeOutbox) PickNextDue(_ context.Context, tx any, now time.Time) (*model.JobNotification, bool, error) {
	f.pickTx = tx
	for _, n := range f.rows {
		if n.DeliveredAt == nil && !n.AvailableAt.After(now) {
			cp := n
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (f *fakeOutbox) MarkDelivered(_ context.Context, tx any, notificationID string, now time.Time) error {
	f.delivered = append(f.delivered, notificationID)
	f.deliveredTx = tx
	for i := range f.rows {
		if f.rows[i].NotificationID == notificationID {
			f.rows[i].DeliveredAt = &now
		}
	}
	return nil
}

func (f *fakeOutbox) MarkDeliveryFailed(_ context.Context, tx any, notificationID string, availableAt time.Time, lastErr string) error {
	f.failedID = notificationID
	f.failedTx = tx
	f.failedAt = availableAt
	f.failedError = lastErr
	return nil
}

func frozenNow() time.Time { return time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC) }

func notification(id string) model.JobNotification {
	return model.JobNotification{
		NotificationID: id,
		Tenant:         "tenant-a",
		JobType:        model.JobKindReceipt,
		JobID:          "job-1",
		ReferenceID:    "rcpt-1",
		Status:         model.JobCompleted,
		Summary:        json.RawMessage(`{"points_earned": 100}`),
		AvailableAt:    frozenNow().Add(-time.Minute),
		CreatedAt:      frozenNow().Add(-time.Minute),
	}
}

func TestDispatchNextDeliversWithHeadersAndSignature(t *testing.T) {
	var gotBody []byte
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	db := &fakeDB{}
	outbox := &fakeOutbox{rows: []model.JobNotification{notification("n-1")}}
	d := New(db, outbox, frozenNow, Config{WebhookURL: srv.URL, Secret: "hush", PollInterval: time.Second})

	found, err := d.DispatchNext(context.Background())
	if err != nil {
		t.Fatalf("DispatchNext: %v", err)
	}
	if !found {
		t.Fatal("expected a due notification")
	}
	if len(outbox.delivered) != 1 || outbox.delivered[0] != "n-1" {
		t.Errorf("delivered = %v", outbox.delivered)
	}
	if tx := db.lastTx(); tx == nil || !tx.committed {
		t.Error("pick and mark must commit as one transaction")
	}
	if outbox.deliveredTx != outbox.pickTx {
		t.Error("MarkDelivered ran under a different transaction than PickNextDue")
	}

	var body map[string]any
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["tenantId"] != "tenant-a" || body["jobType"] != "receipt" || body["jobId"] != "job-1" || body["referenceId"] != "rcpt-1" {
		t.Errorf("body = %v", body)
	}
	if gotHeader.Get("x-tenant-id") != "tenant-a" || gotHeader.Get("x-job-type") != "receipt" || gotHeader.Get("x-job-id") != "job-1" {
		t.Errorf("headers = %v", gotHeader)
	}

	mac := hmac.New(sha256.New, []byte("hush"))
	mac.Write(gotBody)
	if want := hex.EncodeToString(mac.Sum(nil)); gotHeader.Get("x-signature-sha256") != want {
		t.Errorf("signature = %s, want %s", gotHeader.Get("x-signature-sha256"), want)
	}
}

func TestDispatchNextNoSignatureWithoutSecret(t *testing.T) {
	var gotHeader http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
	}))
	defer srv.Close()

	outbox := &fakeOutbox{rows: []model.JobNotification{notification("n-1")}}
	d := New(&fakeDB{}, outbox, frozenNow, Config{WebhookURL: srv.URL})
	if _, err := d.DispatchNext(context.Background()); err != nil {
		t.Fatalf("DispatchNext: %v", err)
	}
	if gotHeader.Get("x-signature-sha256") != "" {
		t.Error("signature header set without a configured secret")
	}
}

func TestDispatchNextNon2xxReschedules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	db := &fakeDB{}
	outbox := &fakeOutbox{rows: []model.JobNotification{notification("n-1")}}
	poll := 2 * time.Second
	d := New(db, outbox, frozenNow, Config{WebhookURL: srv.URL, PollInterval: poll})

	found, err := d.DispatchNext(context.Background())
	if err != nil {
		t.Fatalf("DispatchNext: %v", err)
	}
	if !found {
		t.Fatal("expected a due notification")
	}
	if len(outbox.delivered) != 0 {
		t.Error("a failed delivery must not be marked delivered")
	}
	if outbox.failedID != "n-1" {
		t.Fatalf("failed id = %q", outbox.failedID)
	}
	if want := frozenNow().Add(5 * poll); !outbox.failedAt.Equal(want) {
		t.Errorf("rescheduled at %v, want %v", outbox.failedAt, want)
	}
	if outbox.failedError == "" {
		t.Error("expected the failure reason to be recorded")
	}
	if tx := db.lastTx(); tx == nil || !tx.committed {
		t.Error("the failure reschedule must commit under the pick's transaction")
	}
	if outbox.failedTx != outbox.pickTx {
		t.Error("MarkDeliveryFailed ran under a different transaction than PickNextDue")
	}
}

func TestDispatchNextUnreachableWebhookReschedules(t *testing.T) {
	outbox := &fakeOutbox{rows: []model.JobNotification{notification("n-1")}}
	d := New(&fakeDB{}, outbox, frozenNow, Config{WebhookURL: "http://127.0.0.1:1", PollInterval: time.Second, Timeout: 100 * time.Millisecond})
	if _, err := d.DispatchNext(context.Background()); err != nil {
		t.Fatalf("DispatchNext: %v", err)
	}
	if outbox.failedID != "n-1" || outbox.failedError == "" {
		t.Errorf("expected a recorded connection failure, got %q/%q", outbox.failedID, outbox.failedError)
	}
}

func TestDispatchNextEmptyOutbox(t *testing.T) {
	db := &fakeDB{}
	d := New(db, &fakeOutbox{}, frozenNow, Config{WebhookURL: "http://127.0.0.1:1"})
	found, err := d.DispatchNext(context.Background())
	if err != nil {
		t.Fatalf("DispatchNext: %v", err)
	}
	if found {
		t.Error("found = true on an empty outbox")
	}
	if tx := db.lastTx(); tx == nil || !tx.rolledBack {
		t.Error("an empty pick must roll its transaction back")
	}
}
