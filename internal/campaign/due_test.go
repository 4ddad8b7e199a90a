package campaign

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"optinbot/internal/storage"
)

func TestRunDueRemindersProcessesOnlyDue(t *testing.T) {
	fc := &fakeClient{}
	svc, st := newTestService(t, fc, Config{})
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	early := mustCreateCampaign(t, svc, "early", now.Add(-2*time.Hour))
	late := mustCreateCampaign(t, svc, "late", now.Add(-time.Hour))
	future := mustCreateCampaign(t, svc, "future", now.Add(time.Hour))
	mustAddOptIns(t, st, early.ID, "u1")
	mustAddOptIns(t, st, late.ID, "u2")
	mustAddOptIns(t, st, future.ID, "u3")
	ctx := context.Background()

	res, err := svc.RunDueReminders(ctx, now)
	if err != nil {
		t.Fatalf("RunDueReminders: %v", err)
	}
	if res.Due != 2 || res.Processed != 2 || res.Successful != 2 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.Success() {
		t.Fatalf("expected overall success: %+v", res)
	}
	if len(fc.sentMessages()) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(fc.sentMessages()))
	}

	// The future campaign is untouched.
	got, _ := st.GetCampaign(ctx, future.ID)
	if got.Status != storage.StatusActive {
		t.Fatalf("future campaign must stay active, got %s", got.Status)
	}
	logs, _ := st.ReminderLogs(ctx, future.ID)
	if len(logs) != 0 {
		t.Fatalf("future campaign must have no log rows, got %d", len(logs))
	}

	for _, c := range []storage.Campaign{early, late} {
		got, _ := st.GetCampaign(ctx, c.ID)
		if got.Status != storage.StatusCompleted {
			t.Fatalf("campaign %d should be completed, got %s", c.ID, got.Status)
		}
	}
}

func TestRunDueRemindersZeroDue(t *testing.T) {
	svc, _ := newTestService(t, &fakeClient{}, Config{})
	res, err := svc.RunDueReminders(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("RunDueReminders: %v", err)
	}
	if res.Due != 0 || !res.Success() {
		t.Fatalf("zero due campaigns is a success: %+v", res)
	}
}

func TestRunDueRemindersFailureIsolation(t *testing.T) {
	// First campaign's only chunk fails; the second must still be sent.
	fc := &fakeClient{sendErrs: []error{errors.New("boom")}}
	svc, st := newTestService(t, fc, Config{})
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	bad := mustCreateCampaign(t, svc, "bad", now.Add(-2*time.Hour))
	good := mustCreateCampaign(t, svc, "good", now.Add(-time.Hour))
	mustAddOptIns(t, st, bad.ID, "u1")
	mustAddOptIns(t, st, good.ID, "u2")
	ctx := context.Background()

	res, err := svc.RunDueReminders(ctx, now)
	if err != nil {
		t.Fatalf("RunDueReminders: %v", err)
	}
	if res.Due != 2 || res.Processed != 2 || res.Successful != 1 || res.Failed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !res.Success() {
		t.Fatalf("one success makes the batch a success: %+v", res)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "campaign") {
		t.Fatalf("expected one campaign error, got %v", res.Errors)
	}

	gotBad, _ := st.GetCampaign(ctx, bad.ID)
	if gotBad.Status != storage.StatusActive {
		t.Fatalf("failed campaign must stay active for retry, got %s", gotBad.Status)
	}
	gotGood, _ := st.GetCampaign(ctx, good.ID)
	if gotGood.Status != storage.StatusCompleted {
		t.Fatalf("good campaign must complete, got %s", gotGood.Status)
	}
}

func TestRunDueRemindersAllFailed(t *testing.T) {
	fc := &fakeClient{sendErrs: []error{errors.New("a"), errors.New("b")}}
	svc, st := newTestService(t, fc, Config{})
	now := time.Now()

	c1 := mustCreateCampaign(t, svc, "f1", now.Add(-2*time.Hour))
	c2 := mustCreateCampaign(t, svc, "f2", now.Add(-time.Hour))
	mustAddOptIns(t, st, c1.ID, "u1")
	mustAddOptIns(t, st, c2.ID, "u2")

	res, err := svc.RunDueReminders(context.Background(), now)
	if err != nil {
		t.Fatalf("RunDueReminders: %v", err)
	}
	if res.Failed != 2 || res.Successful != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Success() {
		t.Fatalf("a batch with only failures is not a success")
	}
}
