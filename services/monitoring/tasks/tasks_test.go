package tasks

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/MeridianTrust/MeridianTrust-Backend/services/monitoring/logging"
	"github.com/sirupsen/logrus"
)

func testScheduler() *TaskScheduler {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewTaskScheduler(&logging.Logger{Logger: log})
}

func TestAddTaskRejectsDuplicateIDs(t *testing.T) {
	ts := testScheduler()
	defer ts.StopTasks()

	noop := func(context.Context) error { return nil }
	if _, err := ts.AddTask("sweep", "Retention sweep", noop, time.Hour); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := ts.AddTask("sweep", "Retention sweep", noop, time.Hour); err == nil {
		t.Fatal("expected duplicate task ID to be rejected")
	}
}

func TestRunTaskExecutesFunction(t *testing.T) {
	ts := testScheduler()
	defer ts.StopTasks()

	ran := make(chan struct{})
	_, err := ts.AddTask("refresh", "Stats refresh", func(context.Context) error {
		close(ran)
		return nil
	}, 0)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	if err := ts.RunTask("refresh"); err != nil {
		t.Fatalf("run task: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestRunTaskReportsErrors(t *testing.T) {
	ts := testScheduler()
	defer ts.StopTasks()

	boom := errors.New("sweep failed")
	task, err := ts.AddTask("sweep", "Retention sweep", func(context.Context) error {
		return boom
	}, 0)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	if err := ts.RunTask("sweep"); err != nil {
		t.Fatalf("run task: %v", err)
	}

	select {
	case got := <-task.ErrorChan:
		if !errors.Is(got, boom) {
			t.Fatalf("unexpected error %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected the failure on the error channel")
	}
}

func TestScheduleTaskFiresAfterDelay(t *testing.T) {
	ts := testScheduler()
	defer ts.StopTasks()

	ran := make(chan struct{})
	_, err := ts.AddTask("refresh", "Stats refresh", func(context.Context) error {
		close(ran)
		return nil
	}, 0)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	if err := ts.ScheduleTask("refresh", 10*time.Millisecond); err != nil {
		t.Fatalf("schedule task: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduled task did not fire")
	}
}

func TestStopTasksCancelsPendingRuns(t *testing.T) {
	ts := testScheduler()

	ran := make(chan struct{}, 1)
	_, err := ts.AddTask("refresh", "Stats refresh", func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, 0)
	if err != nil {
		t.Fatalf("add task: %v", err)
	}

	if err := ts.ScheduleTask("refresh", time.Second); err != nil {
		t.Fatalf("schedule task: %v", err)
	}
	ts.StopTasks()

	select {
	case <-ran:
		t.Fatal("cancelled task must not run")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRemoveAndGetTask(t *testing.T) {
	ts := testScheduler()
	defer ts.StopTasks()

	noop := func(context.Context) error { return nil }
	if _, err := ts.AddTask("sweep", "Retention sweep", noop, time.Hour); err != nil {
		t.Fatalf("add task: %v", err)
	}

	task, err := ts.GetTask("sweep")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if !task.IsRecurring {
		t.Fatal("hourly task should be recurring")
	}

	if err := ts.RemoveTask("sweep"); err != nil {
		t.Fatalf("remove task: %v", err)
	}
	if _, err := ts.GetTask("sweep"); err == nil {
		t.Fatal("expected removed task to be gone")
	}
	if err := ts.RemoveTask("sweep"); err == nil {
		t.Fatal("expected removing a missing task to fail")
	}
}
