package async_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/brickingsoft/seal/async"
)

func TestPromise_Succeed(t *testing.T) {
	promise := async.New[int]()
	got := 0
	promise.Future().OnComplete(func(entry int, cause error) {
		if cause != nil {
			t.Error(cause)
			return
		}
		got = entry
	})
	if !promise.Succeed(1) {
		t.Fatal("first resolution rejected")
	}
	if got != 1 {
		t.Fatal("handler not invoked synchronously, got", got)
	}
}

func TestPromise_ResolveOnce(t *testing.T) {
	promise := async.New[int]()
	if !promise.Succeed(1) {
		t.Fatal("first resolution rejected")
	}
	if promise.Succeed(2) {
		t.Fatal("second resolution accepted")
	}
	if promise.Fail(errors.New("late")) {
		t.Fatal("late failure accepted")
	}
	v, err := async.Await[int](promise.Future())
	if err != nil || v != 1 {
		t.Fatal(v, err)
	}
}

func TestFuture_LateListener(t *testing.T) {
	promise := async.New[string]()
	promise.Fail(errors.New("boom"))
	invoked := false
	promise.Future().OnComplete(func(entry string, cause error) {
		invoked = true
		if cause == nil {
			t.Error("expected cause")
		}
	})
	if !invoked {
		t.Fatal("late listener not invoked immediately")
	}
}

func TestFuture_ManyListeners(t *testing.T) {
	promise := async.New[int]()
	n := 0
	for i := 0; i < 5; i++ {
		promise.Future().OnComplete(func(entry int, cause error) {
			n++
		})
	}
	promise.Succeed(7)
	if n != 5 {
		t.Fatal("listeners invoked:", n)
	}
}

func TestAwait_AcrossGoroutines(t *testing.T) {
	promise := async.New[int]()
	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := async.Await[int](promise.Future())
		if err != nil || v != 42 {
			t.Error(v, err)
		}
	}()
	promise.Succeed(42)
	wg.Wait()
}

func TestImmediately(t *testing.T) {
	v, err := async.Await[int](async.SucceedImmediately[int](3))
	if err != nil || v != 3 {
		t.Fatal(v, err)
	}
	_, err = async.Await[async.Void](async.FailedImmediately[async.Void](errors.New("nope")))
	if err == nil {
		t.Fatal("expected error")
	}
	if !async.SucceedImmediately[int](1).Completed() {
		t.Fatal("immediate future not completed")
	}
}
