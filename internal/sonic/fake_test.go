package sonic

import (
	"errors"
	"sync"
	"sync/atomic"

	gosonic "github.com/expectedsh/go-sonic/sonic"
)

type fakeConn struct {
	quit atomic.Bool
}

func (f *fakeConn) Ping() error { return nil }
func (f *fakeConn) Quit() error {
	f.quit.Store(true)
	return nil
}

type fakeIngester struct {
	fakeConn
	mu     sync.Mutex
	pushed map[string]string
	err    error
}

func (f *fakeIngester) Push(_, _, object, text string, _ gosonic.Lang) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushed == nil {
		f.pushed = map[string]string{}
	}
	f.pushed[object] = text
	return nil
}

type fakeSearcher struct {
	fakeConn
	results  []string
	err      error
	gotLimit int
}

func (f *fakeSearcher) Query(_, _, _ string, limit, _ int, _ gosonic.Lang) ([]string, error) {
	f.gotLimit = limit
	return f.results, f.err
}

func (f *fakeSearcher) Suggest(_, _, word string, _ int) ([]string, error) {
	return []string{word + "one", "", word + "two"}, f.err
}

type fakeController struct {
	fakeConn
	triggered []gosonic.Action
}

func (f *fakeController) Trigger(action gosonic.Action) error {
	f.triggered = append(f.triggered, action)
	return nil
}

var errDial = errors.New("connection refused")
