package execx

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Response is a canned reply returned by Fake.
type Response struct {
	Output string
	Code   int
}

// Fake is an in-memory Commander. Responses are keyed by command line prefix;
// the longest matching prefix wins. When a key holds several responses they
// are returned in order and the last one repeats.
type Fake struct {
	mu        sync.Mutex
	responses map[string][]Response
	paths     map[string]bool
	calls     []string
}

func NewFake() *Fake {
	return &Fake{
		responses: map[string][]Response{},
		paths:     map[string]bool{},
	}
}

// On registers responses for command lines starting with prefix.
func (f *Fake) On(prefix string, responses ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = append(f.responses[prefix], responses...)
	return f
}

// Installed marks binaries as present for LookPath.
func (f *Fake) Installed(names ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range names {
		f.paths[name] = true
	}
	return f
}

// Calls returns every command line seen so far, including LookPath probes as
// "lookpath <name>".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) Run(_ context.Context, name string, args ...string) Result {
	_, res := f.reply(Join(name, args...))
	return res
}

func (f *Fake) Capture(_ context.Context, name string, args ...string) (string, Result) {
	return f.reply(Join(name, args...))
}

func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "lookpath "+name)
	if f.paths[name] {
		return "/usr/bin/" + name, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func (f *Fake) reply(line string) (string, Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, line)

	var key string
	for prefix := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(key) {
			key = prefix
		}
	}
	queue, ok := f.responses[key]
	if !ok || len(queue) == 0 {
		return "", Result{}
	}

	resp := queue[0]
	if len(queue) > 1 {
		f.responses[key] = queue[1:]
	}
	if resp.Code != 0 {
		return resp.Output, Result{Code: resp.Code, Err: fmt.Errorf("exit status %d", resp.Code)}
	}
	return resp.Output, Result{}
}
