package lingoflow

import (
	"context"
	"strings"
	"sync"
	"time"
)

// scriptedProvider answers from a dictionary and can be told to fail.
type scriptedProvider struct {
	mu           sync.Mutex
	translations map[string]string
	// failures pops one error per call for a text before answering.
	failures map[string][]error
	// always fails every call for a text.
	always  map[string]error
	calls   []TranslateRequest
	onCall  func(req TranslateRequest)
	blockOn string
}

func newScriptedProvider(translations map[string]string) *scriptedProvider {
	return &scriptedProvider{
		translations: translations,
		failures:     make(map[string][]error),
		always:       make(map[string]error),
	}
}

func (p *scriptedProvider) Translate(ctx context.Context, req TranslateRequest) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	hook := p.onCall
	var scripted error
	if queue := p.failures[req.Text]; len(queue) > 0 {
		scripted = queue[0]
		p.failures[req.Text] = queue[1:]
	} else if err, ok := p.always[req.Text]; ok {
		scripted = err
	}
	block := p.blockOn != "" && p.blockOn == req.Text
	p.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if scripted != nil {
		return "", scripted
	}
	if out, ok := p.translations[req.Text]; ok {
		return out, nil
	}
	return strings.ToUpper(req.Text), nil
}

func (p *scriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *scriptedProvider) Calls() []TranslateRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranslateRequest, len(p.calls))
	copy(out, p.calls)
	return out
}

// recordingObserver counts notifications.
type recordingObserver struct {
	mu          sync.Mutex
	attempts    int
	rateLimited int
	units       map[UnitOutcome]int
	started     []string
	jobs        []JobState
	saves       int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{units: make(map[UnitOutcome]int)}
}

func (o *recordingObserver) JobStarted(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, kind)
}

func (o *recordingObserver) AttemptFinished(error, time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts++
}

func (o *recordingObserver) RateLimited(time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rateLimited++
}

func (o *recordingObserver) UnitFinished(outcome UnitOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.units[outcome]++
}

func (o *recordingObserver) JobFinished(state JobState, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.jobs = append(o.jobs, state)
}

func (o *recordingObserver) CheckpointSaved(error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.saves++
}
