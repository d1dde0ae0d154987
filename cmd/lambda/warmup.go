package main

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/ZaguanLabs/lingoflow/dispatch"
	"github.com/ZaguanLabs/lingoflow/logging"
)

const (
	// WarmupSource identifies scheduled warmup events.
	WarmupSource = "warmup"

	// WarmupDelay keeps this instance busy long enough for the
	// self-invocations to land on other instances.
	WarmupDelay = 75 * time.Millisecond
)

// WarmupEvent is the payload of a scheduled warmup.
type WarmupEvent struct {
	Source      string `json:"source"`
	Concurrency int    `json:"concurrency"`
}

// WarmupResponse reports how many instances were kept warm.
type WarmupResponse struct {
	Status          string `json:"status"`
	InstancesWarmed int    `json:"instancesWarmed"`
}

// IsWarmupEvent reports whether event is a warmup ping.
func IsWarmupEvent(event json.RawMessage) (*WarmupEvent, bool) {
	var warmup WarmupEvent
	if err := json.Unmarshal(event, &warmup); err != nil {
		return nil, false
	}
	if warmup.Source != WarmupSource {
		return nil, false
	}
	if warmup.Concurrency < 0 {
		warmup.Concurrency = 0
	}
	return &warmup, true
}

// HandleWarmup answers a warmup ping and, when Concurrency is set, invokes
// this function that many more times asynchronously.
func HandleWarmup(ctx context.Context, warmup *WarmupEvent, newInvoker func(context.Context) (dispatch.Invoker, error)) (*WarmupResponse, error) {
	warmed := 1

	if warmup.Concurrency > 0 {
		logger := logging.Component("warmup")
		invoker, err := newInvoker(ctx)
		if err == nil {
			err = selfInvoke(ctx, invoker, os.Getenv("AWS_LAMBDA_FUNCTION_NAME"), warmup.Concurrency)
		}
		if err != nil {
			logger.Warn("self invocation failed", "concurrency", warmup.Concurrency, "error", err)
		} else {
			warmed += warmup.Concurrency
		}
	}

	time.Sleep(WarmupDelay)

	return &WarmupResponse{Status: "warm", InstancesWarmed: warmed}, nil
}

// selfInvoke sends count asynchronous warmup events to function. Child
// events carry no concurrency so they do not invoke again.
func selfInvoke(ctx context.Context, invoker dispatch.Invoker, function string, count int) error {
	payload, err := json.Marshal(WarmupEvent{Source: WarmupSource})
	if err != nil {
		return err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := 0; i < count; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := invoker.Invoke(ctx, &lambdasdk.InvokeInput{
				FunctionName:   aws.String(function),
				InvocationType: types.InvocationTypeEvent,
				Payload:        payload,
			})
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return firstErr
}
