// Package main is the Lambda entry point for batch translation. The same
// function fans a multi-language request out to one invocation per language
// and runs each single-language invocation it receives.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	lambdasdk "github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/ZaguanLabs/lingoflow/config"
	"github.com/ZaguanLabs/lingoflow/dispatch"
	"github.com/ZaguanLabs/lingoflow/logging"
)

func main() {
	lambda.Start(handleRequest)
}

var (
	workerMu sync.Mutex
	shared   *worker
)

func handleRequest(ctx context.Context, event json.RawMessage) (any, error) {
	// Warmup pings carry no work and must not build the worker
	if warmup, ok := IsWarmupEvent(event); ok {
		return HandleWarmup(ctx, warmup, newLambdaClient)
	}

	var req dispatch.Request
	if err := json.Unmarshal(event, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}

	w, err := loadWorker(ctx)
	if err != nil {
		return nil, err
	}
	return w.Handle(ctx, req)
}

// loadWorker builds the worker on the first request and reuses it while
// the execution environment stays warm. A failed build is retried on the
// next request.
func loadWorker(ctx context.Context) (*worker, error) {
	workerMu.Lock()
	defer workerMu.Unlock()
	if shared != nil {
		return shared, nil
	}

	cfg, err := config.Load(os.Getenv("LINGOFLOW_CONFIG"))
	if err != nil {
		return nil, err
	}
	logging.Setup(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level, Output: os.Stderr})

	var invoker dispatch.Invoker
	if cfg.Dispatch.WorkerFunction != "" {
		invoker, err = newLambdaClient(ctx)
		if err != nil {
			return nil, err
		}
	}

	w, err := newWorker(ctx, cfg, invoker)
	if err != nil {
		return nil, err
	}
	shared = w
	return w, nil
}

func newLambdaClient(ctx context.Context) (dispatch.Invoker, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return lambdasdk.NewFromConfig(cfg), nil
}
