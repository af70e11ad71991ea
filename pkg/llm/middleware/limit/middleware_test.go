package limit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadmapbp/pkg/llm"
)

func TestMiddlewareCapsConcurrency(t *testing.T) {
	var inFlight, peak int32
	mock := llm.NewMockClient("mock", func(_ llm.CompletionRequest) (llm.CompletionResponse, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return llm.CompletionResponse{Content: "ok"}, nil
	})
	client := llm.Chain(mock, Middleware(2, nil))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Complete(context.Background(), llm.CompletionRequest{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	assert.Equal(t, 8, mock.CallCount())
}

func TestMiddlewareHonorsContextWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	mock := llm.NewMockClient("mock", func(_ llm.CompletionRequest) (llm.CompletionResponse, error) {
		<-release
		return llm.CompletionResponse{Content: "ok"}, nil
	})
	client := llm.Chain(mock, Middleware(1, nil))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = client.Complete(context.Background(), llm.CompletionRequest{})
	}()
	require.Eventually(t, func() bool { return mock.CallCount() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.Complete(ctx, llm.CompletionRequest{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	close(release)
	<-done
}

func TestNonPositiveDisables(t *testing.T) {
	assert.Nil(t, Middleware(0, nil))
}
