package domain

import (
	"context"
	"sync"
	"testing"
)

func TestEmbeddingUsage(t *testing.T) {
	if u := UsageFromContext(context.Background()); u != nil {
		t.Fatal("expected nil collector")
	}
	UsageFromContext(context.Background()).AddTokens(5)

	ctx, u := NewContextWithUsage(context.Background())
	if UsageFromContext(ctx) != u {
		t.Fatal("collector not found in context")
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			UsageFromContext(ctx).AddTokens(3)
		}()
	}
	wg.Wait()

	if u.TotalTokens != 24 || u.Calls != 8 || !u.Used {
		t.Errorf("unexpected usage: tokens=%d calls=%d used=%v", u.TotalTokens, u.Calls, u.Used)
	}
}
