package dispatchgate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test 1: Dispatch no debe bloquear al caller
func TestGate_DispatchNonBlocking(t *testing.T) {
	gate := New(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate.Start(ctx)
	defer gate.Stop()

	start := time.Now()
	// Despachar debe retornar inmediatamente aunque el job tarde
	gate.Dispatch(Job{
		TenantID:  "t1",
		ChannelID: "ch1",
		Number:    "5215550000001",
		Handler: func(ctx context.Context) error {
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	})
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 10*time.Millisecond, "Dispatch debe ser no bloqueante")
}

// Test 2: Jobs de la misma conversación deben procesarse en orden de llegada
func TestGate_SameConversationSequentialProcessing(t *testing.T) {
	gate := New(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate.Start(ctx)
	defer gate.Stop()

	var results []int
	var mu sync.Mutex

	// Enviamos 5 jobs de la misma conversación
	for i := 1; i <= 5; i++ {
		val := i
		gate.Dispatch(Job{
			TenantID:  "t1",
			ChannelID: "ch1",
			Number:    "5215550000001",
			Handler: func(ctx context.Context) error {
				time.Sleep(10 * time.Millisecond) // Simula procesamiento
				mu.Lock()
				results = append(results, val)
				mu.Unlock()
				return nil
			},
		})
	}

	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, []int{1, 2, 3, 4, 5}, results, "Jobs de la misma conversación deben procesarse en orden")
}

// Test 3: Conversaciones distintas pueden procesarse en paralelo
func TestGate_DifferentConversationsParallelProcessing(t *testing.T) {
	gate := New(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate.Start(ctx)
	defer gate.Stop()

	var activeCount int32

	// Enviamos jobs de 4 números diferentes
	for i := 0; i < 4; i++ {
		number := "521555000000" + string(rune('0'+i))
		gate.Dispatch(Job{
			TenantID:  "t1",
			ChannelID: "ch1",
			Number:    number,
			Handler: func(ctx context.Context) error {
				atomic.AddInt32(&activeCount, 1)
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&activeCount, -1)
				return nil
			},
		})
	}

	time.Sleep(10 * time.Millisecond)

	active := atomic.LoadInt32(&activeCount)
	assert.GreaterOrEqual(t, active, int32(2), "Conversaciones distintas deben procesarse en paralelo")
}

// Test 4: Respetar límite de concurrencia (max workers)
func TestGate_RespectsMaxWorkers(t *testing.T) {
	maxWorkers := 3
	gate := New(maxWorkers, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate.Start(ctx)
	defer gate.Stop()

	var activeCount int32
	var maxActive int32

	for i := 0; i < 10; i++ {
		number := string(rune('A' + i))
		gate.Dispatch(Job{
			TenantID:  "t1",
			ChannelID: "ch1",
			Number:    number,
			Handler: func(ctx context.Context) error {
				current := atomic.AddInt32(&activeCount, 1)
				for {
					max := atomic.LoadInt32(&maxActive)
					if current <= max || atomic.CompareAndSwapInt32(&maxActive, max, current) {
						break
					}
				}
				time.Sleep(30 * time.Millisecond)
				atomic.AddInt32(&activeCount, -1)
				return nil
			},
		})
	}

	time.Sleep(200 * time.Millisecond)

	max := atomic.LoadInt32(&maxActive)
	assert.LessOrEqual(t, max, int32(maxWorkers), "No debe exceder el límite de workers")
}

// Test 5: Graceful shutdown debe completar jobs en curso
func TestGate_GracefulShutdown(t *testing.T) {
	gate := New(2, 10)
	ctx, cancel := context.WithCancel(context.Background())

	gate.Start(ctx)

	var completed int32

	for i := 0; i < 2; i++ {
		gate.Dispatch(Job{
			TenantID:  "t1",
			ChannelID: "ch1",
			Number:    string(rune('A' + i)),
			Handler: func(ctx context.Context) error {
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&completed, 1)
				return nil
			},
		})
	}

	time.Sleep(10 * time.Millisecond) // Dejar que arranquen

	cancel()
	gate.Stop()

	completedCount := atomic.LoadInt32(&completed)
	assert.Equal(t, int32(2), completedCount, "Jobs en curso deben completarse en shutdown")
}

// Test 6: Hash consistente - misma conversación siempre al mismo worker
func TestGate_ConsistentHashing(t *testing.T) {
	gate := New(4, 100)

	job := Job{TenantID: "t1", ChannelID: "ch1", Number: "5215550000001"}

	shard1 := gate.shardForKey(job.key())
	shard2 := gate.shardForKey(job.key())
	shard3 := gate.shardForKey(job.key())

	assert.Equal(t, shard1, shard2, "Misma conversación debe ir al mismo shard")
	assert.Equal(t, shard2, shard3, "Misma conversación debe ir al mismo shard")

	assert.GreaterOrEqual(t, shard1, 0)
	assert.Less(t, shard1, 4)
}

// Test 7: Distribución uniforme de conversaciones entre workers
func TestGate_FairDistribution(t *testing.T) {
	numWorkers := 4
	gate := New(numWorkers, 100)

	shardCounts := make(map[int]int)

	for i := 0; i < 100; i++ {
		job := Job{TenantID: "t1", ChannelID: "ch1", Number: string(rune(i))}
		shard := gate.shardForKey(job.key())
		shardCounts[shard]++
	}

	for shard, count := range shardCounts {
		assert.Greater(t, count, 15, "Worker %d debería recibir >15 conversaciones", shard)
		assert.Less(t, count, 35, "Worker %d debería recibir <35 conversaciones", shard)
	}
}

// Test 8: TryDispatch aplica backpressure cuando la cola está llena
func TestGate_TryDispatchBackpressure(t *testing.T) {
	gate := New(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate.Start(ctx)
	defer gate.Stop()

	block := make(chan struct{})
	slow := func(ctx context.Context) error {
		<-block
		return nil
	}

	// Primer job ocupa el worker, segundo llena la cola
	require.True(t, gate.TryDispatch(Job{TenantID: "t1", ChannelID: "ch1", Number: "1", Handler: slow}))
	time.Sleep(10 * time.Millisecond)
	require.True(t, gate.TryDispatch(Job{TenantID: "t1", ChannelID: "ch1", Number: "1", Handler: slow}))

	// La cola está llena: debe rechazar sin bloquear
	ok := gate.TryDispatch(Job{TenantID: "t1", ChannelID: "ch1", Number: "1", Handler: slow})
	assert.False(t, ok, "TryDispatch debe retornar false con la cola llena")

	close(block)

	stats := gate.GetStats()
	assert.Equal(t, int64(1), stats.TotalDropped)
}

// Test 9: Después de Stop no se aceptan más jobs
func TestGate_RejectsAfterStop(t *testing.T) {
	gate := New(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate.Start(ctx)
	gate.Stop()

	ok := gate.TryDispatch(Job{TenantID: "t1", ChannelID: "ch1", Number: "1", Handler: func(ctx context.Context) error {
		return nil
	}})
	assert.False(t, ok, "No debe aceptar jobs después de Stop")
}
