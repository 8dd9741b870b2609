package jobs

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()

	job := Job{ID: "20260310_043000", Status: StatusRunning, StartTime: time.Now()}
	assert.NoError(t, store.Create(job))

	got, ok := store.Get("20260310_043000")
	assert.True(t, ok)
	assert.Equal(t, StatusRunning, got.Status)

	// Duplicate ids are rejected
	assert.Error(t, store.Create(job))

	// Unknown ids report absence
	_, ok = store.Get("nope")
	assert.False(t, ok)
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore()
	assert.NoError(t, store.Create(Job{ID: "job1", Status: StatusRunning, StartTime: time.Now()}))

	end := time.Now()
	err := store.Update("job1", func(j *Job) {
		j.Status = StatusCompleted
		j.EndTime = &end
		j.ProductsScraped = 12
	})
	assert.NoError(t, err)

	got, ok := store.Get("job1")
	assert.True(t, ok)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 12, got.ProductsScraped)
	assert.NotNil(t, got.EndTime)

	assert.Error(t, store.Update("missing", func(j *Job) {}))
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("job_%d", i)
			assert.NoError(t, store.Create(Job{ID: id, Status: StatusRunning}))
			assert.NoError(t, store.Update(id, func(j *Job) {
				j.Status = StatusCompleted
			}))
			job, ok := store.Get(id)
			assert.True(t, ok)
			assert.Equal(t, StatusCompleted, job.Status)
		}(i)
	}
	wg.Wait()
}
