package approval

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApproveAndCheck(t *testing.T) {
	s := NewStore()
	assert.False(t, s.IsApproved("tr1", "open_ticket"))

	s.Approve("tr1", "open_ticket", "alice")
	assert.True(t, s.IsApproved("tr1", "open_ticket"))
	assert.False(t, s.IsApproved("tr1", "other_step"))
	assert.False(t, s.IsApproved("tr2", "open_ticket"))
}

func TestApproveEmptyUserStillCounts(t *testing.T) {
	s := NewStore()
	s.Approve("tr", "step", "")
	assert.True(t, s.IsApproved("tr", "step"))
	assert.Equal(t, []string{"unknown"}, s.Approvers("tr", "step"))
}

func TestMultipleApprovers(t *testing.T) {
	s := NewStore()
	s.Approve("tr", "step", "alice")
	s.Approve("tr", "step", "bob")
	s.Approve("tr", "step", "alice")
	assert.Len(t, s.Approvers("tr", "step"), 2)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Approve("tr", "step", fmt.Sprintf("user-%d", i))
		}()
		go func() {
			defer wg.Done()
			s.IsApproved("tr", "step")
		}()
	}
	wg.Wait()
	assert.Len(t, s.Approvers("tr", "step"), 32)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "tr:step", Key("tr", "step"))
}
