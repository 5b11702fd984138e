package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectionState_SelectIsIdempotent(t *testing.T) {
	sel := NewSelectionState()

	assert.True(t, sel.Select("cbc"))
	assert.False(t, sel.Select("cbc"))
	assert.True(t, sel.Select("ecg"))

	assert.True(t, sel.IsSelected("cbc"))
	assert.False(t, sel.IsSelected("mri"))
	assert.Equal(t, []string{"cbc", "ecg"}, sel.Selected())
	assert.Equal(t, 2, sel.Len())
}

func TestSelectionState_ConcurrentDoubleSelect(t *testing.T) {
	sel := NewSelectionState()

	var wg sync.WaitGroup
	added := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added <- sel.Select("troponin")
		}()
	}
	wg.Wait()
	close(added)

	newly := 0
	for ok := range added {
		if ok {
			newly++
		}
	}
	assert.Equal(t, 1, newly)
	assert.Equal(t, []string{"troponin"}, sel.Selected())
}

func TestSelectionState_SelectedReturnsCopy(t *testing.T) {
	sel := NewSelectionState()
	sel.Select("cbc")

	got := sel.Selected()
	got[0] = "changed"

	assert.Equal(t, []string{"cbc"}, sel.Selected())
}
