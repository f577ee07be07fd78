// internal/service/history_test.go
package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"register-terminal/internal/model"
)

func TestHistoryEvictsOldest(t *testing.T) {
	h := NewHistory(3)
	var added []*model.Result
	for i := 0; i < 5; i++ {
		r := model.NewResult(model.ActionRead)
		added = append(added, r)
		h.Add(r)
	}

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, added[2:], h.Last(0))
	assert.Equal(t, added[3:], h.Last(2))
	assert.Equal(t, added[2:], h.Last(10))
}

func TestHistoryPartial(t *testing.T) {
	h := NewHistory(4)
	assert.Empty(t, h.Last(0))

	r := model.NewResult(model.ActionOpen)
	h.Add(r)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, []*model.Result{r}, h.Last(0))
}
