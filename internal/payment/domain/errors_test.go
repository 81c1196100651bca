package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("status 502")
	err := fmt.Errorf("checkout: %w", NewError(KindOrderCreation, base))

	assert.Equal(t, KindOrderCreation, KindOf(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, Kind(""), KindOf(base))
	assert.Equal(t, "user_cancelled", NewError(KindUserCancelled, nil).Error())
	assert.Equal(t, "configuration: payment gateway not configured", NewError(KindConfiguration, ErrMissingConfig).Error())
}
