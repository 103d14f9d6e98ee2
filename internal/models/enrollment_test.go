package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStatus(t *testing.T) {
	assert.Equal(t, EnrollmentStatusPass, NextStatus(EnrollmentStatusActive, 50, DefaultPassMark))
	assert.Equal(t, EnrollmentStatusFail, NextStatus(EnrollmentStatusActive, 49, DefaultPassMark))
	assert.Equal(t, EnrollmentStatusFail, NextStatus(EnrollmentStatusPass, 10, DefaultPassMark))
	assert.Equal(t, EnrollmentStatusPass, NextStatus(EnrollmentStatusFail, 90, DefaultPassMark))
	assert.Equal(t, EnrollmentStatusDropped, NextStatus(EnrollmentStatusDropped, 100, DefaultPassMark))
	assert.Equal(t, EnrollmentStatusPass, NextStatus(EnrollmentStatusActive, 60, 60))
}
