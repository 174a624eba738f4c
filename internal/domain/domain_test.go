package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/quizhub/internal/domain"
)

func TestQuiz_TotalPoints(t *testing.T) {
	q := domain.Quiz{
		Questions: []domain.Question{{Points: 1}, {Points: 2}, {Points: 4}},
	}
	assert.Equal(t, 7, q.TotalPoints())
	assert.Equal(t, 0, domain.Quiz{}.TotalPoints())
}

func TestQuiz_OwnedBy(t *testing.T) {
	q := domain.Quiz{CreatorID: "u1"}

	assert.True(t, q.OwnedBy(domain.User{UserID: "u1", Role: domain.RoleUser}))
	assert.True(t, q.OwnedBy(domain.User{UserID: "u2", Role: domain.RoleAdmin}))
	assert.False(t, q.OwnedBy(domain.User{UserID: "u2", Role: domain.RoleUser}))
}

func TestQuiz_Available(t *testing.T) {
	assert.True(t, domain.Quiz{IsPublic: true, IsActive: true}.Available())
	assert.False(t, domain.Quiz{IsPublic: false, IsActive: true}.Available())
	assert.False(t, domain.Quiz{IsPublic: true, IsActive: false}.Available())
}
