package common

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderID(t *testing.T) {
	at := time.Date(2024, time.March, 15, 10, 15, 0, 0, time.UTC)
	assert.Equal(t, "alice@example.com-03152024-101500", NewOrderID("alice@example.com", at))
}

func TestNewOrderIDUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	at := time.Date(2024, time.March, 15, 8, 0, 0, 0, loc)
	assert.Equal(t, "alice@example.com-03142024-220000", NewOrderID("alice@example.com", at))
}

func TestImportedOrderIDIsDeterministic(t *testing.T) {
	a := ImportedOrderID("bob@example.com", "ext-42")
	b := ImportedOrderID("bob@example.com", "ext-42")
	assert.Equal(t, "bob@example.com-ext-42", a)
	assert.Equal(t, a, b)
}

func TestNewRunIDIsUnique(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	assert.True(t, strings.HasPrefix(a, "run_"))
	assert.NotEqual(t, a, b)
}
