package errors

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu       sync.Mutex
	reported []*EnhancedError
}

func (r *recordingReporter) ReportError(ee *EnhancedError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reported = append(r.reported, ee)
	ee.MarkReported()
}

func (r *recordingReporter) IsEnabled() bool { return true }

func TestBuilder_SetsFieldsAndDefaults(t *testing.T) {
	base := NewStd("connection refused")
	ee := New(base).
		Component("verifier").
		Category(CategoryVerifier).
		Context("url", "https://example.com/p/1").
		Build()

	assert.Equal(t, "verifier", ee.Component)
	assert.Equal(t, CategoryVerifier, ee.Category)
	assert.Equal(t, PriorityHigh, ee.Priority)
	assert.Equal(t, "https://example.com/p/1", ee.GetContext()["url"])
	assert.ErrorIs(t, ee, base)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilder_UnknownPriorityFallsBackToMedium(t *testing.T) {
	ee := Newf("x").Priority("urgent").Build()
	assert.Equal(t, PriorityMedium, ee.Priority)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.Equal(t, ComponentUnknown, ee.Component)
}

func TestBuilder_DefaultPriorityByCategory(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		want     string
	}{
		{CategoryDatabase, PriorityCritical},
		{CategoryLedger, PriorityCritical},
		{CategoryContentParse, PriorityHigh},
		{CategoryKeyword, PriorityLow},
		{CategoryNetwork, PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			ee := Newf("failure").Category(tt.category).Build()
			assert.Equal(t, tt.want, ee.Priority)
		})
	}
}

func TestIsCategory_ThroughWrapping(t *testing.T) {
	ee := Newf("db down").Category(CategoryDatabase).Build()
	wrapped := fmt.Errorf("saving task: %w", ee)

	assert.True(t, IsCategory(wrapped, CategoryDatabase))
	assert.False(t, IsCategory(wrapped, CategoryNetwork))
	assert.Equal(t, PriorityCritical, PriorityOf(wrapped))
	assert.Empty(t, PriorityOf(context.Canceled))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(Newf("task missing").Category(CategoryNotFound).Build()))
	assert.False(t, IsNotFound(NewStd("plain")))
}

func TestTelemetryReporter_ReceivesBuiltErrors(t *testing.T) {
	rec := &recordingReporter{}
	SetTelemetryReporter(rec)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	ee := Newf("ledger write failed").Category(CategoryLedger).Build()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.reported, 1)
	assert.Same(t, ee, rec.reported[0])
	assert.True(t, ee.IsReported())
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := Newf("boom").Component("datastore").Category(CategoryDatabase).
		Context("operation", "compare_and_swap_status").Build()
	assert.Equal(t, "Datastore Database Error Compare And Swap Status", generateErrorTitle(ee))
}
