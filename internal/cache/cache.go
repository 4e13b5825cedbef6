/**
 * @description
 * This package holds the pipeline cache: the transient key-value state shared
 * between the classification stages and the category persistence stage for
 * one account's run. The `Pipeline` interface lets the same stage logic run
 * against Redis in production and an in-process map in tests.
 *
 * Key schema:
 * - `category::<accountID>`                → hash of description → category id,
 *   plus the `expectedTotal` field holding the distinct-description count.
 * - `txstatus::<memberID>::<accountNumber>` → pipeline status string, short TTL.
 *   The status key doubles as the duplicate-run lock via create-if-absent.
 */

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moabank/ledger-service/internal/domain"
)

const (
	// expectedTotalField is the reserved hash field carrying the count of
	// distinct descriptions the run must classify. Merchant descriptions are
	// free text, so the field name is chosen to be an implausible merchant.
	expectedTotalField = "__expected_total__"

	// CategoryTTL bounds how long classification results outlive a run. Long
	// enough to survive the external classification round trip.
	CategoryTTL = 2 * time.Hour

	// StatusTTL bounds both the status flag and the duplicate-run lock.
	StatusTTL = 5 * time.Minute
)

// Pipeline is the cross-stage blackboard for one account's run.
type Pipeline interface {
	// PutCategory records one description → category id mapping.
	PutCategory(ctx context.Context, accountID uuid.UUID, description string, categoryID int) error
	// GetCategories returns the full description → category id map for the
	// account. Missing key yields an empty map, not an error.
	GetCategories(ctx context.Context, accountID uuid.UUID) (map[string]int, error)
	// SetExpectedTotal initializes the run's distinct-description count and
	// arms the hash expiry.
	SetExpectedTotal(ctx context.Context, accountID uuid.UUID, total int) error
	// Progress reports (written, expected) so callers can detect completion
	// without a barrier message.
	Progress(ctx context.Context, accountID uuid.UUID) (written, expected int, err error)

	// AcquireRunLock sets the status key to FETCHING only if absent,
	// returning false when another run already holds it.
	AcquireRunLock(ctx context.Context, memberID uuid.UUID, accountNumber string) (bool, error)
	// SetStatus advances the run's state, validating the transition.
	SetStatus(ctx context.Context, memberID uuid.UUID, accountNumber string, status domain.PipelineStatus) error
	// GetStatus returns the current status; ok is false when none is set.
	GetStatus(ctx context.Context, memberID uuid.UUID, accountNumber string) (status domain.PipelineStatus, ok bool, err error)
}

func categoryKey(accountID uuid.UUID) string {
	return fmt.Sprintf("category::%s", accountID)
}

func statusKey(memberID uuid.UUID, accountNumber string) string {
	return fmt.Sprintf("txstatus::%s::%s", memberID, accountNumber)
}
