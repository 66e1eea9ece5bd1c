package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/gesappro/internal/repository"
)

// RefPrefix starts every approvisionnement reference (APP0001, ...).
const RefPrefix = "APP"

// ReferenceSource yields the next approvisionnement reference. The
// service regenerates through it when the caller left the reference
// empty, and once more after a uniqueness conflict.
type ReferenceSource interface {
	Next(ctx context.Context) string
}

// ReferenceGenerator derives the next reference from the most recently
// created approvisionnement. Two concurrent creations can read the
// same latest row and compute the same sequence; the unique index on
// the reference column is the correctness backstop (see the conflict
// retry in ApprovisionnementService).
type ReferenceGenerator struct {
	repo repository.ApprovisionnementRepository
	now  func() time.Time
}

func NewReferenceGenerator(repo repository.ApprovisionnementRepository) *ReferenceGenerator {
	return &ReferenceGenerator{repo: repo, now: time.Now}
}

// Next is a pure read: calling it twice without an intervening
// creation returns the same value. Sequence policy:
//   - empty table: 1
//   - latest reference APP<n>: n+1
//   - unparseable suffix or foreign prefix: latest id + 1
//   - storage unavailable: timestamped reference (second precision)
func (g *ReferenceGenerator) Next(ctx context.Context) string {
	dernier, err := g.repo.FindLatest(ctx)
	if err != nil {
		return RefPrefix + g.now().Format("20060102150405")
	}
	seq := 1
	if dernier != nil {
		if n, ok := parseSequence(dernier.Reference); ok {
			seq = n + 1
		} else {
			seq = int(dernier.ID) + 1
		}
	}
	return fmt.Sprintf("%s%04d", RefPrefix, seq)
}

func parseSequence(reference string) (int, bool) {
	if !strings.HasPrefix(reference, RefPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(reference[len(RefPrefix):])
	if err != nil {
		return 0, false
	}
	return n, true
}
