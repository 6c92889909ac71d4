package aggregates

import (
	"fmt"
	"strings"

	"github.com/yungbote/trainwatch-backend/internal/domain/views"
)

// WriteTxOwnership defines who owns write transaction boundaries.
type WriteTxOwnership string

const (
	// WriteTxOwnedByAggregate means write methods open and commit their own transaction.
	WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"
)

// ReadPolicy defines how a contract exposes reads.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped allows only reads needed for invariant decisions in write flows.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
	// ReadPolicyReadModels additionally exposes dashboard read models.
	ReadPolicyReadModels ReadPolicy = "read_models"
)

// Contract describes the write boundary of one view.
type Contract struct {
	Name             string
	View             views.Kind
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	// IdempotencyKey names the field a repeated write is deduplicated on.
	IdempotencyKey string
	Notes          string
}

// Aggregate is the common marker for all write boundaries.
type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}

// Op names one operation of the aggregate, e.g. "Playback.TraineeView.Record".
func (c Contract) Op(method string) string {
	method = strings.TrimSpace(method)
	if method == "" {
		return c.Name
	}
	return c.Name + "." + method
}

// Validate rejects contracts the write layer cannot honor.
func (c Contract) Validate() error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return NewError(CodeInvariantViolation, "contract", "name is required", nil)
	case !c.View.Valid():
		return NewError(CodeInvariantViolation, c.Name, fmt.Sprintf("unknown view %q", c.View), nil)
	case !c.RequiresAggregateOwnedTx():
		return NewError(CodeInvariantViolation, c.Name, "view writes must own their transaction", nil)
	case c.ReadPolicy != ReadPolicyInvariantScoped && c.ReadPolicy != ReadPolicyReadModels:
		return NewError(CodeInvariantViolation, c.Name, fmt.Sprintf("unknown read policy %q", c.ReadPolicy), nil)
	}
	return nil
}
