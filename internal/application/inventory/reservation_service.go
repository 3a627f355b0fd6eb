package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/shared"
)

// ReserveSparesRequest reserves spare piece groups for a pending operation.
// The token identifies the reserving session; re-reserving with the same
// token refreshes the hold.
type ReserveSparesRequest struct {
	StockID       uuid.UUID   `json:"stock_id" validate:"required"`
	PieceGroupIDs []uuid.UUID `json:"piece_group_ids" validate:"required,min=1"`
	Token         uuid.UUID   `json:"token" validate:"required"`
}

// ReserveSpares places a time-limited hold on spare piece groups so a user
// can prepare a dispatch without losing the pieces to a concurrent session.
// Holds expire on their own; committing or abandoning the operation does
// not need an explicit release.
func (s *TransformService) ReserveSpares(ctx context.Context, req ReserveSparesRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		now := time.Now()
		groups, err := repos.SparePieceRepo().FindByIDsForUpdateNoWait(ctx, req.PieceGroupIDs)
		if err != nil {
			return err
		}
		if len(groups) != len(req.PieceGroupIDs) {
			return shared.ErrNotFound
		}
		for i := range groups {
			g := &groups[i]
			if g.StockID != req.StockID || !g.IsInStock() {
				return shared.NewDomainError(shared.CodeInvalidDispatch, "Piece group is not available in this stock")
			}
			if g.IsReserved(req.Token, s.reservationTimeout, now) {
				return shared.ErrPiecesLocked
			}
		}
		for i := range groups {
			g := &groups[i]
			g.Reserve(req.Token, now)
			if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReleaseSpares drops the holds a token placed on the given groups
func (s *TransformService) ReleaseSpares(ctx context.Context, token uuid.UUID, groupIDs []uuid.UUID) error {
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		groups, err := repos.SparePieceRepo().FindByIDsForUpdateNoWait(ctx, groupIDs)
		if err != nil {
			return err
		}
		for i := range groups {
			g := &groups[i]
			if g.ReservedByTransactionID == nil || *g.ReservedByTransactionID != token {
				continue
			}
			g.ClearReservation()
			if err := repos.SparePieceRepo().Update(ctx, g); err != nil {
				return err
			}
		}
		return nil
	})
}
