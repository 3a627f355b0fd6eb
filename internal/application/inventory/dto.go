package inventory

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pipemill/backend/internal/domain/catalog"
	"github.com/pipemill/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// validate is the shared request validator. Struct tags carry the
// rule set; services call validateRequest before touching the database.
var validate = validator.New()

func validateRequest(req interface{}) error {
	return validate.Struct(req)
}

// ProductionStockInput describes one stock row to create under a new batch
type ProductionStockInput struct {
	StockType inventory.StockType `json:"stock_type" validate:"required,oneof=FULL_ROLL CUT_ROLL BUNDLE SPARE"`
	// Quantity is rolls for FULL_ROLL, pieces for CUT_ROLL, bundles for
	// BUNDLE; SPARE entries carry their counts in SpareGroups instead
	Quantity        int              `json:"quantity" validate:"omitempty,min=1"`
	LengthPerUnit   *decimal.Decimal `json:"length_per_unit,omitempty"`
	PiecesPerBundle *int             `json:"pieces_per_bundle,omitempty" validate:"omitempty,min=1"`
	PieceLength     *decimal.Decimal `json:"piece_length,omitempty"`
	// PieceLengths lists individual lengths for CUT_ROLL production entries;
	// its length must equal Quantity
	PieceLengths []decimal.Decimal `json:"piece_lengths,omitempty"`
	// SpareGroups lists per-group piece counts for SPARE production entries;
	// one piece group is created per entry
	SpareGroups []int `json:"spare_groups,omitempty" validate:"omitempty,min=1,dive,min=1"`
}

// ProductionRequest records a production run as a new batch with stock
type ProductionRequest struct {
	ProductTypeID  uuid.UUID              `json:"product_type_id" validate:"required"`
	BrandID        uuid.UUID              `json:"brand_id" validate:"required"`
	Parameters     catalog.ParamMap       `json:"parameters"`
	ProductionDate time.Time              `json:"production_date" validate:"required"`
	Stocks         []ProductionStockInput `json:"stocks" validate:"required,min=1,dive"`
	WeightPerMeter *decimal.Decimal       `json:"weight_per_meter,omitempty"`
	TotalWeight    *decimal.Decimal       `json:"total_weight,omitempty"`
	Notes          string                 `json:"notes"`
	AttachmentRef  *string                `json:"attachment_ref,omitempty"`
	CreatedBy      uuid.UUID              `json:"created_by"`
}

// ProductionResponse reports the created batch and its stock rows
type ProductionResponse struct {
	BatchID       uuid.UUID   `json:"batch_id"`
	BatchCode     string      `json:"batch_code"`
	TransactionID uuid.UUID   `json:"transaction_id"`
	Handle        string      `json:"transaction_handle"`
	StockIDs      []uuid.UUID `json:"stock_ids"`
}

// CutRollRequest cuts a full roll, or re-cuts an existing piece, into pieces
type CutRollRequest struct {
	SourceStockID uuid.UUID `json:"source_stock_id" validate:"required"`
	// SourcePieceID selects an existing cut piece to re-cut; nil consumes one
	// full roll from the source stock
	SourcePieceID *uuid.UUID        `json:"source_piece_id,omitempty"`
	PieceLengths  []decimal.Decimal `json:"piece_lengths" validate:"required,min=1"`
	Notes         string            `json:"notes"`
	CreatedBy     uuid.UUID         `json:"created_by"`
}

// CutRollResponse reports the cut result
type CutRollResponse struct {
	TransactionID uuid.UUID   `json:"transaction_id"`
	Handle        string      `json:"transaction_handle"`
	TargetStockID uuid.UUID   `json:"target_stock_id"`
	PieceIDs      []uuid.UUID `json:"piece_ids"`
}

// SplitBundleRequest opens one intact bundle into loose spare piece groups
type SplitBundleRequest struct {
	SourceStockID uuid.UUID `json:"source_stock_id" validate:"required"`
	// PiecesToSplit lists the piece count of each loose group to open out of
	// the bundle; the sum may not exceed the bundle's pieces-per-bundle
	PiecesToSplit []int     `json:"pieces_to_split" validate:"required,min=1,dive,min=1"`
	Notes         string    `json:"notes"`
	CreatedBy     uuid.UUID `json:"created_by"`
}

// SplitBundleResponse reports the split result
type SplitBundleResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Handle        string    `json:"transaction_handle"`
	TargetStockID uuid.UUID `json:"target_stock_id"`
	// PieceGroupIDs are the groups created for the requested counts, in order
	PieceGroupIDs []uuid.UUID `json:"piece_group_ids"`
	// RemainderGroupID is set when the bundle held more pieces than requested
	RemainderGroupID *uuid.UUID `json:"remainder_group_id,omitempty"`
	Pieces           int        `json:"pieces"`
}

// CombineSparesRequest rebuilds intact bundles from loose spare pieces
type CombineSparesRequest struct {
	SourceStockID   uuid.UUID `json:"source_stock_id" validate:"required"`
	BundleSize      int       `json:"bundle_size" validate:"required,min=1"`
	NumberOfBundles int       `json:"number_of_bundles" validate:"required,min=1"`
	// SparePieceIDs optionally pins the groups to draw from; empty selects
	// the largest in-stock groups first
	SparePieceIDs []uuid.UUID `json:"spare_piece_ids,omitempty"`
	Notes         string      `json:"notes"`
	CreatedBy     uuid.UUID   `json:"created_by"`
}

// CombineSparesResponse reports the combine result
type CombineSparesResponse struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Handle        string    `json:"transaction_handle"`
	TargetStockID uuid.UUID `json:"target_stock_id"`
	PiecesUsed    int       `json:"pieces_used"`
	// RemainderGroupID is set when a partially consumed group left a
	// newly created remainder group behind
	RemainderGroupID *uuid.UUID `json:"remainder_group_id,omitempty"`
}

// DispatchItemRequest is one line of a dispatch request
type DispatchItemRequest struct {
	StockID  uuid.UUID                  `json:"stock_id" validate:"required"`
	ItemType inventory.DispatchItemType `json:"item_type" validate:"required,oneof=FULL_ROLL CUT_PIECE CUT_ROLL BUNDLE SPARE_PIECES"`
	// Quantity is rolls/bundles for quantity lines and the piece count for
	// CUT_ROLL lines; ignored for CUT_PIECE and SPARE_PIECES lines
	Quantity int `json:"quantity" validate:"omitempty,min=1"`
	// PieceIDs selects the exact cut pieces for CUT_PIECE lines
	PieceIDs []uuid.UUID `json:"piece_ids,omitempty"`
	// SparePieceIDs names the groups SPARE_PIECES lines draw from; repeating
	// a group id N times consumes N physical pieces from that group
	SparePieceIDs []uuid.UUID      `json:"spare_piece_ids,omitempty"`
	RatePerUnit   *decimal.Decimal `json:"rate_per_unit,omitempty"`
	Notes         string           `json:"notes"`
}

// DispatchRequest ships inventory out to a customer
type DispatchRequest struct {
	CustomerID    uuid.UUID             `json:"customer_id" validate:"required"`
	BillToID      *uuid.UUID            `json:"bill_to_id,omitempty"`
	TransportID   *uuid.UUID            `json:"transport_id,omitempty"`
	VehicleID     *uuid.UUID            `json:"vehicle_id,omitempty"`
	InvoiceNumber *string               `json:"invoice_number,omitempty"`
	DispatchDate  time.Time             `json:"dispatch_date" validate:"required"`
	Items         []DispatchItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes         string                `json:"notes"`
	CreatedBy     uuid.UUID             `json:"created_by"`
}

// DispatchResponse reports the committed dispatch
type DispatchResponse struct {
	DispatchID     uuid.UUID   `json:"dispatch_id"`
	DispatchNo     string      `json:"dispatch_no"`
	Handle         string      `json:"dispatch_handle"`
	TransactionIDs []uuid.UUID `json:"transaction_ids"`
}

// ReturnItemRequest is one line of a return request. Lines name the product
// the goods belong to; the service resolves the variant and opens a fresh
// batch per variant on the document.
type ReturnItemRequest struct {
	ProductTypeID uuid.UUID                `json:"product_type_id" validate:"required"`
	BrandID       uuid.UUID                `json:"brand_id" validate:"required"`
	Parameters    catalog.ParamMap         `json:"parameters"`
	ItemKind      inventory.ReturnItemKind `json:"item_kind" validate:"required,oneof=FULL_ROLL CUT_ROLL BUNDLE SPARE"`
	Quantity      int                      `json:"quantity" validate:"required,min=1"`
	// RollLengths lists the length of each returned roll for FULL_ROLL and
	// CUT_ROLL lines; its length must equal Quantity
	RollLengths []decimal.Decimal `json:"rolls,omitempty"`
	// BundleSizes lists the piece count of each returned bundle for BUNDLE
	// lines; its length must equal Quantity
	BundleSizes []int `json:"bundles,omitempty"`
	// PieceCount is the number of loose pieces for SPARE lines
	PieceCount *int `json:"piece_count,omitempty" validate:"omitempty,min=1"`
	// PieceLength is the per-piece length for BUNDLE and SPARE lines
	PieceLength *decimal.Decimal `json:"piece_length_meters,omitempty"`
	Condition   string           `json:"condition"`
	Notes       string           `json:"notes"`
}

// ReturnRequest brings dispatched inventory back into stock
type ReturnRequest struct {
	CustomerID   *uuid.UUID          `json:"customer_id,omitempty"`
	CustomerName string              `json:"customer_name" validate:"required"`
	DispatchID   *uuid.UUID          `json:"dispatch_id,omitempty"`
	ReturnDate   time.Time           `json:"return_date" validate:"required"`
	Reason       string              `json:"reason"`
	Items        []ReturnItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes        string              `json:"notes"`
	CreatedBy    uuid.UUID           `json:"created_by"`
}

// ReturnResponse reports the committed return
type ReturnResponse struct {
	ReturnID       uuid.UUID   `json:"return_id"`
	ReturnNo       string      `json:"return_no"`
	Handle         string      `json:"return_handle"`
	TransactionIDs []uuid.UUID `json:"transaction_ids"`
	BatchIDs       []uuid.UUID `json:"batch_ids"`
	StockIDs       []uuid.UUID `json:"stock_ids"`
}

// ScrapItemRequest is one line of a scrap request
type ScrapItemRequest struct {
	StockID  uuid.UUID               `json:"stock_id" validate:"required"`
	ItemKind inventory.ScrapItemKind `json:"item_kind" validate:"required,oneof=FULL_ROLL CUT_PIECE BUNDLE SPARE"`
	// Quantity is rolls/bundles for quantity lines and the piece count for
	// SPARE lines; ignored for CUT_PIECE lines
	Quantity int `json:"quantity" validate:"omitempty,min=1"`
	// PieceIDs selects the exact cut pieces for CUT_PIECE lines
	PieceIDs []uuid.UUID `json:"piece_ids,omitempty"`
	Notes    string      `json:"notes"`
}

// ScrapRequest writes damaged or defective inventory off
type ScrapRequest struct {
	ScrapDate time.Time          `json:"scrap_date" validate:"required"`
	Reason    string             `json:"reason" validate:"required"`
	Items     []ScrapItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes     string             `json:"notes"`
	CreatedBy uuid.UUID          `json:"created_by"`
}

// ScrapResponse reports the committed scrap
type ScrapResponse struct {
	ScrapID uuid.UUID `json:"scrap_id"`
	ScrapNo string    `json:"scrap_no"`
	Handle  string    `json:"scrap_handle"`
}

// RevertRequest undoes a previously committed operation by handle
type RevertRequest struct {
	Handle    string    `json:"handle" validate:"required"`
	Reason    string    `json:"reason"`
	CreatedBy uuid.UUID `json:"created_by"`
}

// RevertResponse reports what was rolled back
type RevertResponse struct {
	Handle          string                    `json:"handle"`
	TransactionType inventory.TransactionType `json:"transaction_type"`
	RevertedAt      time.Time                 `json:"reverted_at"`
}

// StockResponse represents a stock row in query responses
type StockResponse struct {
	ID               uuid.UUID                 `json:"id"`
	BatchID          uuid.UUID                 `json:"batch_id"`
	ProductVariantID uuid.UUID                 `json:"product_variant_id"`
	StockType        inventory.StockType       `json:"stock_type"`
	Quantity         int                       `json:"quantity"`
	Status           inventory.StockStatus     `json:"status"`
	LengthPerUnit    *decimal.Decimal          `json:"length_per_unit,omitempty"`
	PiecesPerBundle  *int                      `json:"pieces_per_bundle,omitempty"`
	PieceLength      *decimal.Decimal          `json:"piece_length,omitempty"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

// ToStockResponse maps a stock row to its response form
func ToStockResponse(s *inventory.InventoryStock) StockResponse {
	return StockResponse{
		ID:               s.ID,
		BatchID:          s.BatchID,
		ProductVariantID: s.ProductVariantID,
		StockType:        s.StockType,
		Quantity:         s.Quantity,
		Status:           s.Status,
		LengthPerUnit:    s.LengthPerUnit,
		PiecesPerBundle:  s.PiecesPerBundle,
		PieceLength:      s.PieceLengthMeters,
		UpdatedAt:        s.UpdatedAt,
	}
}

// PieceAuditTrail is one piece's history from creation to its current
// state: the log entry that created it, the dispatch that shipped it, and
// the entry that consumed it, oldest first
type PieceAuditTrail struct {
	PieceID uuid.UUID              `json:"piece_id"`
	Kind    inventory.PieceKind    `json:"kind"`
	StockID uuid.UUID              `json:"stock_id"`
	Status  inventory.PieceStatus  `json:"status"`
	Deleted bool                   `json:"deleted"`
	Events  []TimelineEntry        `json:"events"`
}

// TimelineEntry is one row of a batch or stock history view. Log entries and
// scrap records are merged into a single stream, newest first.
type TimelineEntry struct {
	Handle    string     `json:"handle"`
	Kind      string     `json:"kind"`
	Reference string     `json:"reference,omitempty"`
	Quantity  *int       `json:"quantity,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Reverted  bool       `json:"reverted"`
	CreatedAt time.Time  `json:"created_at"`
	CreatedBy *uuid.UUID `json:"created_by,omitempty"`
}
