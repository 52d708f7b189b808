package lifecycle

import "time"

// PurchaseStatus is the lifecycle status of a purchase item.
type PurchaseStatus string

const (
	PurchaseWishlist    PurchaseStatus = "wishlist"
	PurchaseConsidering PurchaseStatus = "considering"
	PurchaseApproved    PurchaseStatus = "approved"
	PurchaseOrdered     PurchaseStatus = "ordered"
	PurchaseReceived    PurchaseStatus = "received"
	PurchaseReturned    PurchaseStatus = "returned"
	PurchaseRemoved     PurchaseStatus = "removed"
)

// PurchaseEvent drives the purchase machine.
type PurchaseEvent string

const (
	PurchaseConsider PurchaseEvent = "CONSIDER"
	PurchaseApprove  PurchaseEvent = "APPROVE"
	PurchaseOrder    PurchaseEvent = "ORDER"
	PurchaseReceive  PurchaseEvent = "RECEIVE"
	PurchaseReturn   PurchaseEvent = "RETURN"
	PurchaseReorder  PurchaseEvent = "REORDER"
	PurchaseRemove   PurchaseEvent = "REMOVE"
	PurchaseRestore  PurchaseEvent = "RESTORE"
)

// PurchaseContext tracks the current order cycle.
//
// OrderedAt is stamped on ORDER and REORDER. ReceivedAt is stamped on RECEIVE
// and cleared by REORDER, so within one cycle it is either nil or later than
// OrderedAt.
type PurchaseContext struct {
	OrderedAt  *time.Time `json:"ordered_at,omitempty"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`
}

var purchaseTransitions = map[PurchaseStatus]map[PurchaseEvent]PurchaseStatus{
	PurchaseWishlist: {
		PurchaseConsider: PurchaseConsidering,
		PurchaseRemove:   PurchaseRemoved,
	},
	PurchaseConsidering: {
		PurchaseApprove: PurchaseApproved,
	},
	PurchaseApproved: {
		PurchaseOrder: PurchaseOrdered,
	},
	PurchaseOrdered: {
		PurchaseReceive: PurchaseReceived,
	},
	PurchaseReceived: {
		PurchaseReturn: PurchaseReturned,
	},
	PurchaseReturned: {
		PurchaseReorder: PurchaseOrdered,
	},
	PurchaseRemoved: {
		PurchaseRestore: PurchaseWishlist,
	},
}

// TransitionPurchase applies event to a purchase in state. now is the
// timestamp recorded by ORDER, RECEIVE and REORDER.
func TransitionPurchase(state PurchaseStatus, ctx PurchaseContext, event PurchaseEvent, now time.Time) (PurchaseStatus, PurchaseContext, bool) {
	next, ok := purchaseTransitions[state][event]
	if !ok {
		return state, ctx, false
	}
	switch event {
	case PurchaseOrder:
		ctx.OrderedAt = &now
	case PurchaseReceive:
		ctx.ReceivedAt = &now
	case PurchaseReorder:
		ctx.OrderedAt = &now
		ctx.ReceivedAt = nil
	}
	return next, ctx, true
}

// NewPurchaseMachine returns a machine for a purchase currently in state.
// clock supplies timestamps; nil means time.Now.
func NewPurchaseMachine(state PurchaseStatus, ctx PurchaseContext, clock func() time.Time) *Machine[PurchaseStatus, PurchaseContext, PurchaseEvent] {
	if clock == nil {
		clock = time.Now
	}
	return NewMachine(state, ctx, func(s PurchaseStatus, c PurchaseContext, e PurchaseEvent) (PurchaseStatus, PurchaseContext, bool) {
		return TransitionPurchase(s, c, e, clock())
	})
}

// PurchaseEvents lists the events accepted in state.
func PurchaseEvents(state PurchaseStatus) []PurchaseEvent {
	return eventsFor(purchaseTransitions, state)
}

// ParsePurchaseStatus validates a persisted status value.
func ParsePurchaseStatus(s string) (PurchaseStatus, bool) {
	st := PurchaseStatus(s)
	return st, st.IsValid()
}

func (s PurchaseStatus) IsValid() bool {
	_, ok := purchaseTransitions[s]
	return ok
}

// IsTerminal reports whether the item has left the buying pipeline.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseReceived || s == PurchaseRemoved
}

func (s PurchaseStatus) String() string { return string(s) }

func (s PurchaseStatus) Label() string {
	switch s {
	case PurchaseWishlist:
		return "Wishlist"
	case PurchaseConsidering:
		return "Considering"
	case PurchaseApproved:
		return "Approved"
	case PurchaseOrdered:
		return "Ordered"
	case PurchaseReceived:
		return "Received"
	case PurchaseReturned:
		return "Returned"
	case PurchaseRemoved:
		return "Removed"
	default:
		return "Unknown"
	}
}

func (s PurchaseStatus) Color() string {
	switch s {
	case PurchaseWishlist:
		return "#A855F7"
	case PurchaseConsidering:
		return "#F59E0B"
	case PurchaseApproved:
		return "#14B8A6"
	case PurchaseOrdered:
		return "#3B82F6"
	case PurchaseReceived:
		return "#22C55E"
	case PurchaseReturned:
		return "#F97316"
	case PurchaseRemoved:
		return "#6B7280"
	default:
		return "#9CA3AF"
	}
}
