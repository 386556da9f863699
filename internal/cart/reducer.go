package cart

import "github.com/aarnajewels/storefront-core/pkg/types"

// ActionType enumerates the cart state transitions.
type ActionType string

const (
	ActionAddItem        ActionType = "ADD_ITEM"
	ActionRemoveItem     ActionType = "REMOVE_ITEM"
	ActionUpdateQuantity ActionType = "UPDATE_QUANTITY"
	ActionUpdateSize     ActionType = "UPDATE_SIZE"
	ActionClear          ActionType = "CLEAR"
	ActionRemoteSync     ActionType = "REMOTE_SYNC"
)

// Action is one cart state transition. Only the fields relevant to the
// action type are read.
type Action struct {
	Type         ActionType
	Product      types.Product
	SelectedSize *string
	ProductID    string
	Quantity     int
	Items        []types.LineItem
}

// Reduce applies an action to a cart snapshot and returns the next
// snapshot. It is pure: the input slice is never mutated, and the same
// rules run remotely, so optimistic and persisted state converge.
func Reduce(items []types.LineItem, action Action) []types.LineItem {
	switch action.Type {
	case ActionAddItem:
		return mergeAdd(items, action.Product, action.SelectedSize)
	case ActionRemoveItem:
		return removeProduct(items, action.ProductID)
	case ActionUpdateQuantity:
		return setQuantity(items, action.ProductID, action.Quantity)
	case ActionUpdateSize:
		return setSize(items, action.ProductID, action.SelectedSize)
	case ActionClear:
		return nil
	case ActionRemoteSync:
		return types.CloneLineItems(action.Items)
	default:
		return items
	}
}
