// internal/errors/errors.go
package appErrors

import "fmt"

// ErrItemNotFound signals a queue item lookup miss.
type ErrItemNotFound struct {
	ItemID string
}

func (e *ErrItemNotFound) Error() string {
	return fmt.Sprintf("queue item %s not found", e.ItemID)
}

func NewItemNotFound(id string) error {
	return &ErrItemNotFound{ItemID: id}
}

// ErrBlacklistEntryNotFound signals a blacklist entry lookup miss.
type ErrBlacklistEntryNotFound struct {
	EntryID string
}

func (e *ErrBlacklistEntryNotFound) Error() string {
	return fmt.Sprintf("blacklist entry %s not found", e.EntryID)
}

func NewBlacklistEntryNotFound(id string) error {
	return &ErrBlacklistEntryNotFound{EntryID: id}
}
