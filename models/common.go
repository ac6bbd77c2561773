package models

import (
	"fmt"
	"strings"
)

// PositionUpdate is one (id, position) pair inside a reorder request.
// Channels, categories, roles and the per-user server list all reorder with
// the same shape, applied atomically in one transaction.
type PositionUpdate struct {
	ID       string `json:"id" validate:"required"`
	Position int    `json:"position" validate:"gte=0"`
}

// validatePositions rejects duplicate ids and duplicate positions.
// Uniqueness of position within the reordered scope is a store-level
// constraint; catching duplicates here turns a cryptic constraint violation
// into a 400.
func validatePositions(positions []PositionUpdate) error {
	seenIDs := make(map[string]bool, len(positions))
	seenPos := make(map[int]bool, len(positions))
	for _, p := range positions {
		if seenIDs[p.ID] {
			return fmt.Errorf("duplicate id in reorder: %s", p.ID)
		}
		if seenPos[p.Position] {
			return fmt.Errorf("duplicate position in reorder: %d", p.Position)
		}
		seenIDs[p.ID] = true
		seenPos[p.Position] = true
	}
	return nil
}

// validatePermissionMask rejects masks carrying undefined bits.
func validatePermissionMask(p Permission) error {
	if p < 0 || p&^PermAll != 0 {
		return fmt.Errorf("invalid permissions value")
	}
	return nil
}

// validateMessageContent requires non-empty content unless the message
// carries file attachments. The 2000-rune cap is enforced by struct tags;
// this covers only the cross-field rule tags cannot express.
func validateMessageContent(content string, hasFiles bool) error {
	if content == "" && !hasFiles {
		return fmt.Errorf("message content is required")
	}
	return nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// normalizeHexColor uppercases nothing but guarantees the leading '#'.
// "FF5733" and "#FF5733" store identically.
func normalizeHexColor(c string) string {
	c = strings.TrimSpace(c)
	if c != "" && !strings.HasPrefix(c, "#") {
		c = "#" + c
	}
	return c
}
