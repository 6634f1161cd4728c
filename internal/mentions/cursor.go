// Package mentions tracks which mentions the bot has already handled.
package mentions

import "desirebot/internal/social"

// Cursor is the mention watermark. LastSeenID is empty before the first
// mention is handled.
type Cursor struct {
	LastSeenID string
}

// Advance moves the cursor to the newest mention of batch. Mentions arrive
// newest first and are returned unchanged, in the same order. An empty
// batch, or one whose newest id is blank, leaves the cursor as it was.
//
// The cursor is only ever replaced by the head of a batch; the provider is
// trusted to return mentions strictly newer than the previous LastSeenID.
func Advance(batch []social.Mention, cur Cursor) ([]social.Mention, Cursor) {
	if len(batch) == 0 || batch[0].ID == "" {
		return batch, cur
	}
	return batch, Cursor{LastSeenID: batch[0].ID}
}
