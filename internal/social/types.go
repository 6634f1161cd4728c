// Package social defines the narrow provider interfaces the bot talks to and
// the provider-independent helpers around them.
package social

import "context"

// Ref identifies a post on the network. CID is the content hash some
// networks (AT Protocol) require next to the id; it may be empty elsewhere.
type Ref struct {
	ID  string
	CID string
}

// Post is a search result.
type Post struct {
	Ref
	Text   string
	Author string
}

// Mention is a post that mentions the bot account.
type Mention struct {
	Ref
	Text   string
	Author string
}

// Draft is a new post. ReplyTo is optional.
type Draft struct {
	Text    string
	ReplyTo *Ref
}

// Searcher finds posts containing a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Post, error)
}

// Poster performs side-effecting account actions. Calls are not retried.
type Poster interface {
	Post(ctx context.Context, d Draft) (Ref, error)
	Repost(ctx context.Context, r Ref) error
	Favorite(ctx context.Context, r Ref) error
	// ListMentionsSince returns mentions newer than sinceID, newest first.
	// An empty sinceID returns the most recent page.
	ListMentionsSince(ctx context.Context, sinceID string) ([]Mention, error)
}

// Provider is the full surface used by the bot.
type Provider interface {
	Searcher
	Poster
}
