package bluesky

import (
	"context"
	"time"

	comatproto "github.com/bluesky-social/indigo/api/atproto"
	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/lex/util"
	"github.com/bluesky-social/indigo/xrpc"

	"desirebot/internal/social"
)

const (
	collectionPost   = "app.bsky.feed.post"
	collectionRepost = "app.bsky.feed.repost"
	collectionLike   = "app.bsky.feed.like"
	reasonMention    = "mention"
)

var _ social.Provider = (*Client)(nil)

// Search returns the latest posts matching query.
func (c *Client) Search(ctx context.Context, query string) ([]social.Post, error) {
	var out []social.Post
	err := c.call(ctx, "search", func(xc *xrpc.Client) error {
		resp, err := appbsky.FeedSearchPosts(ctx, xc, "", "", "", "", int64(c.cfg.SearchLimit), "", query, "", "latest", nil, "", "")
		if err != nil {
			return err
		}
		out = make([]social.Post, 0, len(resp.Posts))
		for _, pv := range resp.Posts {
			if pv == nil {
				continue
			}
			out = append(out, social.Post{
				Ref:    social.Ref{ID: pv.Uri, CID: pv.Cid},
				Text:   recordText(pv.Record),
				Author: basicHandle(pv.Author),
			})
		}
		return nil
	})
	return out, err
}

func (c *Client) Post(ctx context.Context, d social.Draft) (social.Ref, error) {
	post := &appbsky.FeedPost{
		Text:      d.Text,
		CreatedAt: now(),
	}
	if d.ReplyTo != nil {
		ref := &comatproto.RepoStrongRef{Uri: d.ReplyTo.ID, Cid: d.ReplyTo.CID}
		post.Reply = &appbsky.FeedPost_ReplyRef{Parent: ref, Root: ref}
	}
	var ref social.Ref
	err := c.call(ctx, "post", func(xc *xrpc.Client) error {
		resp, err := createRecord(ctx, xc, collectionPost, &util.LexiconTypeDecoder{Val: post})
		if err != nil {
			return err
		}
		ref = social.Ref{ID: resp.Uri, CID: resp.Cid}
		return nil
	})
	return ref, err
}

func (c *Client) Repost(ctx context.Context, r social.Ref) error {
	return c.call(ctx, "repost", func(xc *xrpc.Client) error {
		_, err := createRecord(ctx, xc, collectionRepost, &util.LexiconTypeDecoder{Val: &appbsky.FeedRepost{
			Subject:   &comatproto.RepoStrongRef{Uri: r.ID, Cid: r.CID},
			CreatedAt: now(),
		}})
		return err
	})
}

func (c *Client) Favorite(ctx context.Context, r social.Ref) error {
	return c.call(ctx, "like", func(xc *xrpc.Client) error {
		_, err := createRecord(ctx, xc, collectionLike, &util.LexiconTypeDecoder{Val: &appbsky.FeedLike{
			Subject:   &comatproto.RepoStrongRef{Uri: r.ID, Cid: r.CID},
			CreatedAt: now(),
		}})
		return err
	})
}

// ListMentionsSince pages through mention notifications, newest first, and
// stops at sinceID. Without sinceID only the first page is returned so a
// fresh install does not answer the whole account history.
func (c *Client) ListMentionsSince(ctx context.Context, sinceID string) ([]social.Mention, error) {
	var out []social.Mention
	err := c.call(ctx, "list mentions", func(xc *xrpc.Client) error {
		out = out[:0]
		cursor := ""
		for page := 0; page < c.cfg.MentionPages; page++ {
			resp, err := appbsky.NotificationListNotifications(ctx, xc, cursor, maxPageSize/2, false, []string{reasonMention}, "")
			if err != nil {
				return err
			}
			for _, n := range resp.Notifications {
				if n == nil || n.Reason != reasonMention {
					continue
				}
				if sinceID != "" && n.Uri == sinceID {
					return nil
				}
				out = append(out, social.Mention{
					Ref:    social.Ref{ID: n.Uri, CID: n.Cid},
					Text:   recordText(n.Record),
					Author: profileHandle(n.Author),
				})
			}
			if sinceID == "" || resp.Cursor == nil || *resp.Cursor == "" {
				return nil
			}
			cursor = *resp.Cursor
		}
		return nil
	})
	return out, err
}

func createRecord(ctx context.Context, xc *xrpc.Client, collection string, rec *util.LexiconTypeDecoder) (*comatproto.RepoCreateRecord_Output, error) {
	return comatproto.RepoCreateRecord(ctx, xc, &comatproto.RepoCreateRecord_Input{
		Collection: collection,
		Repo:       xc.Auth.Did,
		Record:     rec,
	})
}

func recordText(rec *util.LexiconTypeDecoder) string {
	if rec == nil {
		return ""
	}
	if fp, ok := rec.Val.(*appbsky.FeedPost); ok {
		return fp.Text
	}
	return ""
}

func basicHandle(a *appbsky.ActorDefs_ProfileViewBasic) string {
	if a == nil {
		return ""
	}
	return a.Handle
}

func profileHandle(a *appbsky.ActorDefs_ProfileView) string {
	if a == nil {
		return ""
	}
	return a.Handle
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }
