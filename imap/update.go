package imap

import (
	"context"

	"github.com/emersion/go-imap"

	"github.com/yzzyx/imap-mirror/sync"
)

// Append adds a copy of a message to the mailbox
func (f *Folder) Append(ctx context.Context, content *sync.Content) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	literal := newLiteral(content.Body)
	if f.store.client.uidPlus != nil {
		_, uid, err := f.store.client.uidPlus.Append(f.name, content.Flags, content.Date, literal)
		if err != nil {
			return err
		}
		f.store.log.Debug().Str("folder", f.name).Uint32("uid", uid).Msg("appended message")
		return nil
	}

	return f.store.client.Append(f.name, content.Flags, content.Date, literal)
}

// MarkDeleted sets the \Deleted flag on msgs with a single UID STORE
func (f *Folder) MarkDeleted(ctx context.Context, msgs []sync.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := f.checkSelected(); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	seqSet := new(imap.SeqSet)
	for _, m := range msgs {
		seqSet.AddNum(m.UID())
	}

	// UidStore / Store expects a list of interface{}, it can't handle []string
	flags := []interface{}{imap.DeletedFlag}
	item := imap.FormatFlagsOp(imap.AddFlags, true)
	return f.store.client.UidStore(seqSet, item, flags, nil)
}
