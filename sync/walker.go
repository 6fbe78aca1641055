// Copyright © 2020 Elias Norberg
// Licensed under the GPLv3 or later.
// See COPYING at the root of the repository for details.
package sync

import (
	"context"
	"io"
	"regexp"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/time/rate"
)

// Walker mirrors a source folder tree onto a target store
type Walker struct {
	Target        Store
	ReplicateOnly bool

	// DryRun logs and counts the planned changes without applying them
	DryRun bool

	// Include and Exclude filter source folders by path.
	// Excluded folders are skipped together with their children.
	Include []*regexp.Regexp
	Exclude []*regexp.Regexp

	// Limiter throttles appends to the target, if set
	Limiter *rate.Limiter

	// Progress receives a progress bar per folder, if set
	Progress io.Writer

	Logger zerolog.Logger
}

// Walk synchronizes src into dst and then recurses into the children of src
func (w *Walker) Walk(ctx context.Context, src, dst Folder) (*Tally, error) {
	t := &Tally{}
	err := w.visit(ctx, src, dst, false, t)
	return t, err
}

// visit handles one folder pair. missing is set in dry-run mode
// for target folders that would have been created.
func (w *Walker) visit(ctx context.Context, src, dst Folder, missing bool, t *Tally) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := w.Logger.With().Str("folder", displayPath(src.Path())).Logger()
	log.Info().Msg("synchronizing folder")
	t.Visited++

	caps := src.Capabilities()
	if caps.Has(HoldsMessages) && w.included(src.Path()) {
		res, err := w.syncMessages(ctx, src, dst, missing, log)
		if err != nil {
			return err
		}
		t.Folders = append(t.Folders, *res)
	}

	if !caps.Has(HoldsFolders) {
		return nil
	}

	children, err := src.Children(ctx)
	if err != nil {
		return errors.Wrapf(err, "cannot list children of %s", displayPath(src.Path()))
	}

	for _, child := range children {
		if w.excluded(child.Path()) {
			log.Debug().Str("child", child.Path()).Msg("folder excluded")
			continue
		}

		targetPath := TranslatePath(child.Path(), child.Separator(), dst.Separator())
		target, err := w.Target.Folder(ctx, targetPath)
		if err != nil {
			return errors.Wrapf(err, "cannot get target folder %s", targetPath)
		}

		childMissing := missing
		if !missing {
			exists, err := target.Exists(ctx)
			if err != nil {
				return errors.Wrapf(err, "cannot check target folder %s", targetPath)
			}

			if !exists {
				log.Info().Str("target", targetPath).Msg("creating folder in target store")
				if w.DryRun {
					childMissing = true
				} else {
					err = target.Create(ctx, HoldsMessages)
					if err != nil {
						return errors.Wrapf(err, "cannot create target folder %s", targetPath)
					}
				}
				t.Created = append(t.Created, targetPath)
			}
		} else {
			t.Created = append(t.Created, targetPath)
		}

		err = w.visit(ctx, child, target, childMissing, t)
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) syncMessages(ctx context.Context, src, dst Folder, missing bool, log zerolog.Logger) (_ *FolderResult, err error) {
	res := &FolderResult{Source: src.Path(), Target: dst.Path()}

	err = src.Open(ctx, ReadOnly)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open source folder %s", displayPath(src.Path()))
	}
	defer func() {
		cerr := src.Close(ctx, false)
		if err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "cannot close source folder %s", displayPath(src.Path()))
		}
	}()

	srcSet, err := LoadMessageSet(ctx, src)
	if err != nil {
		return nil, err
	}
	log.Info().Int("messages", srcSet.Len()).Msg("processing messages")

	dstSet := NewMessageSet(nil)
	if !missing {
		mode := ReadWrite
		if w.DryRun {
			mode = ReadOnly
		}
		err = dst.Open(ctx, mode)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot open target folder %s", displayPath(dst.Path()))
		}
		defer func() {
			// Flagged messages are only expunged once the folder was fully reconciled
			expunge := err == nil && res.Flagged > 0 && !w.DryRun
			cerr := dst.Close(ctx, expunge)
			if err == nil && cerr != nil {
				err = errors.Wrapf(cerr, "cannot close target folder %s", displayPath(dst.Path()))
			}
		}()

		dstSet, err = LoadMessageSet(ctx, dst)
		if err != nil {
			return nil, err
		}
	}

	res.SourceDuplicates = srcSet.Duplicates()
	res.TargetDuplicates = dstSet.Duplicates()
	for _, d := range res.SourceDuplicates {
		log.Warn().Str("message", d.Key.String()).Interface("uids", d.UIDs).Msg("duplicate message id in source folder, only the first message is copied")
	}
	for _, d := range res.TargetDuplicates {
		log.Warn().Str("message", d.Key.String()).Interface("uids", d.UIDs).Msg("duplicate message id in target folder")
	}

	plan := Reconcile(srcSet, dstSet, w.ReplicateOnly)
	res.Matched = plan.Matched

	var bar *progressbar.ProgressBar
	if w.Progress != nil && len(plan.Copy) > 0 {
		bar = progressbar.NewOptions(len(plan.Copy),
			progressbar.OptionSetDescription(displayPath(src.Path())),
			progressbar.OptionSetWriter(w.Progress))
	}

	for _, c := range plan.Copy {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		log.Info().Str("message", c.Key.String()).Msg("creating message in target store")
		if !w.DryRun {
			err = w.copyMessage(ctx, src, dst, c)
			if err != nil {
				return nil, errors.Wrapf(err, "cannot copy message %s to %s", c.Key, displayPath(dst.Path()))
			}
		}
		res.Copied++

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	msgs := plan.DeleteMessages()
	for _, d := range plan.Delete {
		log.Info().Str("message", d.Key.String()).Int("count", len(d.Messages)).Msg("removing message")
	}
	if len(msgs) > 0 && !w.DryRun {
		err = dst.MarkDeleted(ctx, msgs)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot flag messages in %s", displayPath(dst.Path()))
		}
	}
	res.Flagged = len(msgs)

	return res, nil
}

func (w *Walker) copyMessage(ctx context.Context, src, dst Folder, c CopyAction) error {
	if w.Limiter != nil {
		err := w.Limiter.Wait(ctx)
		if err != nil {
			return err
		}
	}

	content, err := src.Content(ctx, c.Message)
	if err != nil {
		return err
	}

	if c.Stamp {
		content.Body, err = StampHeader(content.Body, c.Key)
		if err != nil {
			return err
		}
	}
	return dst.Append(ctx, content)
}

func (w *Walker) included(path string) bool {
	if len(w.Include) == 0 {
		return true
	}
	for _, re := range w.Include {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func (w *Walker) excluded(path string) bool {
	for _, re := range w.Exclude {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func displayPath(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}
