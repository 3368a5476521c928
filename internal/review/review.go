// Package review implements the Review/Mutation API (C9): every operation
// a user can take against the reviewed graph, each as a short transaction
// that preserves the invariants of the data model and appends a
// UserDecision for traceability.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"mediaparser/internal/duplicates"
	"mediaparser/internal/model"
	"mediaparser/internal/store"
)

// Review wraps a Store with the mutation operations of C9.
type Review struct {
	Store *store.Store
}

// New returns a Review driving st.
func New(st *store.Store) *Review {
	return &Review{Store: st}
}

// ConfirmTimestamp sets a file's final_timestamp and marks it reviewed.
func (r *Review) ConfirmTimestamp(ctx context.Context, fileID int64, instant time.Time, source string) error {
	return r.Store.WithRetry(ctx, func() error {
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		if err := store.SetReview(ctx, tx, fileID, &instant, true); err != nil {
			tx.Rollback()
			return err
		}
		value, _ := json.Marshal(map[string]any{"instant": instant.UTC(), "source": source})
		if err := store.RecordDecision(ctx, tx, fileID, model.ActionConfirmTimestamp, string(value)); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// Unreview clears final_timestamp and reviewed_at.
func (r *Review) Unreview(ctx context.Context, fileID int64) error {
	return r.Store.WithRetry(ctx, func() error {
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		if err := store.SetReview(ctx, tx, fileID, nil, false); err != nil {
			tx.Rollback()
			return err
		}
		if err := store.RecordDecision(ctx, tx, fileID, model.ActionUnreview, ""); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// Discard toggles a file into the discarded state: folds its
// timestamp_candidates into a kept sibling of its exact group (as
// BulkDiscard does), clears review fields and removes it from any groups,
// then runs orphan cleanup on the groups it left (spec.md §4.9).
func (r *Review) Discard(ctx context.Context, fileID int64) error {
	return r.Store.WithRetry(ctx, func() error {
		pre, err := r.Store.GetFile(ctx, fileID)
		if err != nil {
			return err
		}
		siblingID, merged, hasSibling, err := accumulationTarget(ctx, r.Store, pre, map[int64]bool{fileID: true})
		if err != nil {
			return err
		}
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		f, err := store.GetFileTx(ctx, tx, fileID)
		if err != nil {
			tx.Rollback()
			return err
		}
		if hasSibling {
			if err := store.SetCandidates(ctx, tx, siblingID, merged); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := store.SetDiscarded(ctx, tx, fileID, true); err != nil {
			tx.Rollback()
			return err
		}
		if err := store.RecordDecision(ctx, tx, fileID, model.ActionDiscard, ""); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		if f.ExactGroupID != "" {
			if err := r.cleanupExactGroup(ctx, f.ExactGroupID); err != nil {
				return err
			}
		}
		if f.SimilarGroupID != "" {
			if err := r.cleanupSimilarGroup(ctx, f.SimilarGroupID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Undiscard clears the discarded flag and, if other non-discarded files in
// the same job share this file's sha256, restores an exact-group id
// shared with those peers (spec.md §4.9's undiscard re-join rule).
func (r *Review) Undiscard(ctx context.Context, fileID int64) error {
	return r.Store.WithRetry(ctx, func() error {
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		f, err := store.GetFileTx(ctx, tx, fileID)
		if err != nil {
			tx.Rollback()
			return err
		}
		if err := store.SetDiscarded(ctx, tx, fileID, false); err != nil {
			tx.Rollback()
			return err
		}
		if err := store.RecordDecision(ctx, tx, fileID, model.ActionUndiscard, ""); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		if f.SHA256 == "" {
			return nil
		}
		peers, err := r.Store.FilesByJob(ctx, f.JobID)
		if err != nil {
			return err
		}
		var siblings []model.File
		for _, p := range peers {
			if p.ID != fileID && !p.Discarded && p.SHA256 == f.SHA256 {
				siblings = append(siblings, p)
			}
		}
		if len(siblings) == 0 {
			return nil
		}
		groupID := siblings[0].ExactGroupID
		if groupID == "" {
			groupID = duplicates.NewGroupID()
		}
		tx2, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		ids := append([]int64{fileID}, idsOf(siblings)...)
		for _, id := range ids {
			if err := store.SetGroups(ctx, tx2, id, groupID, model.ConfidenceHigh, "", "", ""); err != nil {
				tx2.Rollback()
				return err
			}
		}
		return tx2.Commit()
	})
}

// BulkDiscard discards a set of files, first accumulating each discarded
// file's timestamp_candidates into a kept (non-discarded, non-member-of-set)
// sibling of its exact group, deduped by (instant, source) pair, so
// evidence survives when the user picks a representative (spec.md §4.9).
func (r *Review) BulkDiscard(ctx context.Context, fileIDs []int64) error {
	discardSet := make(map[int64]bool, len(fileIDs))
	for _, id := range fileIDs {
		discardSet[id] = true
	}

	touchedExact := map[string]bool{}
	touchedSimilar := map[string]bool{}

	for _, id := range fileIDs {
		f, err := r.Store.GetFile(ctx, id)
		if err != nil {
			return err
		}

		var siblingID int64
		var merged []model.TimestampCandidate
		var hasSibling bool
		if f.ExactGroupID != "" {
			siblingID, merged, hasSibling, err = accumulationTarget(ctx, r.Store, f, discardSet)
			if err != nil {
				return err
			}
			touchedExact[f.ExactGroupID] = true
		}
		if f.SimilarGroupID != "" {
			touchedSimilar[f.SimilarGroupID] = true
		}

		if err := r.Store.WithRetry(ctx, func() error {
			tx, err := r.Store.BeginTx(ctx)
			if err != nil {
				return err
			}
			if hasSibling {
				if err := store.SetCandidates(ctx, tx, siblingID, merged); err != nil {
					tx.Rollback()
					return err
				}
			}
			if err := store.SetDiscarded(ctx, tx, id, true); err != nil {
				tx.Rollback()
				return err
			}
			if err := store.RecordDecision(ctx, tx, id, model.ActionDiscard, ""); err != nil {
				tx.Rollback()
				return err
			}
			return tx.Commit()
		}); err != nil {
			return err
		}
	}

	for gid := range touchedExact {
		if err := r.cleanupExactGroup(ctx, gid); err != nil {
			return err
		}
	}
	for gid := range touchedSimilar {
		if err := r.cleanupSimilarGroup(ctx, gid); err != nil {
			return err
		}
	}
	return nil
}

// accumulationTarget finds the first non-discarded, not-also-discarding
// member of f's exact group and returns its id plus f's timestamp
// candidates merged into its own, deduped by (instant, source) — the
// evidence-preservation step discard and bulk_discard perform before
// severing a file's group link (spec.md §4.9). A file with no exact group
// yields no target.
func accumulationTarget(ctx context.Context, st *store.Store, f model.File, discardSet map[int64]bool) (int64, []model.TimestampCandidate, bool, error) {
	members, err := st.FilesByExactGroup(ctx, f.ExactGroupID)
	if err != nil {
		return 0, nil, false, err
	}
	for _, m := range members {
		if m.ID == f.ID || m.Discarded || discardSet[m.ID] {
			continue
		}
		return m.ID, mergeCandidates(m.TimestampCandidates, f.TimestampCandidates), true, nil
	}
	return 0, nil, false, nil
}

func mergeCandidates(base, incoming []model.TimestampCandidate) []model.TimestampCandidate {
	seen := make(map[string]bool, len(base))
	key := func(c model.TimestampCandidate) string {
		return c.Instant.UTC().Format(time.RFC3339Nano) + "|" + c.Source
	}
	out := make([]model.TimestampCandidate, 0, len(base)+len(incoming))
	for _, c := range base {
		if !seen[key(c)] {
			seen[key(c)] = true
			out = append(out, c)
		}
	}
	for _, c := range incoming {
		if !seen[key(c)] {
			seen[key(c)] = true
			out = append(out, c)
		}
	}
	return out
}

// BulkUndiscard clears discarded on a set of files, calling Undiscard's
// sha256-rejoin logic per file.
func (r *Review) BulkUndiscard(ctx context.Context, fileIDs []int64) error {
	for _, id := range fileIDs {
		if err := r.Undiscard(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// AddTags attaches a set of normalized tag names to a file.
func (r *Review) AddTags(ctx context.Context, fileID int64, names []string) error {
	return r.Store.WithRetry(ctx, func() error {
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := store.AddTag(ctx, tx, fileID, normalizeTag(name)); err != nil {
				tx.Rollback()
				return err
			}
		}
		value, _ := json.Marshal(map[string]any{"tags": names})
		if err := store.RecordDecision(ctx, tx, fileID, model.ActionAddTags, string(value)); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// RemoveTag detaches a single tag from a file.
func (r *Review) RemoveTag(ctx context.Context, fileID int64, name string) error {
	return r.Store.WithRetry(ctx, func() error {
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		if err := store.RemoveTag(ctx, tx, fileID, normalizeTag(name)); err != nil {
			tx.Rollback()
			return err
		}
		value, _ := json.Marshal(map[string]any{"tag": name})
		if err := store.RecordDecision(ctx, tx, fileID, model.ActionRemoveTag, string(value)); err != nil {
			tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// BulkAddTags attaches names to every file in fileIDs.
func (r *Review) BulkAddTags(ctx context.Context, fileIDs []int64, names []string) error {
	for _, id := range fileIDs {
		if err := r.AddTags(ctx, id, names); err != nil {
			return err
		}
	}
	return nil
}

// ResolveSimilarGroup clears similar-group fields from every member of
// group_id, then discards the members not present in keepIDs.
func (r *Review) ResolveSimilarGroup(ctx context.Context, groupID string, keepIDs []int64) error {
	keep := make(map[int64]bool, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = true
	}
	members, err := r.Store.FilesBySimilarGroup(ctx, groupID)
	if err != nil {
		return err
	}

	tx, err := r.Store.BeginTx(ctx)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := store.ClearGroups(ctx, tx, m.ID, false, true); err != nil {
			tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, m := range members {
		if keep[m.ID] {
			continue
		}
		if err := r.Discard(ctx, m.ID); err != nil {
			return err
		}
	}
	return r.Store.WithRetry(ctx, func() error {
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		value, _ := json.Marshal(map[string]any{"group_id": groupID, "keep_ids": keepIDs})
		for _, m := range members {
			if err := store.RecordDecision(ctx, tx, m.ID, model.ActionResolveSimilar, string(value)); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// KeepAllDuplicates clears exact-group fields from every member of
// group_id, dissolving the group entirely.
func (r *Review) KeepAllDuplicates(ctx context.Context, groupID string) error {
	members, err := r.Store.FilesByExactGroup(ctx, groupID)
	if err != nil {
		return err
	}
	return r.Store.WithRetry(ctx, func() error {
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		value, _ := json.Marshal(map[string]any{"group_id": groupID})
		for _, m := range members {
			if err := store.ClearGroups(ctx, tx, m.ID, true, false); err != nil {
				tx.Rollback()
				return err
			}
			if err := store.RecordDecision(ctx, tx, m.ID, model.ActionKeepAllDuplicate, string(value)); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// KeepAllSimilar clears similar-group fields from every member of group_id.
func (r *Review) KeepAllSimilar(ctx context.Context, groupID string) error {
	members, err := r.Store.FilesBySimilarGroup(ctx, groupID)
	if err != nil {
		return err
	}
	return r.Store.WithRetry(ctx, func() error {
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		value, _ := json.Marshal(map[string]any{"group_id": groupID})
		for _, m := range members {
			if err := store.ClearGroups(ctx, tx, m.ID, false, true); err != nil {
				tx.Rollback()
				return err
			}
			if err := store.RecordDecision(ctx, tx, m.ID, model.ActionKeepAllSimilar, string(value)); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// AutoConfirmHigh confirms every HIGH-confidence, not-yet-reviewed file in
// job using its detected_timestamp as the final.
func (r *Review) AutoConfirmHigh(ctx context.Context, jobID int64) error {
	files, err := r.Store.FilesByJob(ctx, jobID)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.Confidence != model.ConfidenceHigh || f.ReviewedAt != nil || f.Discarded || f.DetectedTimestamp == nil {
			continue
		}
		if err := r.ConfirmTimestamp(ctx, f.ID, *f.DetectedTimestamp, f.TimestampSource); err != nil {
			return err
		}
	}
	return nil
}

// BulkReviewScope selects which files within a job bulk_review acts on.
type BulkReviewScope string

const (
	ScopeSelection  BulkReviewScope = "selection"
	ScopeConfidence BulkReviewScope = "confidence"
	ScopeFiltered   BulkReviewScope = "filtered"
)

// BulkReviewAction is the mutation bulk_review applies to its selected scope.
type BulkReviewAction struct {
	Confirm bool // confirm_timestamp using each file's detected_timestamp
	Discard bool
}

// BulkReviewOptions parameterizes the three supported scopes: an explicit
// id selection, a confidence tier, or an arbitrary predicate over a File
// (the "filtered" scope, since the filter expression language itself is an
// HTTP/CLI concern out of this package's scope).
type BulkReviewOptions struct {
	Scope      BulkReviewScope
	FileIDs    []int64
	Confidence model.ConfidenceLevel
	Filter     func(model.File) bool
}

// BulkReview combines confirm/discard across one of three selection scopes.
func (r *Review) BulkReview(ctx context.Context, jobID int64, opts BulkReviewOptions, action BulkReviewAction) error {
	files, err := r.Store.FilesByJob(ctx, jobID)
	if err != nil {
		return err
	}

	var targets []int64
	switch opts.Scope {
	case ScopeSelection:
		targets = opts.FileIDs
	case ScopeConfidence:
		for _, f := range files {
			if f.Confidence == opts.Confidence {
				targets = append(targets, f.ID)
			}
		}
	case ScopeFiltered:
		if opts.Filter == nil {
			return fmt.Errorf("review: filtered scope requires a Filter")
		}
		for _, f := range files {
			if opts.Filter(f) {
				targets = append(targets, f.ID)
			}
		}
	default:
		return fmt.Errorf("review: unknown bulk_review scope %q", opts.Scope)
	}

	byID := make(map[int64]model.File, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}

	value, _ := json.Marshal(map[string]any{"scope": opts.Scope})
	for _, id := range targets {
		f, ok := byID[id]
		if !ok {
			continue
		}
		if action.Discard {
			if err := r.Discard(ctx, id); err != nil {
				return err
			}
			continue
		}
		if action.Confirm && f.DetectedTimestamp != nil && f.ReviewedAt == nil && !f.Discarded {
			if err := r.ConfirmTimestamp(ctx, id, *f.DetectedTimestamp, f.TimestampSource); err != nil {
				return err
			}
		}
		if err := r.Store.WithRetry(ctx, func() error {
			tx, err := r.Store.BeginTx(ctx)
			if err != nil {
				return err
			}
			if err := store.RecordDecision(ctx, tx, id, model.ActionBulkReview, string(value)); err != nil {
				tx.Rollback()
				return err
			}
			return tx.Commit()
		}); err != nil {
			return err
		}
	}
	return nil
}

// cleanupExactGroup dissolves groupID if exactly one non-discarded member
// remains, per the group-identity cardinality invariant (spec.md §3).
func (r *Review) cleanupExactGroup(ctx context.Context, groupID string) error {
	members, err := r.Store.FilesByExactGroup(ctx, groupID)
	if err != nil {
		return err
	}
	remaining := nonDiscarded(members)
	if len(remaining) > 1 {
		return nil
	}
	return r.Store.WithRetry(ctx, func() error {
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		for _, m := range remaining {
			if err := store.ClearGroups(ctx, tx, m.ID, true, false); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

// cleanupSimilarGroup is cleanupExactGroup's similar-group counterpart.
func (r *Review) cleanupSimilarGroup(ctx context.Context, groupID string) error {
	members, err := r.Store.FilesBySimilarGroup(ctx, groupID)
	if err != nil {
		return err
	}
	remaining := nonDiscarded(members)
	if len(remaining) > 1 {
		return nil
	}
	return r.Store.WithRetry(ctx, func() error {
		tx, err := r.Store.BeginTx(ctx)
		if err != nil {
			return err
		}
		for _, m := range remaining {
			if err := store.ClearGroups(ctx, tx, m.ID, false, true); err != nil {
				tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
}

func nonDiscarded(files []model.File) []model.File {
	var out []model.File
	for _, f := range files {
		if !f.Discarded {
			out = append(out, f)
		}
	}
	return out
}

func idsOf(files []model.File) []int64 {
	ids := make([]int64, len(files))
	for i, f := range files {
		ids[i] = f.ID
	}
	return ids
}

func normalizeTag(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		out = append(out, r)
	}
	return string(out)
}
