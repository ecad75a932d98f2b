// Package reconciler keeps exactly one Notion page in step with each issue.
//
// For every record it looks the page up by issue ID, then creates it when
// absent or updates it when present. Lookups and writes for the same issue ID
// are serialized through a lock.Locker, which closes the window where two
// concurrent deliveries both see "absent" and both create a page.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/issuemirror/internal/lock"
	"github.com/telhawk-systems/issuemirror/internal/logging"
	"github.com/telhawk-systems/issuemirror/internal/metrics"
	"github.com/telhawk-systems/issuemirror/internal/models"
	"github.com/telhawk-systems/issuemirror/internal/notion"
)

// ErrMissingIssueID is returned for records without an issue ID. Such a
// record would match, and overwrite, any other page created without one.
var ErrMissingIssueID = errors.New("reconciler: record has no issue id")

// Action is the transition applied to the remote page.
type Action string

const (
	ActionNone   Action = "none"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Store is the remote page store. *notion.Client satisfies it.
type Store interface {
	FindPage(ctx context.Context, issueID string) (*notion.Page, bool, error)
	CreatePage(ctx context.Context, rec models.NormalizedRecord) (*notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, rec models.NormalizedRecord) (*notion.Page, error)
}

// Result describes one reconciliation attempt.
type Result struct {
	IssueID string `json:"issue_id" yaml:"issue_id"`
	Action  Action `json:"action" yaml:"action"`
	PageID  string `json:"page_id,omitempty" yaml:"page_id,omitempty"`
	OK      bool   `json:"ok" yaml:"ok"`
	// LookupFailed is set when the lookup errored and the record was routed
	// to create as if no page existed.
	LookupFailed bool `json:"lookup_failed,omitempty" yaml:"lookup_failed,omitempty"`
}

type Reconciler struct {
	store  Store
	locker lock.Locker
	logger *logging.Logger
}

// New builds a Reconciler. A nil locker defaults to an in-process
// lock.KeyedMutex; a nil logger discards output.
func New(store Store, locker lock.Locker, logger *logging.Logger) *Reconciler {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reconciler{store: store, locker: locker, logger: logger}
}

// Reconcile creates or updates the page mirroring rec. The returned error is
// non-nil whenever Result.OK is false.
func (r *Reconciler) Reconcile(ctx context.Context, rec models.NormalizedRecord) (Result, error) {
	start := time.Now()
	result := Result{IssueID: rec.IssueID, Action: ActionNone}
	defer func() {
		metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
		outcome := "success"
		if !result.OK {
			outcome = "failure"
		}
		metrics.ReconciliationsTotal.WithLabelValues(string(result.Action), outcome).Inc()
	}()

	if rec.IssueID == "" {
		return result, ErrMissingIssueID
	}

	waitStart := time.Now()
	unlock, err := r.locker.Lock(ctx, rec.IssueID)
	metrics.LockWaitDuration.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		return result, fmt.Errorf("lock issue %s: %w", rec.IssueID, err)
	}
	defer unlock()

	pageID, found := r.lookup(ctx, rec.IssueID, &result)

	if found {
		result.Action = ActionUpdate
		result.PageID = pageID
		page, err := r.store.UpdatePage(ctx, pageID, rec)
		if err != nil {
			return result, fmt.Errorf("update page %s for issue %s: %w", pageID, rec.IssueID, err)
		}
		result.PageID = page.ID
		result.OK = true
		return result, nil
	}

	result.Action = ActionCreate
	page, err := r.store.CreatePage(ctx, rec)
	if err != nil {
		return result, fmt.Errorf("create page for issue %s: %w", rec.IssueID, err)
	}
	result.PageID = page.ID
	result.OK = true
	return result, nil
}

// lookup finds the page for issueID. Any lookup error is reported as "not
// found" so the caller falls through to create; this can duplicate a page
// when Notion is unreachable but the page exists.
func (r *Reconciler) lookup(ctx context.Context, issueID string, result *Result) (string, bool) {
	page, found, err := r.store.FindPage(ctx, issueID)
	if err != nil {
		result.LookupFailed = true
		metrics.LookupFailures.Inc()
		r.logger.WarnContext(ctx, "Page lookup failed, treating as not found",
			logging.IssueID(issueID),
			logging.Error(err),
		)
		return "", false
	}
	if !found || page == nil || page.ID == "" {
		return "", false
	}
	return page.ID, true
}
