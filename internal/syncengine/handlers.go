package syncengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/driveindex/syncd/internal/checkpointstore"
	"github.com/driveindex/syncd/internal/domain"
	"github.com/driveindex/syncd/internal/filestore"
	"github.com/driveindex/syncd/internal/jsonenc"
	"github.com/driveindex/syncd/internal/runner"
)

// DeletionPolicyPurge, when passed as RegisterHandlers' deletionPolicy,
// makes the incremental_sync handler actually delete file rows on a
// "removed" change record instead of only recording the removal.
const DeletionPolicyPurge = "purge"

// RegisterHandlers wires the full_sync and incremental_sync page-loop
// handlers into a runner.Runner. deletionPolicy is
// config.FilestoreConfig.DeletionPolicy's value ("retain" or "purge").
func RegisterHandlers(r *runner.Runner, cs checkpointstore.Store, fs filestore.Store, pc ProviderClient, pageSize int, deletionPolicy string) {
	r.RegisterHandler("full_sync", fullSyncHandler(cs, fs, pc, pageSize))
	r.RegisterHandler("incremental_sync", incrementalSyncHandler(cs, fs, pc, pageSize, deletionPolicy == DeletionPolicyPurge))
}

// fullSyncHandler loads the checkpoint, loops calling
// PC.list_descriptors, upserting each page into the file store,
// and updating the checkpoint before requesting the next page — the
// checkpoint update is the durability anchor and must happen-before the
// next page request.
func fullSyncHandler(cs checkpointstore.Store, fs filestore.Store, pc ProviderClient, pageSize int) runner.HandlerFunc {
	return func(ctx context.Context, job *domain.Job) error {
		var payload fullSyncPayload
		if err := jsonenc.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode full sync payload: %w", err)
		}

		cp, err := cs.FindBySyncID(ctx, payload.SyncID)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}

		total := cp.FilesProcessed
		pageToken := ""
		if cp.PageToken != nil {
			pageToken = *cp.PageToken
		}

		for {
			resp, err := pc.ListDescriptors(ctx, pageToken, pageSize)
			if err != nil {
				return fmt.Errorf("list descriptors: %w", err)
			}

			for i := range resp.Descriptors {
				fd := resp.Descriptors[i]
				if err := fs.Upsert(ctx, &fd); err != nil {
					return fmt.Errorf("upsert file descriptor %s: %w", fd.ID, err)
				}
			}
			total += int64(len(resp.Descriptors))

			var nextToken *string
			if resp.NextPageToken != "" {
				nextToken = &resp.NextPageToken
			}
			if err := cs.UpdateProgress(ctx, cp.ID, nextToken, total); err != nil {
				return fmt.Errorf("update checkpoint progress: %w", err)
			}

			if resp.NextPageToken == "" {
				break
			}
			pageToken = resp.NextPageToken
		}

		if err := cs.MarkCompleted(ctx, cp.ID, total); err != nil {
			return fmt.Errorf("mark checkpoint completed: %w", err)
		}
		return nil
	}
}

// incrementalSyncHandler has the same loop shape as full sync, driven by
// PC.list_changes. Removed entries are recorded but, under the default
// "retain" deletion policy, leave the file-store row in place; purging is
// a configuration option instead. The cursor written to CS after each
// page is next_page_token
// during the walk, or new_start_page_token on the final page, so the next
// incremental sync picks up exactly where this one left off.
func incrementalSyncHandler(cs checkpointstore.Store, fs filestore.Store, pc ProviderClient, pageSize int, purgeOnRemoval bool) runner.HandlerFunc {
	return func(ctx context.Context, job *domain.Job) error {
		var payload incrementalSyncPayload
		if err := jsonenc.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("decode incremental sync payload: %w", err)
		}

		cp, err := cs.FindBySyncID(ctx, payload.SyncID)
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}

		total := cp.FilesProcessed
		pageToken := payload.StartPageToken
		if cp.PageToken != nil {
			pageToken = *cp.PageToken
		}

		for {
			resp, err := pc.ListChanges(ctx, pageToken, pageSize)
			if err != nil {
				return fmt.Errorf("list changes: %w", err)
			}

			for _, change := range resp.Changes {
				if change.Removed {
					if purgeOnRemoval {
						if err := fs.Delete(ctx, change.FileID); err != nil && !errors.Is(err, domain.ErrFileNotFound) {
							return fmt.Errorf("delete file descriptor %s: %w", change.FileID, err)
						}
					}
					continue
				}
				if change.Descriptor != nil && !change.Trashed {
					if err := fs.Upsert(ctx, change.Descriptor); err != nil {
						return fmt.Errorf("upsert file descriptor %s: %w", change.Descriptor.ID, err)
					}
					total++
				}
			}

			cursor := resp.NextPageToken
			final := cursor == ""
			if final {
				cursor = resp.NewStartPageToken
			}
			var cursorPtr *string
			if cursor != "" {
				cursorPtr = &cursor
			}
			if err := cs.UpdateProgress(ctx, cp.ID, cursorPtr, total); err != nil {
				return fmt.Errorf("update checkpoint progress: %w", err)
			}

			if final {
				break
			}
			pageToken = resp.NextPageToken
		}

		if err := cs.MarkCompleted(ctx, cp.ID, total); err != nil {
			return fmt.Errorf("mark checkpoint completed: %w", err)
		}
		return nil
	}
}
